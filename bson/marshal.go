// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"fmt"
	"reflect"

	"go.nodedb.dev/driver/bson/bsoncodec"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

// DefaultRegistry is the coder-layer registry used by Marshal and Unmarshal
// when no explicit Registry is supplied.
var DefaultRegistry = bsoncodec.NewRegistry()

// Marshal encodes val as a BSON document using DefaultRegistry's strategies.
// val must be document-shaped: a struct, a map with string keys, a
// primitive.D, or a Raw.
func Marshal(val interface{}) ([]byte, error) {
	return MarshalWithRegistry(DefaultRegistry, val)
}

// MarshalWithRegistry encodes val using reg's Strategies (spec.md §4.1).
func MarshalWithRegistry(reg *bsoncodec.Registry, val interface{}) ([]byte, error) {
	if val == nil {
		return nil, fmt.Errorf("bson: cannot marshal nil value")
	}
	doc, err := encodeDocument(reg, val)
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

// MarshalValue encodes val as a single BSON value, returning its type tag
// and body bytes. Used by callers building a document field-by-field (for
// example the wire layer attaching session metadata to a command).
func MarshalValue(val interface{}) (byte, []byte, error) {
	rv := reflect.ValueOf(val)
	t, data, err := encodeValue(DefaultRegistry, rv)
	return byte(t), data, err
}

// Unmarshal decodes data into val, which must be a non-nil pointer to a
// struct, map, primitive.D, or Raw.
func Unmarshal(data []byte, val interface{}) error {
	return UnmarshalWithRegistry(DefaultRegistry, data, val)
}

// UnmarshalWithRegistry decodes data into val using reg's Strategies.
func UnmarshalWithRegistry(reg *bsoncodec.Registry, data []byte, val interface{}) error {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("bson: Unmarshal requires a non-nil pointer, got %T", val)
	}
	return decodeIntoDocument(reg, bsoncore.Document(data), rv)
}
