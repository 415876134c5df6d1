// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsoncore

import (
	"fmt"

	"go.nodedb.dev/driver/bson/bsontype"
)

// Element is the raw encoding of one document field: a type tag, a
// NUL-terminated key, and the value body, back to back.
type Element []byte

// ReadElement reads one element (type + key + value) from the front of b
// and returns it alongside whatever bytes remain.
func ReadElement(b []byte) (Element, []byte, bool) {
	if len(b) < 1 {
		return nil, b, false
	}
	t := bsontype.Type(b[0])
	rest := b[1:]
	_, afterKey, ok := readcstringBytes(rest)
	if !ok {
		return nil, b, false
	}
	_, rem, ok := readValueBody(t, afterKey)
	if !ok {
		return nil, b, false
	}
	total := len(b) - len(rem)
	return Element(b[:total]), rem, true
}

// Type returns the element's value type. It panics if the element is
// malformed.
func (e Element) Type() bsontype.Type {
	if len(e) < 1 {
		panic("element too short to contain a type")
	}
	return bsontype.Type(e[0])
}

// KeyErr returns the element's key.
func (e Element) KeyErr() (string, error) {
	if len(e) < 1 {
		return "", NewInsufficientBytesError(e, e)
	}
	key, _, ok := readcstringBytes(e[1:])
	if !ok {
		return "", ErrMissingNull
	}
	return string(key), nil
}

// Key returns the element's key, panicking on malformed input.
func (e Element) Key() string {
	k, err := e.KeyErr()
	if err != nil {
		panic(err)
	}
	return k
}

// ValueErr returns the element's value.
func (e Element) ValueErr() (Value, error) {
	if len(e) < 1 {
		return Value{}, NewInsufficientBytesError(e, e)
	}
	t := bsontype.Type(e[0])
	_, afterKey, ok := readcstringBytes(e[1:])
	if !ok {
		return Value{}, ErrMissingNull
	}
	body, _, ok := readValueBody(t, afterKey)
	if !ok {
		return Value{}, NewInsufficientBytesError(e, afterKey)
	}
	return Value{Type: t, Data: body}, nil
}

// Value returns the element's value, panicking on malformed input.
func (e Element) Value() Value {
	v, err := e.ValueErr()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate ensures e is a structurally valid element: readable key, value
// body matching its declared type, and no trailing garbage.
func (e Element) Validate() error {
	if len(e) < 1 {
		return NewInsufficientBytesError(e, e)
	}
	t := bsontype.Type(e[0])
	_, afterKey, ok := readcstringBytes(e[1:])
	if !ok {
		return ErrMissingNull
	}
	body, rem, ok := readValueBody(t, afterKey)
	if !ok {
		return NewInsufficientBytesError(e, afterKey)
	}
	if len(afterKey)-len(rem) != len(body) {
		return fmt.Errorf("element %s: value length mismatch", t)
	}
	if t == bsontype.EmbeddedDocument {
		if err := Document(body).Validate(); err != nil {
			return err
		}
	}
	if t == bsontype.Array {
		if err := Array(body).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DebugString renders e for diagnostics, never panicking even on malformed
// input.
func (e Element) DebugString() string {
	key, err := e.KeyErr()
	if err != nil {
		return "<malformed>"
	}
	v, err := e.ValueErr()
	if err != nil {
		return fmt.Sprintf("%s: <malformed>", key)
	}
	return fmt.Sprintf("%s: %s", key, v.String())
}

// String renders e as a single `"key":value` extended-JSON-ish fragment.
func (e Element) String() string {
	key, err := e.KeyErr()
	if err != nil {
		return ""
	}
	v, err := e.ValueErr()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%q:%s", key, v.String())
}
