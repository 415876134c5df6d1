// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bson implements the BSON value model and a schema-driven
// encoder/decoder (spec.md §4.1) on top of the allocation-light primitives
// in x/bsonx/bsoncore. It has no knowledge of the network: encode and
// decode operate purely on in-memory byte slices and Go values.
package bson

import (
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

// Raw is a raw, undecoded BSON document. Lookups on a Raw are lazy and do
// not allocate a full Go representation of the document.
type Raw []byte

// Lookup searches the top-level keys of r for key, panicking if not found.
func (r Raw) Lookup(key string) RawValue {
	return RawValue(bsoncore.Document(r).Lookup(key))
}

// LookupErr searches the top-level keys of r for key.
func (r Raw) LookupErr(key string) (RawValue, error) {
	v, err := bsoncore.Document(r).LookupErr(key)
	return RawValue(v), err
}

// Validate checks that r is a structurally valid BSON document per
// spec.md §4.1.
func (r Raw) Validate() error {
	return bsoncore.Document(r).Validate()
}

// Elements returns the elements of r in wire order.
func (r Raw) Elements() ([]RawElement, error) {
	elems, err := bsoncore.Document(r).Elements()
	if err != nil {
		return nil, err
	}
	out := make([]RawElement, len(elems))
	for i, e := range elems {
		out[i] = RawElement(e)
	}
	return out, nil
}

// String renders r using the package's canonical extended-JSON-ish form.
func (r Raw) String() string {
	return bsoncore.Document(r).String()
}

// RawElement is one (key, value) pair of a Raw document.
type RawElement bsoncore.Element

// Key returns the element's key.
func (re RawElement) Key() string { return bsoncore.Element(re).Key() }

// Value returns the element's value.
func (re RawElement) Value() RawValue { return RawValue(bsoncore.Element(re).Value()) }

// RawValue is a decoded-type-tag, undecoded-body BSON value.
type RawValue bsoncore.Value

// Core returns rv as the underlying bsoncore.Value for typed accessors.
func (rv RawValue) Core() bsoncore.Value { return bsoncore.Value(rv) }
