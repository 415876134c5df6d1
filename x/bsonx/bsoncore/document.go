// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsoncore

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"go.nodedb.dev/driver/bson/bsontype"
)

// EmptyDocumentLength is the length, in bytes, of the smallest valid BSON
// document: a 4-byte length prefix and the trailing NUL.
const EmptyDocumentLength = 5

// Document is a raw bytes representation of a BSON document, laid out
// exactly as spec.md §4.1 describes: int32 length | (element)* | 0x00.
type Document []byte

// NewDocumentFromReader reads one length-prefixed BSON document from r.
func NewDocumentFromReader(r io.Reader) (Document, error) {
	return newBufferFromReader(r)
}

// BuildDocument constructs a Document from dst (typically empty or an
// in-progress length placeholder) followed by zero or more already-encoded
// elements, writing the length prefix and trailing NUL.
func BuildDocument(dst []byte, elems ...[]byte) Document {
	idx := len(dst)
	dst = appendi32(dst, 0)
	for _, e := range elems {
		dst = append(dst, e...)
	}
	dst = append(dst, 0x00)
	dst = UpdateLength(dst, int32(idx), int32(len(dst)-idx))
	return Document(dst)
}

// AppendDocumentStart appends a placeholder length prefix and returns both
// the resulting slice and the index of the placeholder, for callers that
// want to append elements one at a time via AppendHeader-based helpers
// before finishing with AppendDocumentEnd.
func AppendDocumentStart(dst []byte) (idx int32, doc []byte) {
	idx = int32(len(dst))
	return idx, appendi32(dst, 0)
}

// AppendDocumentEnd appends the trailing NUL and patches in the final
// length at idx (as returned from AppendDocumentStart).
func AppendDocumentEnd(dst []byte, idx int32) []byte {
	dst = append(dst, 0x00)
	return UpdateLength(dst, idx, int32(len(dst))-idx)
}

// AppendDocumentElement appends a full embedded-document element (header +
// body) with the given key.
func AppendDocumentElement(dst []byte, key string, doc []byte) []byte {
	dst = AppendHeader(dst, bsontype.EmbeddedDocument, key)
	return append(dst, doc...)
}

// AppendArrayElement appends a full array element (header + body) with the
// given key.
func AppendArrayElement(dst []byte, key string, arr []byte) []byte {
	dst = AppendHeader(dst, bsontype.Array, key)
	return append(dst, arr...)
}

// AppendValueElement appends a full element from an already-decoded key and
// Value.
func AppendValueElement(dst []byte, key string, val Value) []byte {
	dst = AppendHeader(dst, val.Type, key)
	return append(dst, val.Data...)
}

// AppendStringElement appends a full string element with the given key.
func AppendStringElement(dst []byte, key, value string) []byte {
	dst = AppendHeader(dst, bsontype.String, key)
	return AppendString(dst, value)
}

// AppendInt32Element appends a full int32 element with the given key.
func AppendInt32Element(dst []byte, key string, i32 int32) []byte {
	dst = AppendHeader(dst, bsontype.Int32, key)
	return AppendInt32(dst, i32)
}

// AppendInt64Element appends a full int64 element with the given key.
func AppendInt64Element(dst []byte, key string, i64 int64) []byte {
	dst = AppendHeader(dst, bsontype.Int64, key)
	return AppendInt64(dst, i64)
}

// AppendBooleanElement appends a full boolean element with the given key.
func AppendBooleanElement(dst []byte, key string, b bool) []byte {
	dst = AppendHeader(dst, bsontype.Boolean, key)
	return AppendBoolean(dst, b)
}

// AppendObjectIDElement appends a full ObjectID element with the given key.
func AppendObjectIDElement(dst []byte, key string, oid [12]byte) []byte {
	dst = AppendHeader(dst, bsontype.ObjectID, key)
	return AppendObjectID(dst, oid)
}

// AppendBinaryElement appends a full binary element with the given key.
func AppendBinaryElement(dst []byte, key string, subtype byte, data []byte) []byte {
	dst = AppendHeader(dst, bsontype.Binary, key)
	return AppendBinary(dst, subtype, data)
}

// AppendElement inserts one or more already-encoded elements (header+value,
// as produced by the AppendXElement helpers) into doc just before its
// trailing NUL, patching the length prefix. Used by callers building up a
// command document incrementally (lsid, $clusterTime, read/write concern)
// after the base command has already been fully marshaled.
func AppendElement(doc Document, elems ...[]byte) Document {
	body := doc[:len(doc)-1]
	for _, e := range elems {
		body = append(body, e...)
	}
	body = append(body, 0x00)
	return Document(UpdateLength(body, 0, int32(len(body))))
}

// Index retrieves the element at the given zero-based position among d's
// elements. This method will panic if the document is invalid or index is
// out of range.
func (d Document) Index(index uint) Element {
	elems, err := d.Elements()
	if err != nil {
		panic(err)
	}
	if index >= uint(len(elems)) {
		panic(fmt.Errorf("index %d out of bounds (document has %d elements)", index, len(elems)))
	}
	return elems[index]
}

// Elements returns the document's elements in wire order.
func (d Document) Elements() ([]Element, error) {
	length, rem, ok := ReadLength(d)
	if !ok {
		return nil, NewInsufficientBytesError(d, rem)
	}
	if int(length) > len(d) {
		return nil, lengthError("document", int(length), len(d))
	}
	var elems []Element
	remaining := length - 4
	for remaining > 1 {
		elem, next, ok := ReadElement(rem)
		if !ok {
			return elems, NewInsufficientBytesError(d, rem)
		}
		elems = append(elems, elem)
		remaining -= int32(len(elem))
		rem = next
	}
	return elems, nil
}

// Values returns the document's values, discarding keys, in wire order.
func (d Document) Values() ([]Value, error) {
	elems, err := d.Elements()
	if err != nil {
		return nil, err
	}
	vals := make([]Value, 0, len(elems))
	for _, e := range elems {
		v, err := e.ValueErr()
		if err != nil {
			return vals, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// LookupErr searches the top-level keys of d for key, returning the value
// of the first occurrence (spec.md §4.1: "first occurrence wins on keyed
// lookup").
func (d Document) LookupErr(key string) (Value, error) {
	elems, err := d.Elements()
	if err != nil {
		return Value{}, err
	}
	for _, e := range elems {
		k, err := e.KeyErr()
		if err != nil {
			continue
		}
		if k == key {
			return e.ValueErr()
		}
	}
	return Value{}, fmt.Errorf("key %q not found in document", key)
}

// Lookup searches the top-level keys of d for key, panicking if not found
// or the document is malformed.
func (d Document) Lookup(key string) Value {
	v, err := d.LookupErr(key)
	if err != nil {
		panic(err)
	}
	return v
}

// Has reports whether d has a top-level key equal to key.
func (d Document) Has(key string) bool {
	_, err := d.LookupErr(key)
	return err == nil
}

// Len returns the declared length of d.
func (d Document) Len() int32 {
	length, _, ok := ReadLength(d)
	if !ok {
		return 0
	}
	return length
}

// Validate walks d, checking that the declared length matches the buffer,
// every key is a well-formed cstring, and every element's value body is
// structurally valid for its declared type, recursing into embedded
// documents and arrays. This is the decode-time enforcement of spec.md
// §4.1's InvalidBSON failure conditions.
func (d Document) Validate() error {
	length, rem, ok := ReadLength(d)
	if !ok {
		return NewInsufficientBytesError(d, rem)
	}
	if length < EmptyDocumentLength {
		return lengthError("document", int(length), len(d))
	}
	if int(length) > len(d) {
		return lengthError("document", int(length), len(d))
	}
	if d[length-1] != 0x00 {
		return ErrMissingNull
	}

	remaining := length - 4
	for remaining > 1 {
		elem, next, ok := ReadElement(rem)
		if !ok {
			return NewInsufficientBytesError(d, rem)
		}
		if err := elem.Validate(); err != nil {
			return err
		}
		remaining -= int32(len(elem))
		rem = next
	}
	if len(rem) < 1 || rem[0] != 0x00 {
		return ErrMissingNull
	}
	return nil
}

// DebugString outputs a human readable version of d, degrading gracefully
// on malformed input rather than erroring.
func (d Document) DebugString() string {
	if len(d) < EmptyDocumentLength {
		return "<malformed>"
	}
	var buf bytes.Buffer
	buf.WriteString("Document")
	length, rem, _ := ReadLength(d)
	buf.WriteByte('(')
	buf.WriteString(strconv.Itoa(int(length)))
	buf.WriteString(")")
	buf.WriteByte('{')

	remaining := length - 4
	first := true
	for remaining > 1 {
		elem, next, ok := ReadElement(rem)
		if !ok {
			buf.WriteString(fmt.Sprintf("<malformed (%d)>", remaining))
			break
		}
		if !first {
			buf.WriteByte(',')
		}
		buf.WriteString(elem.DebugString())
		remaining -= int32(len(elem))
		rem = next
		first = false
	}
	buf.WriteByte('}')
	return buf.String()
}

// String outputs an extended-JSON-ish version of d. Returns the empty
// string if d is not valid.
func (d Document) String() string {
	if err := d.Validate(); err != nil {
		return ""
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	elems, _ := d.Elements()
	for i, e := range elems {
		if i != 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(e.String())
	}
	buf.WriteByte('}')
	return buf.String()
}

// Copy returns a deep copy of d.
func (d Document) Copy() Document {
	cp := make(Document, len(d))
	copy(cp, d)
	return cp
}

// Equal reports whether d and d2 are byte-identical.
func (d Document) Equal(d2 Document) bool {
	return bytes.Equal(d, d2)
}
