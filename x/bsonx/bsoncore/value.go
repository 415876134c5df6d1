// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsoncore

import (
	"fmt"
	"time"

	"go.nodedb.dev/driver/bson/bsontype"
)

// Value represents a decoded BSON value: a type tag paired with the raw
// bytes of its body (excluding the tag and any key).
type Value struct {
	Type bsontype.Type
	Data []byte
}

// Validate ensures v.Data is a structurally valid encoding of v.Type.
func (v Value) Validate() error {
	_, rem, ok := readValueBody(v.Type, v.Data)
	if !ok {
		return NewInsufficientBytesError(v.Data, rem)
	}
	if len(rem) != 0 {
		return fmt.Errorf("trailing bytes after %s value", v.Type)
	}
	return nil
}

// readValueBody reads one value of type t from the front of b, returning
// the bytes actually consumed (not the remainder of b as a whole) alongside
// what followed it.
func readValueBody(t bsontype.Type, b []byte) (consumed []byte, rem []byte, ok bool) {
	start := len(b)
	switch t {
	case bsontype.Double:
		_, rem, ok = readDouble(b)
	case bsontype.String, bsontype.JavaScript, bsontype.Symbol:
		_, rem, ok = readString(b)
	case bsontype.EmbeddedDocument, bsontype.Array:
		var length int32
		length, _, ok = readi32(b)
		if ok && int(length) <= len(b) && length >= 5 {
			rem = b[length:]
		} else {
			ok = false
		}
	case bsontype.Binary:
		_, _, rem, ok = readBinary(b)
	case bsontype.Undefined, bsontype.Null, bsontype.MinKey, bsontype.MaxKey:
		rem, ok = b, true
	case bsontype.ObjectID:
		_, rem, ok = readObjectID(b)
	case bsontype.Boolean:
		_, rem, ok = readBoolean(b)
	case bsontype.DateTime:
		_, rem, ok = readi64(b)
	case bsontype.Regex:
		_, _, rem, ok = readRegex(b)
	case bsontype.DBPointer:
		_, _, rem, ok = readDBPointer(b)
	case bsontype.CodeWithScope:
		_, _, rem, ok = readCodeWithScope(b)
	case bsontype.Int32:
		_, rem, ok = readi32(b)
	case bsontype.Timestamp:
		_, _, rem, ok = readTimestamp(b)
	case bsontype.Int64:
		_, rem, ok = readi64(b)
	case bsontype.Decimal128:
		_, _, rem, ok = readDecimal128(b)
	default:
		return nil, b, false
	}
	if !ok {
		return nil, b, false
	}
	consumed = b[:start-len(rem)]
	return consumed, rem, true
}

// String implements extended-JSON-ish stringification, sufficient for
// diagnostics and DebugString callers; it is not a canonical extJSON
// encoder (that lives in package bson).
func (v Value) String() string {
	switch v.Type {
	case bsontype.Double:
		f, _, _ := readDouble(v.Data)
		return fmt.Sprintf("%v", f)
	case bsontype.String, bsontype.JavaScript, bsontype.Symbol:
		s, _, _ := readString(v.Data)
		return fmt.Sprintf("%q", s)
	case bsontype.EmbeddedDocument:
		return Document(v.Data).String()
	case bsontype.Array:
		return Array(v.Data).String()
	case bsontype.Binary:
		st, data, _, _ := readBinary(v.Data)
		return fmt.Sprintf("Binary(%d, %x)", st, data)
	case bsontype.Boolean:
		b, _, _ := readBoolean(v.Data)
		return fmt.Sprintf("%v", b)
	case bsontype.Null:
		return "null"
	case bsontype.ObjectID:
		oid, _, _ := readObjectID(v.Data)
		return fmt.Sprintf("ObjectID(%x)", oid)
	case bsontype.Int32:
		i, _, _ := readi32(v.Data)
		return fmt.Sprintf("%d", i)
	case bsontype.Int64:
		i, _, _ := readi64(v.Data)
		return fmt.Sprintf("%d", i)
	default:
		return fmt.Sprintf("<%s>", v.Type)
	}
}

// IsNumber reports whether v is one of the numeric BSON types.
func (v Value) IsNumber() bool {
	switch v.Type {
	case bsontype.Double, bsontype.Int32, bsontype.Int64, bsontype.Decimal128:
		return true
	default:
		return false
	}
}

// Double reads v.Data as a float64. It does not check v.Type; it panics
// only if v.Data is shorter than 8 bytes.
func (v Value) Double() float64 {
	f, _, ok := readDouble(v.Data)
	if !ok {
		panic("not a double")
	}
	return f
}

// StringValue reads v.Data as a string body (the shape shared by string,
// javascript, and symbol). It does not check v.Type; it panics only if
// v.Data is not a well-formed string body.
func (v Value) StringValue() string {
	s, _, ok := readString(v.Data)
	if !ok {
		panic("not a string")
	}
	return s
}

// Document returns v.Data as a Document. It does not check v.Type and does
// not panic; DocumentOK is the form that checks the type.
func (v Value) Document() Document {
	return Document(v.Data)
}

// ArrayValue returns v.Data as an Array. It does not check v.Type and does
// not panic.
func (v Value) ArrayValue() Array {
	return Array(v.Data)
}

// Boolean reads v.Data as a bool. It does not check v.Type; it panics only
// if the first byte of v.Data is missing or is neither 0x00 nor 0x01.
func (v Value) Boolean() bool {
	b, _, ok := readBoolean(v.Data)
	if !ok {
		panic("not a boolean")
	}
	return b
}

// Int32 reads v.Data as an int32. It does not check v.Type; it panics only
// if v.Data is shorter than 4 bytes.
func (v Value) Int32() int32 {
	i, _, ok := readi32(v.Data)
	if !ok {
		panic("not an int32")
	}
	return i
}

// Int64 reads v.Data as an int64. It does not check v.Type; it panics only
// if v.Data is shorter than 8 bytes.
func (v Value) Int64() int64 {
	i, _, ok := readi64(v.Data)
	if !ok {
		panic("not an int64")
	}
	return i
}

// DateTime reads v.Data as milliseconds since the Unix epoch. It does not
// check v.Type; it panics only if v.Data is shorter than 8 bytes.
func (v Value) DateTime() int64 {
	i, _, ok := readi64(v.Data)
	if !ok {
		panic("not a datetime")
	}
	return i
}

// ObjectID reads v.Data as a 12-byte ObjectID. It does not check v.Type; it
// panics only if v.Data is shorter than 12 bytes.
func (v Value) ObjectID() [12]byte {
	oid, _, ok := readObjectID(v.Data)
	if !ok {
		panic("not an objectID")
	}
	return oid
}

// BinaryValue reads v.Data as a binary subtype and payload. It does not
// check v.Type; it panics only if v.Data is not a well-formed binary body.
func (v Value) BinaryValue() (subtype byte, data []byte) {
	st, d, _, ok := readBinary(v.Data)
	if !ok {
		panic("not binary")
	}
	return st, d
}

// TimestampValue reads v.Data as a (t, i) pair. It does not check v.Type;
// it panics only if v.Data is shorter than 8 bytes.
func (v Value) TimestampValue() (t, i uint32) {
	t, i, _, ok := readTimestamp(v.Data)
	if !ok {
		panic("not a timestamp")
	}
	return t, i
}

// Decimal128 reads v.Data as high/low halves. It does not check v.Type; it
// panics only if v.Data is shorter than 16 bytes.
func (v Value) Decimal128() (hi, lo uint64) {
	hi, lo, _, ok := readDecimal128(v.Data)
	if !ok {
		panic("not a decimal128")
	}
	return hi, lo
}

// RegexValue reads v.Data as a pattern and options. It does not check
// v.Type; it panics only if v.Data does not hold two NUL-terminated strings.
func (v Value) RegexValue() (pattern, options string) {
	p, o, _, ok := readRegex(v.Data)
	if !ok {
		panic("not a regex")
	}
	return p, o
}

// StringValueOK is the non-panicking form of StringValue.
func (v Value) StringValueOK() (string, bool) {
	s, _, ok := readString(v.Data)
	return s, ok
}

// AsInt64OK converts any numeric BSON type to an int64, reporting false
// for a non-numeric value or a double that does not round-trip losslessly.
func (v Value) AsInt64OK() (int64, bool) {
	switch v.Type {
	case bsontype.Int32:
		i, _, ok := readi32(v.Data)
		return int64(i), ok
	case bsontype.Int64:
		return readi64Ok(v.Data)
	case bsontype.Double:
		f, _, ok := readDouble(v.Data)
		if !ok || float64(int64(f)) != f {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

func readi64Ok(b []byte) (int64, bool) {
	i, _, ok := readi64(b)
	return i, ok
}

// ObjectIDValueOK is the non-panicking form of ObjectID.
func (v Value) ObjectIDValueOK() ([12]byte, bool) {
	oid, _, ok := readObjectID(v.Data)
	return oid, ok
}

// DateTimeValueOK returns v as a time.Time, the non-panicking form of
// DateTime.
func (v Value) DateTimeValueOK() (time.Time, bool) {
	i, _, ok := readi64(v.Data)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(i).UTC(), true
}

// DocumentOK is the non-panicking form of Document.
func (v Value) DocumentOK() (Document, error) {
	if v.Type != bsontype.EmbeddedDocument {
		return nil, fmt.Errorf("not a document: %s", v.Type)
	}
	return Document(v.Data), nil
}

func values(a Array) ([]Value, error) {
	length, rem, ok := ReadLength(a)
	if !ok {
		return nil, NewInsufficientBytesError(a, rem)
	}
	if int(length) > len(a) {
		return nil, lengthError("array", int(length), len(a))
	}
	var vals []Value
	idx := uint(0)
	remBytes := int32(len(a)) - 4
	for remBytes > 1 {
		elem, next, ok := ReadElement(rem)
		if !ok {
			return vals, NewInsufficientBytesError(a, rem)
		}
		if err := elem.Validate(); err != nil {
			return vals, err
		}
		key, _ := elem.KeyErr()
		if key != fmt.Sprintf("%d", idx) {
			return vals, fmt.Errorf("array key %q is not canonical index %d", key, idx)
		}
		val, _ := elem.ValueErr()
		vals = append(vals, val)
		remBytes -= int32(len(elem))
		rem = next
		idx++
	}
	return vals, nil
}

func indexErr(a Array, index uint) (Element, error) {
	vals, err := values(a)
	if err != nil && uint(len(vals)) <= index {
		return nil, err
	}
	if index >= uint(len(vals)) {
		return nil, fmt.Errorf("index %d out of bounds (array has %d elements)", index, len(vals))
	}
	v := vals[index]
	elem := make(Element, 0)
	elem = AppendHeader(elem, v.Type, fmt.Sprintf("%d", index))
	elem = append(elem, v.Data...)
	return elem, nil
}
