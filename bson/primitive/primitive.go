// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package primitive

import (
	"fmt"
	"time"
)

// DateTime represents the BSON datetime value, milliseconds since the Unix
// epoch. It is a distinct type from time.Time so that coder strategies
// (SPEC_FULL.md §4.1) can govern the conversion between the two explicitly.
type DateTime int64

// NewDateTimeFromTime truncates t to millisecond precision and wraps it in a
// DateTime.
func NewDateTimeFromTime(t time.Time) DateTime {
	return DateTime(t.Unix()*1000 + int64(t.Nanosecond()/1e6))
}

// Time converts dt back to a time.Time in the UTC location.
func (dt DateTime) Time() time.Time {
	return time.Unix(int64(dt)/1000, int64(dt)%1000*1e6).UTC()
}

// MinKey and MaxKey are sentinel comparison values: every BSON value sorts
// greater than MinKey and less than MaxKey.
type (
	MinKeyType struct{}
	MaxKeyType struct{}
)

var (
	MinKey MinKeyType
	MaxKey MaxKeyType
)

// Undefined represents the deprecated BSON undefined type.
type Undefined struct{}

// Null represents the BSON null value distinct from a missing key.
type Null struct{}

// Symbol is the deprecated BSON symbol type; the driver encodes it with the
// symbol type tag, not as a string, and preserves it distinctly on
// round-trip decode.
type Symbol string

// JavaScript is BSON code without a scope document.
type JavaScript string

// CodeWithScope is BSON code paired with a scope document in which it
// should be evaluated.
type CodeWithScope struct {
	Code  JavaScript
	Scope interface{}
}

// DBPointer is the deprecated BSON database-pointer type: a namespace and
// the ObjectID of the pointed-to document.
type DBPointer struct {
	DB      string
	Pointer ObjectID
}

// Binary is a BSON binary value: an untyped payload tagged with a subtype.
// Subtype 0x02 (legacy binary) carries an additional inner length prefix
// that is preserved verbatim on round-trip per spec.md §4.1.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Binary subtypes recognised by the wire format.
const (
	BinaryGeneric     byte = 0x00
	BinaryFunction    byte = 0x01
	BinaryBinaryOld   byte = 0x02
	BinaryUUIDOld     byte = 0x03
	BinaryUUID        byte = 0x04
	BinaryMD5         byte = 0x05
	BinaryEncrypted   byte = 0x06
	BinaryColumn      byte = 0x07
	BinaryUserDefined byte = 0x80
)

func (b Binary) Equal(b2 Binary) bool {
	if b.Subtype != b2.Subtype || len(b.Data) != len(b2.Data) {
		return false
	}
	for i := range b.Data {
		if b.Data[i] != b2.Data[i] {
			return false
		}
	}
	return true
}

func (b Binary) String() string {
	return fmt.Sprintf("Binary(%d, %x)", b.Subtype, b.Data)
}

// Regex is a BSON regular expression: a pattern and Perl-style option
// string, both cstrings on the wire (no embedded NUL).
type Regex struct {
	Pattern string
	Options string
}

func (r Regex) String() string {
	return fmt.Sprintf("/%s/%s", r.Pattern, r.Options)
}

// Equal reports whether r and r2 carry the same pattern and options.
func (r Regex) Equal(r2 Regex) bool {
	return r.Pattern == r2.Pattern && r.Options == r2.Options
}

// Timestamp is the internal BSON timestamp type used for cluster-time and
// oplog sequencing: an unsigned seconds component and a per-second
// increment, compared lexicographically on (T, I) per spec.md §4.7.
type Timestamp struct {
	T uint32
	I uint32
}

// CompareTimestamp returns -1, 0, or 1 as a is less than, equal to, or
// greater than b, ordered lexicographically on (T, I).
func CompareTimestamp(a, b Timestamp) int {
	switch {
	case a.T != b.T:
		if a.T < b.T {
			return -1
		}
		return 1
	case a.I != b.I:
		if a.I < b.I {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// E represents a BSON document field: a key paired with a value. It is the
// element type of a D.
type E struct {
	Key   string
	Value interface{}
}

// D is an ordered BSON document representation; unlike a Go map, the field
// order supplied by the caller is preserved on encode, matching spec.md's
// requirement that key order survive a round-trip.
type D []E

// M is an unordered BSON document representation backed by a Go map, for
// callers that do not care about field order.
type M map[string]interface{}

// A is a BSON array.
type A []interface{}

// Map converts d into an M, discarding its field order.
func (d D) Map() M {
	m := make(M, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}
