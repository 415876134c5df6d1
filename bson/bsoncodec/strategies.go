// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bsoncodec holds the configuration surface of the schema-driven
// coder layer described in spec.md §4.1's strategies table: how application
// types (time.Time, UUIDs, raw byte slices, numeric types) map onto BSON
// wire types. Changing a Strategy never changes on-disk data; it changes
// how values move between the BSON layer and user types.
package bsoncodec

// DateMode selects how a time.Time is represented on the wire.
type DateMode int

// Recognised DateModes, matching spec.md §4.1's Date row.
const (
	// DateModeWireDateTime stores the value as a native BSON UTC datetime
	// (milliseconds since epoch, signed 64-bit). This is the default and
	// the only lossless wire-native representation.
	DateModeWireDateTime DateMode = iota
	// DateModeInt64Millis stores milliseconds since epoch as a BSON int64.
	DateModeInt64Millis
	// DateModeInt64Seconds stores seconds since epoch as a BSON int64.
	DateModeInt64Seconds
	// DateModeFloat64Millis stores milliseconds since epoch as a BSON double.
	DateModeFloat64Millis
	// DateModeFloat64Seconds stores seconds since epoch as a BSON double.
	DateModeFloat64Seconds
	// DateModeString stores an RFC3339 (ISO-8601) string.
	DateModeString
)

// UUIDMode selects how a 16-byte UUID value is represented on the wire.
type UUIDMode int

// Recognised UUIDModes, matching spec.md §4.1's UUID row.
const (
	// UUIDModeBinary04 stores the UUID as BSON binary subtype 0x04
	// (the modern, RFC 4122 subtype). Default.
	UUIDModeBinary04 UUIDMode = iota
	// UUIDModeBinary03Legacy stores the UUID as BSON binary subtype 0x03
	// with legacy (non-standard) byte order, for interop with old data.
	UUIDModeBinary03Legacy
	// UUIDModeString stores the UUID as its 36-character hyphenated string
	// form.
	UUIDModeString
)

// BytesMode selects how a []byte value is represented on the wire.
type BytesMode int

// Recognised BytesModes, matching spec.md §4.1's Bytes row.
const (
	// BytesModeBinarySubtype0 stores raw bytes as BSON binary subtype 0x00.
	// Default.
	BytesModeBinarySubtype0 BytesMode = iota
	// BytesModeBase64String stores raw bytes as a base64-encoded string.
	BytesModeBase64String
	// BytesModeDeferred leaves the decision to a registered type-specific
	// codec instead of applying a blanket strategy; encoding []byte with
	// no such codec registered is an error in this mode.
	BytesModeDeferred
)

// Strategies bundles the coder-layer configuration described in spec.md
// §4.1. Numbers are always encoded/decoded losslessly: a narrowing
// conversion that would lose value (e.g. float64 1.5 into an int field, or
// an int64 into an int32 field that overflows) is always rejected,
// regardless of the other strategy settings.
type Strategies struct {
	Date  DateMode
	UUID  UUIDMode
	Bytes BytesMode
}

// DefaultStrategies returns the coder layer's default configuration:
// wire-native datetimes, binary-subtype-4 UUIDs, binary-subtype-0 bytes.
func DefaultStrategies() Strategies {
	return Strategies{
		Date:  DateModeWireDateTime,
		UUID:  UUIDModeBinary04,
		Bytes: BytesModeBinarySubtype0,
	}
}
