// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package primitive contains the BSON scalar types that have no natural Go
// analogue: ObjectID, Decimal128, DateTime, Timestamp, Binary, Regex,
// JavaScript/Symbol/CodeWithScope, DBPointer, and the MinKey/MaxKey/
// Undefined/Null sentinels.
package primitive

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ObjectIDLen is the number of bytes in an ObjectID.
const ObjectIDLen = 12

// ObjectID is a 12-byte identifier: 4-byte seconds-since-epoch timestamp,
// 5-byte process-unique random value, 3-byte big-endian counter.
type ObjectID [ObjectIDLen]byte

// NilObjectID is the zero-value ObjectID.
var NilObjectID ObjectID

var objectIDProcessUnique = computeProcessUnique()
var objectIDCounter = randomUint32()

// NewObjectID returns a new ObjectID seeded with the current time.
func NewObjectID() ObjectID {
	return NewObjectIDFromTimestamp(time.Now())
}

// NewObjectIDFromTimestamp returns a new ObjectID whose embedded timestamp
// is t, truncated to seconds.
func NewObjectIDFromTimestamp(t time.Time) ObjectID {
	var oid ObjectID
	binary.BigEndian.PutUint32(oid[0:4], uint32(t.Unix()))
	copy(oid[4:9], objectIDProcessUnique[:])
	putUint24(oid[9:12], atomic.AddUint32(&objectIDCounter, 1))
	return oid
}

func computeProcessUnique() [5]byte {
	var b [5]byte
	_, err := rand.Read(b[:])
	if err != nil {
		panic(fmt.Errorf("cannot initialize objectid package: %w", err))
	}
	return b
}

func randomUint32() uint32 {
	var b [4]byte
	_, err := rand.Read(b[:])
	if err != nil {
		panic(fmt.Errorf("cannot initialize objectid package: %w", err))
	}
	return binary.BigEndian.Uint32(b[:])
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// Timestamp returns the timestamp portion of the ObjectID.
func (id ObjectID) Timestamp() time.Time {
	unixSecs := binary.BigEndian.Uint32(id[0:4])
	return time.Unix(int64(unixSecs), 0).UTC()
}

// Hex returns the hex encoding of id as a string.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String returns a human-readable rendering of id.
func (id ObjectID) String() string {
	return fmt.Sprintf("ObjectID(%q)", id.Hex())
}

// IsZero returns true if id is the zero ObjectID.
func (id ObjectID) IsZero() bool {
	return id == NilObjectID
}

// ErrInvalidHex is returned when a hex string is not a valid ObjectID.
var ErrInvalidHex = errors.New("the provided hex string is not a valid ObjectID")

// ObjectIDFromHex parses s, a 24-character hex string, into an ObjectID.
func ObjectIDFromHex(s string) (ObjectID, error) {
	if len(s) != 2*ObjectIDLen {
		return NilObjectID, ErrInvalidHex
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return NilObjectID, err
	}
	var oid ObjectID
	copy(oid[:], b)
	return oid, nil
}

// IsValidObjectID returns true if s is a valid, parseable ObjectID hex
// string. It is provided for callers migrating from loosely-typed document
// fields.
func IsValidObjectID(s string) bool {
	_, err := ObjectIDFromHex(s)
	return err == nil
}

// MarshalText implements the encoding.TextMarshaler interface.
func (id ObjectID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (id *ObjectID) UnmarshalText(b []byte) error {
	oid, err := ObjectIDFromHex(string(b))
	if err != nil {
		return err
	}
	*id = oid
	return nil
}
