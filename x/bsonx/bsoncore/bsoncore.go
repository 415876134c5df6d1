// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bsoncore contains a zero-allocation-friendly, raw []byte view of
// BSON documents, arrays, elements, and values. It implements spec.md §4.1's
// wire layout directly: callers that need structural access without paying
// for a full decode into Go types use this package; the higher-level bson
// package is built on top of it.
package bsoncore

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"go.nodedb.dev/driver/bson/bsontype"
)

// ErrMissingNull is returned when a document or cstring is not terminated by
// the expected trailing NUL byte.
var ErrMissingNull = fmt.Errorf("invalid document: missing null terminator")

// ErrInvalidLength is returned when the declared document length does not
// fit the available bytes.
var ErrInvalidLength = fmt.Errorf("invalid document: length mismatch")

// NewInsufficientBytesError indicates the buffer does not contain enough
// bytes to read the structure being decoded; it carries the original slice
// and what remained when the error occurred.
func NewInsufficientBytesError(original, remaining []byte) error {
	return InsufficientBytesError{Original: original, Remaining: remaining}
}

// InsufficientBytesError is returned when a document, array, or value is
// truncated mid-structure.
type InsufficientBytesError struct {
	Original, Remaining []byte
}

func (ibe InsufficientBytesError) Error() string {
	return "too few bytes to fit value"
}

// ErrorsEqual reports whether two errors returned by this package represent
// the same failure, ignoring the captured buffer contents.
func ErrorsEqual(err1, err2 error) bool {
	if err1 == nil && err2 == nil {
		return true
	}
	if err1 == nil || err2 == nil {
		return false
	}
	ibe1, ok1 := err1.(InsufficientBytesError)
	ibe2, ok2 := err2.(InsufficientBytesError)
	if ok1 && ok2 {
		return len(ibe1.Remaining) == len(ibe2.Remaining)
	}
	return err1.Error() == err2.Error()
}

func lengthError(structure string, length, rem int) error {
	return fmt.Errorf("invalid %s length: have %d bytes, length claims %d", structure, rem, length)
}

// ReadLength reads the first 4 bytes of b as a little-endian int32 and
// returns the remaining bytes.
func ReadLength(b []byte) (int32, []byte, bool) {
	return readi32(b)
}

func readi32(b []byte) (int32, []byte, bool) {
	if len(b) < 4 {
		return 0, b, false
	}
	return int32(binary.LittleEndian.Uint32(b)), b[4:], true
}

// AppendLength appends length as a little-endian int32 and returns the
// extended slice; a placeholder written this way can later be patched via
// UpdateLength.
func AppendLength(dst []byte, length int32) []byte {
	return appendi32(dst, length)
}

func appendi32(dst []byte, i32 int32) []byte {
	return append(dst, byte(i32), byte(i32>>8), byte(i32>>16), byte(i32>>24))
}

func appendi64(dst []byte, i64 int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(i64))
	return append(dst, b...)
}

func readi64(b []byte) (int64, []byte, bool) {
	if len(b) < 8 {
		return 0, b, false
	}
	return int64(binary.LittleEndian.Uint64(b)), b[8:], true
}

func appendu32(dst []byte, u32 uint32) []byte {
	return append(dst, byte(u32), byte(u32>>8), byte(u32>>16), byte(u32>>24))
}

func readu32(b []byte) (uint32, []byte, bool) {
	if len(b) < 4 {
		return 0, b, false
	}
	return binary.LittleEndian.Uint32(b), b[4:], true
}

// UpdateLength writes length, little-endian, at position index in dst.
func UpdateLength(dst []byte, index, length int32) []byte {
	binary.LittleEndian.PutUint32(dst[index:], uint32(length))
	return dst
}

// AppendType appends the single type-tag byte t.
func AppendType(dst []byte, t bsontype.Type) []byte {
	return append(dst, byte(t))
}

// AppendKey appends key as a NUL-terminated cstring, the on-wire form of a
// document field name.
func AppendKey(dst []byte, key string) []byte {
	return append(append(dst, key...), 0x00)
}

// AppendHeader appends a type tag followed by a key, the common prefix of
// every encoded element.
func AppendHeader(dst []byte, t bsontype.Type, key string) []byte {
	dst = AppendType(dst, t)
	dst = AppendKey(dst, key)
	return dst
}

func readkey(b []byte) (string, []byte, bool) {
	idx := indexNUL(b)
	if idx < 0 {
		return "", b, false
	}
	return string(b[:idx]), b[idx+1:], true
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0x00 {
			return i
		}
	}
	return -1
}

func readcstringBytes(b []byte) ([]byte, []byte, bool) {
	idx := indexNUL(b)
	if idx < 0 {
		return nil, b, false
	}
	return b[:idx], b[idx+1:], true
}

// AppendDouble appends a BSON double.
func AppendDouble(dst []byte, f float64) []byte {
	return appendi64(dst, int64(math.Float64bits(f)))
}

func readDouble(b []byte) (float64, []byte, bool) {
	i, rem, ok := readi64(b)
	return math.Float64frombits(uint64(i)), rem, ok
}

// AppendString appends a BSON string: a length-prefixed, NUL-terminated
// UTF-8 byte sequence where the length includes the trailing NUL.
func AppendString(dst []byte, s string) []byte {
	dst = appendi32(dst, int32(len(s)+1))
	dst = append(dst, s...)
	return append(dst, 0x00)
}

func readString(b []byte) (string, []byte, bool) {
	length, rem, ok := readi32(b)
	if !ok || length < 1 || int(length) > len(rem) {
		return "", b, false
	}
	if rem[length-1] != 0x00 {
		return "", b, false
	}
	return string(rem[:length-1]), rem[length:], true
}

// AppendBoolean appends a BSON boolean.
func AppendBoolean(dst []byte, b bool) []byte {
	if b {
		return append(dst, 0x01)
	}
	return append(dst, 0x00)
}

func readBoolean(b []byte) (bool, []byte, bool) {
	if len(b) < 1 || (b[0] != 0x00 && b[0] != 0x01) {
		return false, b, false
	}
	return b[0] == 0x01, b[1:], true
}

// AppendInt32 appends a BSON 32-bit integer.
func AppendInt32(dst []byte, i32 int32) []byte { return appendi32(dst, i32) }

// AppendInt64 appends a BSON 64-bit integer.
func AppendInt64(dst []byte, i64 int64) []byte { return appendi64(dst, i64) }

// AppendDateTime appends a BSON UTC datetime: milliseconds since the Unix
// epoch, signed.
func AppendDateTime(dst []byte, dt int64) []byte { return appendi64(dst, dt) }

// AppendTimestamp appends a BSON timestamp: an increment then a time, both
// unsigned 32-bit, matching spec.md §3's (seconds:u32, inc:u32) with the
// increment encoded first on the wire.
func AppendTimestamp(dst []byte, t, i uint32) []byte {
	dst = appendu32(dst, i)
	dst = appendu32(dst, t)
	return dst
}

func readTimestamp(b []byte) (t uint32, i uint32, rem []byte, ok bool) {
	i, rem, ok = readu32(b)
	if !ok {
		return 0, 0, b, false
	}
	t, rem, ok = readu32(rem)
	return t, i, rem, ok
}

// AppendDecimal128 appends a BSON decimal128 value, low 64 bits first.
func AppendDecimal128(dst []byte, hi, lo uint64) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], lo)
	binary.LittleEndian.PutUint64(b[8:16], hi)
	return append(dst, b...)
}

func readDecimal128(b []byte) (hi, lo uint64, rem []byte, ok bool) {
	if len(b) < 16 {
		return 0, 0, b, false
	}
	lo = binary.LittleEndian.Uint64(b[0:8])
	hi = binary.LittleEndian.Uint64(b[8:16])
	return hi, lo, b[16:], true
}

// AppendObjectID appends a 12-byte ObjectID.
func AppendObjectID(dst []byte, oid [12]byte) []byte {
	return append(dst, oid[:]...)
}

func readObjectID(b []byte) ([12]byte, []byte, bool) {
	var oid [12]byte
	if len(b) < 12 {
		return oid, b, false
	}
	copy(oid[:], b[:12])
	return oid, b[12:], true
}

// AppendBinary appends a BSON binary value. Subtype 0x02 is encoded with
// its legacy inner length prefix preserved, per spec.md §4.1.
func AppendBinary(dst []byte, subtype byte, data []byte) []byte {
	if subtype == 0x02 {
		dst = appendi32(dst, int32(len(data)+4))
		dst = append(dst, subtype)
		dst = appendi32(dst, int32(len(data)))
		return append(dst, data...)
	}
	dst = appendi32(dst, int32(len(data)))
	dst = append(dst, subtype)
	return append(dst, data...)
}

func readBinary(b []byte) (subtype byte, data []byte, rem []byte, ok bool) {
	length, rem, ok := readi32(b)
	if !ok || length < 0 || int(length) > len(rem) {
		return 0, nil, b, false
	}
	if len(rem) < 1 {
		return 0, nil, b, false
	}
	subtype = rem[0]
	rem = rem[1:]
	if subtype == 0x02 {
		innerLen, inner, ok2 := readi32(rem)
		if !ok2 || innerLen != length-4 || int(innerLen) > len(inner) {
			return 0, nil, b, false
		}
		data = inner[:innerLen]
		return subtype, data, inner[innerLen:], true
	}
	if int(length) > len(rem) {
		return 0, nil, b, false
	}
	data = rem[:length]
	return subtype, data, rem[length:], true
}

// AppendRegex appends a BSON regular expression: pattern then options, both
// NUL-terminated cstrings.
func AppendRegex(dst []byte, pattern, options string) []byte {
	dst = append(dst, pattern...)
	dst = append(dst, 0x00)
	dst = append(dst, options...)
	return append(dst, 0x00)
}

func readRegex(b []byte) (pattern, options string, rem []byte, ok bool) {
	p, rem, ok := readcstringBytes(b)
	if !ok {
		return "", "", b, false
	}
	o, rem, ok := readcstringBytes(rem)
	if !ok {
		return "", "", b, false
	}
	return string(p), string(o), rem, true
}

// AppendDBPointer appends the deprecated BSON DBPointer type.
func AppendDBPointer(dst []byte, ns string, oid [12]byte) []byte {
	dst = AppendString(dst, ns)
	return AppendObjectID(dst, oid)
}

func readDBPointer(b []byte) (ns string, oid [12]byte, rem []byte, ok bool) {
	ns, rem, ok = readString(b)
	if !ok {
		return "", oid, b, false
	}
	oid, rem, ok = readObjectID(rem)
	return ns, oid, rem, ok
}

// AppendJavaScript appends BSON code (no scope): the same wire shape as a
// string.
func AppendJavaScript(dst []byte, code string) []byte { return AppendString(dst, code) }

// AppendSymbol appends the deprecated BSON symbol type: the same wire shape
// as a string.
func AppendSymbol(dst []byte, symbol string) []byte { return AppendString(dst, symbol) }

// AppendCodeWithScope appends BSON code with an associated scope document.
// The outer length covers the code string and the scope document together.
func AppendCodeWithScope(dst []byte, code string, scope []byte) []byte {
	idx := len(dst)
	dst = appendi32(dst, 0)
	dst = AppendString(dst, code)
	dst = append(dst, scope...)
	dst = UpdateLength(dst, int32(idx), int32(len(dst)-idx))
	return dst
}

func readCodeWithScope(b []byte) (code string, scope []byte, rem []byte, ok bool) {
	total, body, ok := readi32(b)
	if !ok || int(total) > len(b) || total < 4 {
		return "", nil, b, false
	}
	full := b[:total]
	_ = body
	afterLen := b[4:total]
	code, after, ok := readString(afterLen)
	if !ok {
		return "", nil, b, false
	}
	scope = after
	_ = full
	return code, scope, b[total:], true
}

// newBufferFromReader reads a length-prefixed BSON structure (document or
// array) in its entirety from r.
func newBufferFromReader(r io.Reader) ([]byte, error) {
	var lengthBytes [4]byte
	_, err := io.ReadFull(r, lengthBytes[:])
	if err != nil {
		return nil, err
	}
	length := int32(binary.LittleEndian.Uint32(lengthBytes[:]))
	if length < 4 {
		return nil, ErrInvalidLength
	}
	buf := make([]byte, length)
	copy(buf, lengthBytes[:])
	_, err = io.ReadFull(r, buf[4:])
	if err != nil {
		return nil, err
	}
	return buf, nil
}
