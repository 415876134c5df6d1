// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package driver implements the wire protocol and operation executor
// shared by every command the mongo façade sends: OP_MSG framing, a
// process-wide request ID counter, compressor negotiation, and the
// six-step execute algorithm of spec.md §4.8.
package driver

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// OpCode identifies a wire protocol message kind. This driver only speaks
// OP_MSG and OP_COMPRESSED, the handshake included; OP_QUERY and OP_REPLY
// are named here but no code path sends them.
type OpCode int32

const (
	OpReply      OpCode = 1
	OpQuery      OpCode = 2004
	OpCompressed OpCode = 2012
	OpMsg        OpCode = 2013
)

func (c OpCode) String() string {
	switch c {
	case OpReply:
		return "OpReply"
	case OpQuery:
		return "OpQuery"
	case OpCompressed:
		return "OpCompressed"
	case OpMsg:
		return "OpMsg"
	default:
		return fmt.Sprintf("OpCode(%d)", int32(c))
	}
}

// OP_MSG flag bits (spec.md §4.2).
const (
	msgFlagChecksumPresent uint32 = 1 << 0
	msgFlagMoreToCome      uint32 = 1 << 1
	msgFlagExhaustAllowed  uint32 = 1 << 16
)

// Section kind bytes within an OP_MSG body.
const (
	sectionKindBody            byte = 0
	sectionKindDocumentSequence byte = 1
)

var globalRequestID int32

// NextRequestID returns the next value in the process-wide monotonically
// increasing request ID sequence (spec.md §4.2).
func NextRequestID() int32 {
	return atomic.AddInt32(&globalRequestID, 1)
}

// Header is the 16-byte prefix common to every wire protocol message.
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}

// AppendHeader appends h's wire encoding to dst. MessageLength is written
// as given; callers that only know it once the full message body is
// appended patch it in afterwards, as AppendMsg and AppendCompressed do.
func (h Header) AppendHeader(dst []byte) []byte {
	dst = appendi32(dst, h.MessageLength)
	dst = appendi32(dst, h.RequestID)
	dst = appendi32(dst, h.ResponseTo)
	dst = appendi32(dst, int32(h.OpCode))
	return dst
}

// ReadHeader parses a Header from the front of src.
func ReadHeader(src []byte) (Header, error) {
	if len(src) < 16 {
		return Header{}, fmt.Errorf("driver: header requires 16 bytes, got %d", len(src))
	}
	return Header{
		MessageLength: readi32(src[0:4]),
		RequestID:     readi32(src[4:8]),
		ResponseTo:    readi32(src[8:12]),
		OpCode:        OpCode(readi32(src[12:16])),
	}, nil
}

// AppendMsg appends an OP_MSG wire message wrapping body (a single BSON
// document, type-0 section) onto dst, fixing up the message length.
func AppendMsg(dst []byte, requestID, responseTo int32, flags uint32, body []byte) []byte {
	idx := len(dst)
	h := Header{RequestID: requestID, ResponseTo: responseTo, OpCode: OpMsg}
	dst = h.AppendHeader(dst)
	dst = appendu32(dst, flags)
	dst = append(dst, sectionKindBody)
	dst = append(dst, body...)
	binary.LittleEndian.PutUint32(dst[idx:idx+4], uint32(len(dst)-idx))
	return dst
}

// ReadMsg parses the body document out of an OP_MSG wire message whose
// header has already been validated by the caller. Only the type-0 body
// section is returned; document sequences (type 1) are not produced by
// any command this driver sends or needs to read.
func ReadMsg(src []byte) (flags uint32, body []byte, err error) {
	if len(src) < 20 {
		return 0, nil, fmt.Errorf("driver: OP_MSG requires at least 20 bytes, got %d", len(src))
	}
	flags = readu32(src[16:20])
	rest := src[20:]
	for len(rest) > 0 {
		kind := rest[0]
		rest = rest[1:]
		switch kind {
		case sectionKindBody:
			if len(rest) < 4 {
				return 0, nil, fmt.Errorf("driver: truncated OP_MSG body section")
			}
			n := readi32(rest[0:4])
			if int(n) > len(rest) {
				return 0, nil, fmt.Errorf("driver: OP_MSG body section length %d exceeds remaining %d bytes", n, len(rest))
			}
			body = rest[:n]
			rest = rest[n:]
		case sectionKindDocumentSequence:
			if len(rest) < 4 {
				return 0, nil, fmt.Errorf("driver: truncated OP_MSG document sequence section")
			}
			n := readi32(rest[0:4])
			rest = rest[n:]
		default:
			return 0, nil, fmt.Errorf("driver: unknown OP_MSG section kind %d", kind)
		}
	}
	if body == nil {
		return 0, nil, fmt.Errorf("driver: OP_MSG carried no type-0 body section")
	}
	return flags, body, nil
}

func appendi32(dst []byte, v int32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendu32(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func readi32(b []byte) int32 {
	return int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16 | int32(b[3])<<24
}

func readu32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
