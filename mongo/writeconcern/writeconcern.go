// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package writeconcern carries the w/j/wtimeout triple attached to a
// write command.
package writeconcern

import (
	"fmt"
	"time"

	"go.nodedb.dev/driver/bson"
	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

// WriteConcern describes the acknowledgement a write command requires.
type WriteConcern struct {
	W        interface{} // nil, int, or string (e.g. "majority")
	Journal  *bool
	WTimeout time.Duration
}

// Majority returns a WriteConcern requiring acknowledgement from a
// majority of voting members.
func Majority() *WriteConcern { return &WriteConcern{W: "majority"} }

// W1 returns a WriteConcern requiring only primary acknowledgement.
func W1() *WriteConcern { return &WriteConcern{W: 1} }

// Acknowledged reports whether the concern requires any server
// acknowledgement at all (w=0 means fire-and-forget).
func (wc *WriteConcern) Acknowledged() bool {
	if wc == nil {
		return true
	}
	if n, ok := wc.W.(int); ok {
		return n != 0
	}
	return true
}

// MarshalBSONValue encodes wc as the BSON document attached to a command's
// "writeConcern" field.
func (wc *WriteConcern) MarshalBSONValue() (primitive.D, error) {
	if wc == nil {
		return nil, nil
	}
	var d primitive.D
	switch w := wc.W.(type) {
	case nil:
	case int:
		d = append(d, primitive.E{Key: "w", Value: int32(w)})
	case string:
		d = append(d, primitive.E{Key: "w", Value: w})
	default:
		return nil, fmt.Errorf("writeconcern: unsupported w value %T", w)
	}
	if wc.Journal != nil {
		d = append(d, primitive.E{Key: "j", Value: *wc.Journal})
	}
	if wc.WTimeout > 0 {
		d = append(d, primitive.E{Key: "wtimeout", Value: int64(wc.WTimeout / time.Millisecond)})
	}
	return d, nil
}

// AppendElement appends wc's document as the "writeConcern" field of dst,
// doing nothing if wc requests no acknowledgement-carrying fields.
func AppendElement(dst bsoncore.Document, wc *WriteConcern) (bsoncore.Document, error) {
	d, err := wc.MarshalBSONValue()
	if err != nil {
		return dst, err
	}
	if len(d) == 0 {
		return dst, nil
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		return dst, err
	}
	return bsoncore.AppendDocumentElement(dst, "writeConcern", raw), nil
}
