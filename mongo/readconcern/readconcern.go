// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package readconcern carries a read concern level plus the
// afterClusterTime causal-consistency token (spec.md §4.7).
package readconcern

import (
	"go.nodedb.dev/driver/bson"
	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

// ReadConcern carries a level and, when causal consistency requires it,
// the afterClusterTime the command must read at or after.
type ReadConcern struct {
	Level           string
	AfterClusterTime *primitive.Timestamp
}

func Local() *ReadConcern    { return &ReadConcern{Level: "local"} }
func Majority() *ReadConcern { return &ReadConcern{Level: "majority"} }
func Linearizable() *ReadConcern { return &ReadConcern{Level: "linearizable"} }
func Snapshot() *ReadConcern { return &ReadConcern{Level: "snapshot"} }

// WithAfterClusterTime returns a copy of rc carrying ts, used by a causally
// consistent session to pin a read to a point no earlier than its last
// observed cluster time.
func (rc *ReadConcern) WithAfterClusterTime(ts primitive.Timestamp) *ReadConcern {
	out := &ReadConcern{AfterClusterTime: &ts}
	if rc != nil {
		out.Level = rc.Level
	}
	return out
}

// AppendElement appends rc's document as the "readConcern" field of dst.
func AppendElement(dst bsoncore.Document, rc *ReadConcern) (bsoncore.Document, error) {
	if rc == nil {
		return dst, nil
	}
	var d primitive.D
	if rc.Level != "" {
		d = append(d, primitive.E{Key: "level", Value: rc.Level})
	}
	if rc.AfterClusterTime != nil {
		d = append(d, primitive.E{Key: "afterClusterTime", Value: *rc.AfterClusterTime})
	}
	if len(d) == 0 {
		return dst, nil
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		return dst, err
	}
	return bsoncore.AppendDocumentElement(dst, "readConcern", raw), nil
}
