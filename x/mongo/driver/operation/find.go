// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package operation

import (
	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

// Find describes a find command (spec.md §7's "Query" kind of read).
type Find struct {
	Collection Collection
	Filter     interface{}
	Sort       interface{}
	Projection interface{}
	Limit      *int64
	Skip       *int64
	BatchSize  *int32
	Comment    string
}

// Command returns the driver.CommandFn for f.
func (f *Find) Command() func(desc description.Server) (primitive.D, error) {
	return func(desc description.Server) (primitive.D, error) {
		d := primitive.D{{Key: "find", Value: f.Collection.Name}}
		d = appendIfSet(d, "filter", f.Filter, f.Filter != nil)
		d = appendIfSet(d, "sort", f.Sort, f.Sort != nil)
		d = appendIfSet(d, "projection", f.Projection, f.Projection != nil)
		d = appendIfSet(d, "skip", f.Skip, f.Skip != nil)
		d = appendIfSet(d, "limit", f.Limit, f.Limit != nil)
		d = appendIfSet(d, "batchSize", f.BatchSize, f.BatchSize != nil)
		d = appendIfSet(d, "comment", f.Comment, f.Comment != "")
		return d, nil
	}
}

// FindReply is the shape of a successful find/getMore reply's cursor
// sub-document.
type FindReply struct {
	CursorID      int64
	Namespace     string
	FirstBatch    []bsoncore.Document
	NextBatchKey  string // "firstBatch" on find, "nextBatch" on getMore
}

// DecodeFindReply extracts the cursor sub-document from a find or
// getMore command's reply.
func DecodeFindReply(reply bsoncore.Document, batchKey string) (FindReply, error) {
	cursorVal, err := reply.LookupErr("cursor")
	if err != nil {
		return FindReply{}, err
	}
	cursor, err := cursorVal.DocumentOK()
	if err != nil {
		return FindReply{}, err
	}

	out := FindReply{NextBatchKey: batchKey}
	if v, err := cursor.LookupErr("id"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			out.CursorID = n
		}
	}
	if v, err := cursor.LookupErr("ns"); err == nil {
		if s, ok := v.StringValueOK(); ok {
			out.Namespace = s
		}
	}
	if v, err := cursor.LookupErr(batchKey); err == nil {
		arr := v.ArrayValue()
		vals, err := arr.Values()
		if err != nil {
			return out, err
		}
		out.FirstBatch = make([]bsoncore.Document, 0, len(vals))
		for _, e := range vals {
			if doc, derr := e.DocumentOK(); derr == nil {
				out.FirstBatch = append(out.FirstBatch, doc)
			}
		}
	}
	return out, nil
}
