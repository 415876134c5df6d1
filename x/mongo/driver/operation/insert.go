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

// Insert describes an insert command over one or more documents.
type Insert struct {
	Collection               Collection
	Documents                []interface{}
	Ordered                  *bool
	BypassDocumentValidation *bool
	Comment                  interface{}
}

// Command returns the driver.CommandFn for ins.
func (ins *Insert) Command() func(desc description.Server) (primitive.D, error) {
	return func(desc description.Server) (primitive.D, error) {
		d := primitive.D{
			{Key: "insert", Value: ins.Collection.Name},
			{Key: "documents", Value: ins.Documents},
		}
		d = appendIfSet(d, "ordered", ins.Ordered, ins.Ordered != nil)
		d = appendIfSet(d, "bypassDocumentValidation", ins.BypassDocumentValidation, ins.BypassDocumentValidation != nil)
		d = appendIfSet(d, "comment", ins.Comment, ins.Comment != nil)
		return d, nil
	}
}

// InsertReply is the shape of a successful insert command reply.
type InsertReply struct {
	InsertedCount int32
	WriteErrors   []bsoncore.Document
}

// DecodeInsertReply extracts n and writeErrors from an insert reply.
func DecodeInsertReply(reply bsoncore.Document) (InsertReply, error) {
	var out InsertReply
	if v, err := reply.LookupErr("n"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			out.InsertedCount = int32(n)
		}
	}
	if v, err := reply.LookupErr("writeErrors"); err == nil {
		arr := v.ArrayValue()
		vals, err := arr.Values()
		if err != nil {
			return out, err
		}
		for _, e := range vals {
			if doc, derr := e.DocumentOK(); derr == nil {
				out.WriteErrors = append(out.WriteErrors, doc)
			}
		}
	}
	return out, nil
}
