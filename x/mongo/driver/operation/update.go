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

// UpdateStatement is one entry of an update command's updates array.
type UpdateStatement struct {
	Filter    interface{}
	Update    interface{}
	Upsert    *bool
	Multi     *bool
	Collation interface{}
	Hint      interface{}
}

func (u UpdateStatement) toD() primitive.D {
	d := primitive.D{
		{Key: "q", Value: u.Filter},
		{Key: "u", Value: u.Update},
	}
	d = appendIfSet(d, "upsert", u.Upsert, u.Upsert != nil)
	d = appendIfSet(d, "multi", u.Multi, u.Multi != nil)
	d = appendIfSet(d, "collation", u.Collation, u.Collation != nil)
	d = appendIfSet(d, "hint", u.Hint, u.Hint != nil)
	return d
}

// Update describes an update command over one or more UpdateStatements.
type Update struct {
	Collection               Collection
	Updates                  []UpdateStatement
	Ordered                  *bool
	BypassDocumentValidation *bool
	Comment                  interface{}
}

// Command returns the driver.CommandFn for u.
func (u *Update) Command() func(desc description.Server) (primitive.D, error) {
	return func(desc description.Server) (primitive.D, error) {
		updates := make([]interface{}, len(u.Updates))
		for i, stmt := range u.Updates {
			updates[i] = stmt.toD()
		}
		d := primitive.D{
			{Key: "update", Value: u.Collection.Name},
			{Key: "updates", Value: updates},
		}
		d = appendIfSet(d, "ordered", u.Ordered, u.Ordered != nil)
		d = appendIfSet(d, "bypassDocumentValidation", u.BypassDocumentValidation, u.BypassDocumentValidation != nil)
		d = appendIfSet(d, "comment", u.Comment, u.Comment != nil)
		return d, nil
	}
}

// Delete describes a delete command over one or more DeleteStatements.
type Delete struct {
	Collection Collection
	Deletes    []DeleteStatement
	Ordered    *bool
	Comment    interface{}
}

// DeleteStatement is one entry of a delete command's deletes array.
type DeleteStatement struct {
	Filter    interface{}
	Limit     int32 // 0 = delete all matches, 1 = delete one
	Collation interface{}
	Hint      interface{}
}

func (ds DeleteStatement) toD() primitive.D {
	d := primitive.D{
		{Key: "q", Value: ds.Filter},
		{Key: "limit", Value: ds.Limit},
	}
	d = appendIfSet(d, "collation", ds.Collation, ds.Collation != nil)
	d = appendIfSet(d, "hint", ds.Hint, ds.Hint != nil)
	return d
}

// Command returns the driver.CommandFn for d.
func (del *Delete) Command() func(desc description.Server) (primitive.D, error) {
	return func(desc description.Server) (primitive.D, error) {
		deletes := make([]interface{}, len(del.Deletes))
		for i, stmt := range del.Deletes {
			deletes[i] = stmt.toD()
		}
		d := primitive.D{
			{Key: "delete", Value: del.Collection.Name},
			{Key: "deletes", Value: deletes},
		}
		d = appendIfSet(d, "ordered", del.Ordered, del.Ordered != nil)
		d = appendIfSet(d, "comment", del.Comment, del.Comment != nil)
		return d, nil
	}
}

// UpdateReply is the shape of a successful update command reply.
type UpdateReply struct {
	MatchedCount  int32
	ModifiedCount int32
	UpsertedID    bsoncore.Value
	HasUpsertedID bool
}

// DecodeUpdateReply extracts n, nModified, and upserted[0]._id from an
// update reply.
func DecodeUpdateReply(reply bsoncore.Document) (UpdateReply, error) {
	var out UpdateReply
	if v, err := reply.LookupErr("n"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			out.MatchedCount = int32(n)
		}
	}
	if v, err := reply.LookupErr("nModified"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			out.ModifiedCount = int32(n)
		}
	}
	if v, err := reply.LookupErr("upserted"); err == nil {
		arr := v.ArrayValue()
		vals, err := arr.Values()
		if err == nil && len(vals) > 0 {
			if doc, derr := vals[0].DocumentOK(); derr == nil {
				if idVal, ierr := doc.LookupErr("_id"); ierr == nil {
					out.UpsertedID = idVal
					out.HasUpsertedID = true
				}
			}
		}
	}
	return out, nil
}

// DeleteReply is the shape of a successful delete command reply.
type DeleteReply struct {
	DeletedCount int32
}

// DecodeDeleteReply extracts n from a delete reply.
func DecodeDeleteReply(reply bsoncore.Document) (DeleteReply, error) {
	var out DeleteReply
	if v, err := reply.LookupErr("n"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			out.DeletedCount = int32(n)
		}
	}
	return out, nil
}
