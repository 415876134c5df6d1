// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"fmt"

	"go.nodedb.dev/driver/bson"
	"go.nodedb.dev/driver/mongo/options"
	"go.nodedb.dev/driver/mongo/readpref"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
	"go.nodedb.dev/driver/x/mongo/driver"
	"go.nodedb.dev/driver/x/mongo/driver/operation"
	"go.nodedb.dev/driver/x/mongo/driver/session"
)

// Collection is a handle on a named collection within a Database.
type Collection struct {
	db   *Database
	name string
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) opCollection() operation.Collection {
	return operation.Collection{Name: c.name}
}

// resolveSession returns the session to run an operation under and
// whether it was minted implicitly for this one call (in which case the
// caller must End it once the operation/cursor is done with it).
func (c *Collection) resolveSession(ctx context.Context) (*session.Client, bool, error) {
	if sess := sessionFromContext(ctx); sess != nil {
		return sess, false, nil
	}
	sess, err := c.db.client.StartSession()
	if err != nil {
		return nil, false, err
	}
	sess.Implicit = true
	return sess, true, nil
}

// baseOperation fills in the fields every Collection-issued Operation
// shares: database, deployment, session, concerns, and monitoring.
func (c *Collection) baseOperation(cmd driver.CommandFn, decode driver.DecodeFn, sess *session.Client) *driver.Operation {
	return &driver.Operation{
		Database:       c.db.name,
		Command:        cmd,
		Decode:         decode,
		Session:        sess,
		ClientID:       c.db.client.id,
		Deployment:     c.db.client.topo,
		ReadConcern:    c.db.client.readConcern,
		CommandMonitor: c.db.client.commandMonitor,
	}
}

// Find executes a find command and returns a Cursor over the matching
// documents, paging further batches with getMore as the caller advances
// it (spec.md §4.8's bound-connection strategy).
func (c *Collection) Find(ctx context.Context, filter interface{}, extra ...*options.FindOptionsBuilder) (*Cursor, error) {
	fo := &options.FindOptions{}
	for _, e := range extra {
		if e == nil {
			continue
		}
		for _, set := range e.OptionsSetters() {
			if err := set(fo); err != nil {
				return nil, fmt.Errorf("mongo: %w", err)
			}
		}
	}

	sess, implicit, err := c.resolveSession(ctx)
	if err != nil {
		return nil, err
	}

	find := &operation.Find{
		Collection: c.opCollection(),
		Filter:     filter,
		Sort:       fo.Sort,
		Projection: fo.Projection,
		Limit:      fo.Limit,
		Skip:       fo.Skip,
		BatchSize:  fo.BatchSize,
	}
	if s, ok := fo.Comment.(string); ok {
		find.Comment = s
	}

	var reply operation.FindReply
	var selected driver.SelectedServer
	op := c.baseOperation(find.Command(), func(r bsoncore.Document) error {
		decoded, derr := operation.DecodeFindReply(r, "firstBatch")
		if derr != nil {
			return derr
		}
		reply = decoded
		return nil
	}, sess)
	op.ReadPref = readpref.Primary()
	op.OnSelected = func(srv driver.SelectedServer) { selected = srv }

	if err := op.Execute(ctx); err != nil {
		if implicit {
			sess.EndSession()
		}
		return nil, err
	}

	return newCursor(c, sess, implicit, selected, reply), nil
}

// FindOne executes a find command with a negative limit (single batch,
// closed cursor) and returns the single matching document, or
// ErrNoDocuments if none matched.
func (c *Collection) FindOne(ctx context.Context, filter interface{}, extra ...*options.FindOneOptionsBuilder) (bson.Raw, error) {
	fo := &options.FindOneOptions{}
	for _, e := range extra {
		if e == nil {
			continue
		}
		for _, set := range e.OptionsSetters() {
			if err := set(fo); err != nil {
				return nil, fmt.Errorf("mongo: %w", err)
			}
		}
	}

	findBuilder := options.Find().SetLimit(-1)
	if fo.Sort != nil {
		findBuilder.SetSort(fo.Sort)
	}
	if fo.Projection != nil {
		findBuilder.SetProjection(fo.Projection)
	}
	if fo.Skip != nil {
		findBuilder.SetSkip(*fo.Skip)
	}
	if fo.Comment != nil {
		findBuilder.SetComment(fo.Comment)
	}
	if fo.Collation != nil {
		findBuilder.SetCollation(fo.Collation)
	}

	cur, err := c.Find(ctx, filter, findBuilder)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoDocuments
	}
	return cur.Current(), nil
}

// InsertOneResult is the result of a successful InsertOne call.
type InsertOneResult struct {
	InsertedCount int32
}

// InsertOne inserts a single document.
func (c *Collection) InsertOne(ctx context.Context, document interface{}, extra ...*options.InsertOneOptionsBuilder) (*InsertOneResult, error) {
	io := &options.InsertOneOptions{}
	for _, e := range extra {
		if e == nil {
			continue
		}
		for _, set := range e.OptionsSetters() {
			if err := set(io); err != nil {
				return nil, fmt.Errorf("mongo: %w", err)
			}
		}
	}

	sess, implicit, err := c.resolveSession(ctx)
	if err != nil {
		return nil, err
	}
	if implicit {
		defer sess.EndSession()
	}

	ins := &operation.Insert{
		Collection:               c.opCollection(),
		Documents:                []interface{}{document},
		BypassDocumentValidation: io.BypassDocumentValidation,
		Comment:                  io.Comment,
	}

	var reply operation.InsertReply
	op := c.baseOperation(ins.Command(), func(r bsoncore.Document) error {
		decoded, derr := operation.DecodeInsertReply(r)
		if derr != nil {
			return derr
		}
		reply = decoded
		return nil
	}, sess)
	op.WriteConcern = c.db.client.writeConcern
	op.Retryable = true
	op.RetryKind = driver.RetryableWriteError

	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return &InsertOneResult{InsertedCount: reply.InsertedCount}, nil
}

// InsertManyResult is the result of a successful InsertMany call.
type InsertManyResult struct {
	InsertedCount int32
}

// InsertMany inserts every document in documents, honoring Ordered
// (default true: stop after the first failing write).
func (c *Collection) InsertMany(ctx context.Context, documents []interface{}, extra ...*options.InsertManyOptionsBuilder) (*InsertManyResult, error) {
	builder := options.InsertMany()
	for _, e := range extra {
		if e != nil {
			builder.Opts = append(builder.Opts, e.OptionsSetters()...)
		}
	}
	io := &options.InsertManyOptions{}
	for _, set := range builder.OptionsSetters() {
		if err := set(io); err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
	}

	sess, implicit, err := c.resolveSession(ctx)
	if err != nil {
		return nil, err
	}
	if implicit {
		defer sess.EndSession()
	}

	ins := &operation.Insert{
		Collection:               c.opCollection(),
		Documents:                documents,
		Ordered:                  io.Ordered,
		BypassDocumentValidation: io.BypassDocumentValidation,
		Comment:                  io.Comment,
	}

	var reply operation.InsertReply
	op := c.baseOperation(ins.Command(), func(r bsoncore.Document) error {
		decoded, derr := operation.DecodeInsertReply(r)
		if derr != nil {
			return derr
		}
		reply = decoded
		return nil
	}, sess)
	op.WriteConcern = c.db.client.writeConcern
	// Any non-empty batch is marked retryable; a retry resends the whole
	// batch.
	op.Retryable = len(documents) > 0
	op.RetryKind = driver.RetryableWriteError

	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return &InsertManyResult{InsertedCount: reply.InsertedCount}, nil
}

// UpdateResult is the result of a successful UpdateOne/UpdateMany call.
type UpdateResult struct {
	MatchedCount  int32
	ModifiedCount int32
	HasUpsertedID bool
}

func (c *Collection) update(ctx context.Context, filter, upd interface{}, multi bool, extra []*options.UpdateOptionsBuilder) (*UpdateResult, error) {
	uo := &options.UpdateOptions{}
	for _, e := range extra {
		if e == nil {
			continue
		}
		for _, set := range e.OptionsSetters() {
			if err := set(uo); err != nil {
				return nil, fmt.Errorf("mongo: %w", err)
			}
		}
	}

	sess, implicit, err := c.resolveSession(ctx)
	if err != nil {
		return nil, err
	}
	if implicit {
		defer sess.EndSession()
	}

	stmt := operation.UpdateStatement{Filter: filter, Update: upd, Upsert: uo.Upsert, Multi: &multi, Hint: uo.Hint}
	if uo.Collation != nil {
		stmt.Collation = uo.Collation
	}
	u := &operation.Update{
		Collection:               c.opCollection(),
		Updates:                  []operation.UpdateStatement{stmt},
		BypassDocumentValidation: uo.BypassDocumentValidation,
		Comment:                  uo.Comment,
	}

	var reply operation.UpdateReply
	op := c.baseOperation(u.Command(), func(r bsoncore.Document) error {
		decoded, derr := operation.DecodeUpdateReply(r)
		if derr != nil {
			return derr
		}
		reply = decoded
		return nil
	}, sess)
	op.WriteConcern = c.db.client.writeConcern
	// A multi-document update is not retryable: a retry could re-apply the
	// update to documents a first, partially-succeeded attempt already
	// modified (spec.md §4.7's retryable-write eligibility rule).
	op.Retryable = !multi
	op.RetryKind = driver.RetryableWriteError

	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return &UpdateResult{MatchedCount: reply.MatchedCount, ModifiedCount: reply.ModifiedCount, HasUpsertedID: reply.HasUpsertedID}, nil
}

// UpdateOne applies update to at most one document matching filter.
func (c *Collection) UpdateOne(ctx context.Context, filter, update interface{}, extra ...*options.UpdateOptionsBuilder) (*UpdateResult, error) {
	return c.update(ctx, filter, update, false, extra)
}

// UpdateMany applies update to every document matching filter.
func (c *Collection) UpdateMany(ctx context.Context, filter, update interface{}, extra ...*options.UpdateOptionsBuilder) (*UpdateResult, error) {
	return c.update(ctx, filter, update, true, extra)
}

// DeleteResult is the result of a successful DeleteOne/DeleteMany call.
type DeleteResult struct {
	DeletedCount int32
}

func (c *Collection) delete(ctx context.Context, filter interface{}, limit int32, extra []*options.DeleteOptionsBuilder) (*DeleteResult, error) {
	do := &options.DeleteOptions{}
	for _, e := range extra {
		if e == nil {
			continue
		}
		for _, set := range e.OptionsSetters() {
			if err := set(do); err != nil {
				return nil, fmt.Errorf("mongo: %w", err)
			}
		}
	}

	sess, implicit, err := c.resolveSession(ctx)
	if err != nil {
		return nil, err
	}
	if implicit {
		defer sess.EndSession()
	}

	stmt := operation.DeleteStatement{Filter: filter, Limit: limit, Hint: do.Hint}
	if do.Collation != nil {
		stmt.Collation = do.Collation
	}
	del := &operation.Delete{
		Collection: c.opCollection(),
		Deletes:    []operation.DeleteStatement{stmt},
		Comment:    do.Comment,
	}

	var reply operation.DeleteReply
	op := c.baseOperation(del.Command(), func(r bsoncore.Document) error {
		decoded, derr := operation.DecodeDeleteReply(r)
		if derr != nil {
			return derr
		}
		reply = decoded
		return nil
	}, sess)
	op.WriteConcern = c.db.client.writeConcern
	op.Retryable = limit == 1
	op.RetryKind = driver.RetryableWriteError

	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: reply.DeletedCount}, nil
}

// DeleteOne removes at most one document matching filter.
func (c *Collection) DeleteOne(ctx context.Context, filter interface{}, extra ...*options.DeleteOptionsBuilder) (*DeleteResult, error) {
	return c.delete(ctx, filter, 1, extra)
}

// DeleteMany removes every document matching filter.
func (c *Collection) DeleteMany(ctx context.Context, filter interface{}, extra ...*options.DeleteOptionsBuilder) (*DeleteResult, error) {
	return c.delete(ctx, filter, 0, extra)
}
