// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"

	"go.nodedb.dev/driver/bson"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
	"go.nodedb.dev/driver/x/mongo/driver"
	"go.nodedb.dev/driver/x/mongo/driver/operation"
	"go.nodedb.dev/driver/x/mongo/driver/session"
)

// Cursor iterates the batches of a find/getMore command, fetching the
// next batch bound to the server the originating find selected (spec.md
// §4.8's bound-connection strategy).
type Cursor struct {
	coll     *Collection
	sess     *session.Client
	implicit bool
	server   driver.SelectedServer

	cursorID int64
	ns       string

	batch []bsoncore.Document
	pos   int

	current bson.Raw
	err     error
	closed  bool
}

func newCursor(coll *Collection, sess *session.Client, implicit bool, server driver.SelectedServer, reply operation.FindReply) *Cursor {
	return &Cursor{
		coll:     coll,
		sess:     sess,
		implicit: implicit,
		server:   server,
		cursorID: reply.CursorID,
		ns:       reply.Namespace,
		batch:    reply.FirstBatch,
	}
}

// Next advances the cursor to the next document, fetching a further
// batch with getMore if the current one is exhausted and the server has
// not reported the cursor closed (cursorID 0). It returns false once no
// further document is available or an error occurred; check Err after a
// false return to distinguish the two.
func (cur *Cursor) Next(ctx context.Context) bool {
	if cur.closed || cur.err != nil {
		return false
	}
	for cur.pos >= len(cur.batch) {
		if cur.cursorID == 0 {
			return false
		}
		if err := cur.fetchMore(ctx); err != nil {
			cur.err = err
			return false
		}
	}
	cur.current = bson.Raw(cur.batch[cur.pos])
	cur.pos++
	return true
}

func (cur *Cursor) fetchMore(ctx context.Context) error {
	gm := &operation.GetMore{Collection: cur.coll.opCollection(), CursorID: cur.cursorID}

	var reply operation.FindReply
	op := &driver.Operation{
		Database: cur.coll.db.name,
		Command:  gm.Command(),
		Decode: func(r bsoncore.Document) error {
			decoded, err := operation.DecodeFindReply(r, "nextBatch")
			if err != nil {
				return err
			}
			reply = decoded
			return nil
		},
		Session:        cur.sess,
		ClientID:       cur.coll.db.client.id,
		Bound:          cur.server,
		CommandMonitor: cur.coll.db.client.commandMonitor,
	}
	if err := op.Execute(ctx); err != nil {
		return err
	}
	cur.cursorID = reply.CursorID
	cur.batch = reply.FirstBatch
	cur.pos = 0
	return nil
}

// Current returns the document Next most recently advanced to.
func (cur *Cursor) Current() bson.Raw { return cur.current }

// Err returns the error, if any, that stopped iteration.
func (cur *Cursor) Err() error { return cur.err }

// Close releases server-side cursor resources (issuing killCursors if
// the cursor is not already exhausted) and ends an implicit session.
func (cur *Cursor) Close(ctx context.Context) error {
	if cur.closed {
		return nil
	}
	cur.closed = true

	var err error
	if cur.cursorID != 0 && cur.server != nil {
		kc := &operation.KillCursors{Collection: cur.coll.opCollection(), CursorIDs: []int64{cur.cursorID}}
		op := &driver.Operation{
			Database: cur.coll.db.name,
			Command:  kc.Command(),
			Bound:    cur.server,
		}
		err = op.Execute(ctx)
		cur.cursorID = 0
	}

	if cur.implicit {
		cur.sess.EndSession()
	}
	return err
}

// All drains the cursor into a slice of raw documents and closes it.
func (cur *Cursor) All(ctx context.Context) ([]bson.Raw, error) {
	defer cur.Close(ctx)
	var out []bson.Raw
	for cur.Next(ctx) {
		doc := make(bson.Raw, len(cur.Current()))
		copy(doc, cur.Current())
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
