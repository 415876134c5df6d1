// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package operation

import (
	"testing"

	"go.nodedb.dev/driver/bson/bsontype"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

func TestDecodeFindReply(t *testing.T) {
	doc1 := bsoncore.BuildDocument(nil, bsoncore.AppendInt32Element(nil, "_id", 1))
	batch := bsoncore.BuildArray(nil, bsoncore.Value{Type: bsontype.EmbeddedDocument, Data: doc1})
	cursor := bsoncore.BuildDocument(nil,
		bsoncore.AppendInt64Element(nil, "id", 123),
		bsoncore.AppendStringElement(nil, "ns", "db.widgets"),
		bsoncore.AppendArrayElement(nil, "firstBatch", batch),
	)
	reply := bsoncore.BuildDocument(nil, bsoncore.AppendDocumentElement(nil, "cursor", cursor))

	out, err := DecodeFindReply(reply, "firstBatch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.CursorID != 123 {
		t.Fatalf("got cursorID=%d, want 123", out.CursorID)
	}
	if out.Namespace != "db.widgets" {
		t.Fatalf("got ns=%q", out.Namespace)
	}
	if len(out.FirstBatch) != 1 {
		t.Fatalf("got %d documents, want 1", len(out.FirstBatch))
	}
}

func TestDecodeInsertReply(t *testing.T) {
	reply := bsoncore.BuildDocument(nil, bsoncore.AppendInt32Element(nil, "n", 3))
	out, err := DecodeInsertReply(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.InsertedCount != 3 {
		t.Fatalf("got n=%d, want 3", out.InsertedCount)
	}
}

func TestDecodeUpdateReply(t *testing.T) {
	reply := bsoncore.BuildDocument(nil,
		bsoncore.AppendInt32Element(nil, "n", 1),
		bsoncore.AppendInt32Element(nil, "nModified", 1),
	)
	out, err := DecodeUpdateReply(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.MatchedCount != 1 || out.ModifiedCount != 1 {
		t.Fatalf("got %+v", out)
	}
	if out.HasUpsertedID {
		t.Fatal("did not expect an upserted id")
	}
}

func TestDecodeDeleteReply(t *testing.T) {
	reply := bsoncore.BuildDocument(nil, bsoncore.AppendInt32Element(nil, "n", 2))
	out, err := DecodeDeleteReply(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.DeletedCount != 2 {
		t.Fatalf("got n=%d, want 2", out.DeletedCount)
	}
}
