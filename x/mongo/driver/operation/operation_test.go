// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package operation

import (
	"testing"

	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/mongo/description"
)

func findKey(d primitive.D, key string) (interface{}, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func TestFindCommand(t *testing.T) {
	limit := int64(5)
	f := &Find{Collection: Collection{Name: "widgets"}, Filter: primitive.D{{Key: "x", Value: 1}}, Limit: &limit}
	d, err := f.Command()(description.Server{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := findKey(d, "find"); !ok || v != "widgets" {
		t.Fatalf("got find=%v", v)
	}
	if v, ok := findKey(d, "limit"); !ok || *v.(*int64) != 5 {
		t.Fatalf("got limit=%v", v)
	}
	if _, ok := findKey(d, "sort"); ok {
		t.Fatal("sort should be omitted when unset")
	}
}

func TestInsertCommand(t *testing.T) {
	ordered := false
	ins := &Insert{
		Collection: Collection{Name: "widgets"},
		Documents:  []interface{}{primitive.D{{Key: "_id", Value: 1}}},
		Ordered:    &ordered,
	}
	d, err := ins.Command()(description.Server{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := findKey(d, "insert"); !ok || v != "widgets" {
		t.Fatalf("got insert=%v", v)
	}
	docs, ok := findKey(d, "documents")
	if !ok || len(docs.([]interface{})) != 1 {
		t.Fatalf("got documents=%v", docs)
	}
}

func TestUpdateCommand(t *testing.T) {
	multi := true
	u := &Update{
		Collection: Collection{Name: "widgets"},
		Updates: []UpdateStatement{
			{Filter: primitive.D{{Key: "x", Value: 1}}, Update: primitive.D{{Key: "$set", Value: primitive.D{{Key: "y", Value: 2}}}}, Multi: &multi},
		},
	}
	d, err := u.Command()(description.Server{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updates, ok := findKey(d, "updates")
	if !ok {
		t.Fatal("expected updates field")
	}
	list := updates.([]interface{})
	if len(list) != 1 {
		t.Fatalf("got %d update statements, want 1", len(list))
	}
	stmt := list[0].(primitive.D)
	if v, ok := findKey(stmt, "multi"); !ok || *v.(*bool) != true {
		t.Fatalf("got multi=%v", v)
	}
}

func TestDeleteCommand(t *testing.T) {
	del := &Delete{
		Collection: Collection{Name: "widgets"},
		Deletes:    []DeleteStatement{{Filter: primitive.D{{Key: "x", Value: 1}}, Limit: 1}},
	}
	d, err := del.Command()(description.Server{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := findKey(d, "delete"); !ok || v != "widgets" {
		t.Fatalf("got delete=%v", v)
	}
}

func TestGetMoreCommand(t *testing.T) {
	batchSize := int32(10)
	gm := &GetMore{Collection: Collection{Name: "widgets"}, CursorID: 42, BatchSize: &batchSize}
	d, err := gm.Command()(description.Server{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := findKey(d, "getMore"); !ok || v != int64(42) {
		t.Fatalf("got getMore=%v", v)
	}
	if v, ok := findKey(d, "collection"); !ok || v != "widgets" {
		t.Fatalf("got collection=%v", v)
	}
}

func TestKillCursorsCommand(t *testing.T) {
	kc := &KillCursors{Collection: Collection{Name: "widgets"}, CursorIDs: []int64{1, 2}}
	d, err := kc.Command()(description.Server{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, ok := findKey(d, "cursors")
	if !ok || len(ids.([]int64)) != 2 {
		t.Fatalf("got cursors=%v", ids)
	}
}

func TestHelloCommand(t *testing.T) {
	h := &Hello{AppName: "nodedb-ping"}
	d, err := h.Command()(description.Server{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := findKey(d, "hello"); !ok || v != int32(1) {
		t.Fatalf("got hello=%v", v)
	}
	if _, ok := findKey(d, "client"); !ok {
		t.Fatal("expected client field when AppName is set")
	}
}
