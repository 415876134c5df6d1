// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.nodedb.dev/driver/bson/primitive"
)

func TestRoundTripScenario1(t *testing.T) {
	in := primitive.D{
		{Key: "x", Value: int32(42)},
		{Key: "a", Value: primitive.A{"s", true, nil}},
	}

	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(b) != 0x24 {
		t.Fatalf("len(B) = 0x%x, want 0x24", len(b))
	}

	var out primitive.D
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	corrupt := make([]byte, len(b))
	copy(corrupt, b)
	corrupt[len(corrupt)-1] = 0x01 // clobber the trailing NUL
	var out2 primitive.D
	if err := Unmarshal(corrupt, &out2); err == nil {
		t.Fatalf("Unmarshal of corrupted document succeeded, want InvalidBSON-shaped error")
	}
}

func TestRoundTripStruct(t *testing.T) {
	type inner struct {
		Y float64 `bson:"y"`
	}
	type doc struct {
		Name    string   `bson:"name"`
		Tags    []string `bson:"tags"`
		Inner   inner    `bson:"inner"`
		Skipped string   `bson:"-"`
		Empty   string   `bson:"empty,omitempty"`
	}

	in := doc{Name: "alice", Tags: []string{"a", "b"}, Inner: inner{Y: 1.5}, Skipped: "nope"}
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out doc
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	in.Skipped = ""
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeLosslessNumbers(t *testing.T) {
	b, err := Marshal(primitive.D{{Key: "v", Value: 3.5}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	type target struct {
		V int64 `bson:"v"`
	}
	var out target
	if err := Unmarshal(b, &out); err == nil {
		t.Fatalf("decoding 3.5 into an int64 field should fail the lossless-only numeric strategy")
	}
}

func TestExtJSONRoundTrip(t *testing.T) {
	in := primitive.D{
		{Key: "x", Value: int32(7)},
		{Key: "name", Value: "hi"},
	}
	j, err := MarshalExtJSON(in)
	if err != nil {
		t.Fatalf("MarshalExtJSON: %v", err)
	}

	var out primitive.D
	if err := UnmarshalExtJSON(j, &out); err != nil {
		t.Fatalf("UnmarshalExtJSON: %v", err)
	}
	// extJSON objects decode through a Go map, which does not preserve key
	// order, so compare field sets rather than field order here.
	if diff := cmp.Diff(in.Map(), out.Map()); diff != "" {
		t.Fatalf("extJSON round trip mismatch (-want +got):\n%s", diff)
	}
}
