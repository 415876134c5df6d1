// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package readpref

import "testing"

func TestNewRejectsMaxStalenessWithPrimaryMode(t *testing.T) {
	_, err := New(PrimaryMode, WithMaxStaleness(2*smallestMaxStaleness))
	if err == nil {
		t.Fatal("expected an error combining maxStaleness with primary mode")
	}
}

func TestNewRejectsMaxStalenessBelowFloor(t *testing.T) {
	_, err := New(NearestMode, WithMaxStaleness(1))
	if err == nil {
		t.Fatal("expected an error for a maxStaleness below the floor")
	}
}

func TestNewAcceptsMaxStalenessAtFloor(t *testing.T) {
	rp, err := New(NearestMode, WithMaxStaleness(maxStalenessFloor()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rp.MaxStaleness() != maxStalenessFloor() {
		t.Fatalf("got %s, want %s", rp.MaxStaleness(), maxStalenessFloor())
	}
}

func TestNewRejectsTagSetsWithPrimaryMode(t *testing.T) {
	_, err := New(PrimaryMode, WithTagSets(TagSet{"region": "us-east"}))
	if err == nil {
		t.Fatal("expected an error combining tag sets with primary mode")
	}
}

func TestTagSetSuperset(t *testing.T) {
	ts := TagSet{"region": "us-east", "rack": "1"}
	if !ts.Superset(map[string]string{"region": "us-east", "rack": "1", "extra": "x"}) {
		t.Fatal("server tags are a strict superset of ts, expected match")
	}
	if ts.Superset(map[string]string{"region": "us-east"}) {
		t.Fatal("server tags are missing rack, expected no match")
	}
}
