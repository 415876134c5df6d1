// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package readpref

import (
	"testing"
	"time"

	"go.nodedb.dev/driver/mongo/address"
	"go.nodedb.dev/driver/mongo/description"
)

type fakeCounts map[address.Address]int64

func (f fakeCounts) OperationCount(a address.Address) int64 { return f[a] }

func TestSelectSingleTopologyReturnsTheOneServer(t *testing.T) {
	topo := description.Topology{
		Kind: description.Single,
		Servers: map[address.Address]description.Server{
			"a:27017": {Addr: "a:27017", Kind: description.Standalone},
		},
	}
	addr, err := Select(topo, Primary(), DefaultLocalThreshold, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "a:27017" {
		t.Fatalf("got %s, want a:27017", addr)
	}
}

func TestSelectShardedPicksAMongos(t *testing.T) {
	topo := description.Topology{
		Kind: description.Sharded,
		Servers: map[address.Address]description.Server{
			"a:27017": {Addr: "a:27017", Kind: description.Mongos},
			"b:27017": {Addr: "b:27017", Kind: description.RSSecondary},
		},
	}
	addr, err := Select(topo, Primary(), DefaultLocalThreshold, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "a:27017" {
		t.Fatalf("got %s, want the only mongos a:27017", addr)
	}
}

func TestSelectReplicaSetPrimaryMode(t *testing.T) {
	topo := description.Topology{
		Kind: description.ReplicaSetWithPrimary,
		Servers: map[address.Address]description.Server{
			"a:27017": {Addr: "a:27017", Kind: description.RSPrimary},
			"b:27017": {Addr: "b:27017", Kind: description.RSSecondary},
		},
	}
	addr, err := Select(topo, Primary(), DefaultLocalThreshold, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "a:27017" {
		t.Fatalf("got %s, want the primary a:27017", addr)
	}
}

func TestSelectEmptyWhenNoPrimaryAndModeIsPrimary(t *testing.T) {
	topo := description.Topology{
		Kind: description.ReplicaSetNoPrimary,
		Servers: map[address.Address]description.Server{
			"b:27017": {Addr: "b:27017", Kind: description.RSSecondary},
		},
	}
	_, err := Select(topo, Primary(), DefaultLocalThreshold, nil)
	if err != ErrServerSelectionEmpty {
		t.Fatalf("got %v, want ErrServerSelectionEmpty", err)
	}
}

func TestSelectLatencyWindowExcludesFarServer(t *testing.T) {
	nearest, _ := New(NearestMode)
	topo := description.Topology{
		Kind: description.ReplicaSetWithPrimary,
		Servers: map[address.Address]description.Server{
			"a:27017": {Addr: "a:27017", Kind: description.RSPrimary, AverageRTT: 5 * time.Millisecond, AverageRTTSet: true},
			"b:27017": {Addr: "b:27017", Kind: description.RSSecondary, AverageRTT: 50 * time.Millisecond, AverageRTTSet: true},
		},
	}
	addr, err := Select(topo, nearest, 15*time.Millisecond, fakeCounts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "a:27017" {
		t.Fatalf("got %s, want a:27017 (b:27017 is outside the latency window)", addr)
	}
}

func TestSelectMaxStalenessExcludesStaleSecondary(t *testing.T) {
	rp, err := New(SecondaryMode, WithMaxStaleness(maxStalenessFloor()))
	if err != nil {
		t.Fatalf("unexpected error building ReadPref: %v", err)
	}
	now := time.Now()
	topo := description.Topology{
		Kind: description.ReplicaSetWithPrimary,
		Servers: map[address.Address]description.Server{
			"a:27017": {Addr: "a:27017", Kind: description.RSPrimary, LastWriteDate: now, LastUpdateTime: now},
			"b:27017": {Addr: "b:27017", Kind: description.RSSecondary, LastWriteDate: now.Add(-1 * time.Hour), LastUpdateTime: now},
		},
	}
	_, err = Select(topo, rp, DefaultLocalThreshold, nil)
	if err != ErrServerSelectionEmpty {
		t.Fatalf("got %v, want ErrServerSelectionEmpty (the only secondary is too stale)", err)
	}
}

func TestSelectTagSetsFirstMatchingSetWins(t *testing.T) {
	rp, err := New(SecondaryMode, WithTagSets(
		TagSet{"region": "eu"},
		TagSet{"region": "us"},
	))
	if err != nil {
		t.Fatalf("unexpected error building ReadPref: %v", err)
	}
	topo := description.Topology{
		Kind: description.ReplicaSetWithPrimary,
		Servers: map[address.Address]description.Server{
			"a:27017": {Addr: "a:27017", Kind: description.RSPrimary},
			"b:27017": {Addr: "b:27017", Kind: description.RSSecondary, Tags: map[string]string{"region": "us"}},
		},
	}
	addr, err := Select(topo, rp, DefaultLocalThreshold, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "b:27017" {
		t.Fatalf("got %s, want b:27017 (matches the second tag set after the first finds nothing)", addr)
	}
}

func TestSelectPickOfTwoPrefersLowerOperationCount(t *testing.T) {
	nearest, _ := New(NearestMode)
	topo := description.Topology{
		Kind: description.ReplicaSetWithPrimary,
		Servers: map[address.Address]description.Server{
			"a:27017": {Addr: "a:27017", Kind: description.RSPrimary},
			"b:27017": {Addr: "b:27017", Kind: description.RSSecondary},
		},
	}
	counts := fakeCounts{"a:27017": 10, "b:27017": 0}
	addr, err := Select(topo, nearest, DefaultLocalThreshold, counts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "b:27017" {
		t.Fatalf("got %s, want b:27017 (lower operation count)", addr)
	}
}

func TestSelectCompatibilityErrorPropagates(t *testing.T) {
	topo := description.Topology{
		Kind:               description.Single,
		CompatibilityError: errIncompatible,
		Servers: map[address.Address]description.Server{
			"a:27017": {Addr: "a:27017", Kind: description.Standalone},
		},
	}
	_, err := Select(topo, Primary(), DefaultLocalThreshold, nil)
	if err != errIncompatible {
		t.Fatalf("got %v, want the topology's CompatibilityError", err)
	}
}

var errIncompatible = incompatibleErr{}

type incompatibleErr struct{}

func (incompatibleErr) Error() string { return "incompatible" }
