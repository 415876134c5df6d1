// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import (
	"testing"

	"go.nodedb.dev/driver/mongo/address"
)

func TestNewTopologySingleForOneSeed(t *testing.T) {
	topo := NewTopology([]address.Address{"a:27017"}, false, false, false)
	if topo.Kind != Single {
		t.Fatalf("got %s, want Single", topo.Kind)
	}
}

func TestNewTopologyReplicaSetNoPrimaryForSeedList(t *testing.T) {
	topo := NewTopology([]address.Address{"a:27017", "b:27017"}, false, true, false)
	if topo.Kind != ReplicaSetNoPrimary {
		t.Fatalf("got %s, want ReplicaSetNoPrimary", topo.Kind)
	}
}

func TestNewTopologyLoadBalanced(t *testing.T) {
	topo := NewTopology([]address.Address{"a:27017"}, false, false, true)
	if topo.Kind != LoadBalanced {
		t.Fatalf("got %s, want LoadBalanced", topo.Kind)
	}
}

func TestApplyShardedDiscoversMongos(t *testing.T) {
	topo := NewTopology([]address.Address{"a:27017"}, false, false, false)
	topo.Kind = TopologyUnknown
	topo = topo.Apply(Server{Addr: "a:27017", Kind: Mongos})
	if topo.Kind != Sharded {
		t.Fatalf("got %s, want Sharded", topo.Kind)
	}
}

func TestApplyReplicaSetElectsPrimary(t *testing.T) {
	topo := NewTopology([]address.Address{"a:27017", "b:27017"}, false, true, false)
	topo = topo.Apply(Server{Addr: "a:27017", Kind: RSPrimary, SetName: "rs0"})
	if topo.Kind != ReplicaSetWithPrimary {
		t.Fatalf("got %s, want ReplicaSetWithPrimary", topo.Kind)
	}
	if p, ok := primaryOf(topo); !ok || p.Addr != "a:27017" {
		t.Fatalf("primary not recorded as a:27017")
	}
}

func TestApplyReplicaSetStalePrimaryIgnored(t *testing.T) {
	topo := NewTopology([]address.Address{"a:27017", "b:27017"}, false, true, false)
	v2 := uint64(2)
	topo = topo.Apply(Server{Addr: "a:27017", Kind: RSPrimary, SetName: "rs0", SetVersion: &v2})

	v1 := uint64(1)
	topo = topo.Apply(Server{Addr: "b:27017", Kind: RSPrimary, SetName: "rs0", SetVersion: &v1})

	p, ok := primaryOf(topo)
	if !ok || p.Addr != "a:27017" {
		t.Fatalf("stale primary at b:27017 should not have displaced a:27017, got %+v (ok=%v)", p, ok)
	}
}

func TestApplyReplicaSetNewerPrimaryDisplacesOld(t *testing.T) {
	topo := NewTopology([]address.Address{"a:27017", "b:27017"}, false, true, false)
	v1 := uint64(1)
	topo = topo.Apply(Server{Addr: "a:27017", Kind: RSPrimary, SetName: "rs0", SetVersion: &v1})

	v2 := uint64(2)
	topo = topo.Apply(Server{Addr: "b:27017", Kind: RSPrimary, SetName: "rs0", SetVersion: &v2})

	p, ok := primaryOf(topo)
	if !ok || p.Addr != "b:27017" {
		t.Fatalf("newer primary at b:27017 should have displaced a:27017, got %+v (ok=%v)", p, ok)
	}
	if topo.Servers["a:27017"].Kind != Unknown {
		t.Fatalf("demoted former primary should be Unknown, got %s", topo.Servers["a:27017"].Kind)
	}
}

func TestApplyReplicaSetDiscoversHostsFromPrimary(t *testing.T) {
	topo := NewTopology([]address.Address{"a:27017"}, false, true, false)
	topo = topo.Apply(Server{
		Addr: "a:27017", Kind: RSPrimary, SetName: "rs0",
		Hosts: []string{"a:27017", "b:27017", "c:27017"},
	})
	if _, ok := topo.Servers["b:27017"]; !ok {
		t.Fatal("expected b:27017 to be discovered from the primary's hosts list")
	}
	if _, ok := topo.Servers["c:27017"]; !ok {
		t.Fatal("expected c:27017 to be discovered from the primary's hosts list")
	}
}

func TestApplyReplicaSetSetNameMismatchDropsServer(t *testing.T) {
	topo := NewTopology([]address.Address{"a:27017", "b:27017"}, false, true, false)
	topo = topo.Apply(Server{Addr: "a:27017", Kind: RSPrimary, SetName: "rs0"})
	topo = topo.Apply(Server{Addr: "b:27017", Kind: RSSecondary, SetName: "rs1"})
	if _, ok := topo.Servers["b:27017"]; ok {
		t.Fatal("server reporting the wrong replica set name should be dropped")
	}
}

func TestRecomputeCompatibilityFlagsIncompatibleServer(t *testing.T) {
	topo := NewTopology([]address.Address{"a:27017", "b:27017"}, false, false, false)
	topo = topo.Apply(Server{Addr: "a:27017", Kind: Mongos, MinWireVersion: 1, MaxWireVersion: 1})
	if topo.CompatibilityError == nil {
		t.Fatal("expected a compatibility error for a server too old to support the minimum wire version")
	}
}
