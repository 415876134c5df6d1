// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.nodedb.dev/driver/mongo/address"
	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/mongo/readpref"
)

// newBareTopology builds a Topology by hand, without starting any monitor
// goroutines, so selection and apply() reconciliation can be exercised
// deterministically.
func newBareTopology(desc description.Topology, servers map[address.Address]*Server) *Topology {
	return &Topology{
		cfg:     Config{ServerSelectionTimeout: 200 * time.Millisecond, LocalThreshold: readpref.DefaultLocalThreshold},
		desc:    desc,
		servers: servers,
		subs:    make(map[int64]chan struct{}),
		done:    make(chan struct{}),
	}
}

func bareServer(desc description.Server) *Server {
	return newServer(NewPool(PoolConfig{Address: desc.Addr}), &Monitor{})
}

func TestTopologySelectServerReturnsThePrimary(t *testing.T) {
	desc := description.Topology{
		Kind: description.ReplicaSetWithPrimary,
		Servers: map[address.Address]description.Server{
			"a:27017": {Addr: "a:27017", Kind: description.RSPrimary},
			"b:27017": {Addr: "b:27017", Kind: description.RSSecondary},
		},
	}
	srvA := bareServer(desc.Servers["a:27017"])
	srvA.addr = desc.Servers["a:27017"]
	srvB := bareServer(desc.Servers["b:27017"])
	srvB.addr = desc.Servers["b:27017"]

	topo := newBareTopology(desc, map[address.Address]*Server{"a:27017": srvA, "b:27017": srvB})

	selected, err := topo.SelectServer(context.Background(), readpref.Primary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.Address() != "a:27017" {
		t.Fatalf("got %s, want a:27017", selected.Address())
	}
}

func TestTopologySelectServerTimesOutWithNoSuitableServer(t *testing.T) {
	desc := description.Topology{
		Kind:    description.ReplicaSetNoPrimary,
		Servers: map[address.Address]description.Server{"a:27017": {Addr: "a:27017", Kind: description.RSSecondary}},
	}
	srvA := bareServer(desc.Servers["a:27017"])
	srvA.addr = desc.Servers["a:27017"]
	topo := newBareTopology(desc, map[address.Address]*Server{"a:27017": srvA})
	topo.cfg.ServerSelectionTimeout = 50 * time.Millisecond

	_, err := topo.SelectServer(context.Background(), readpref.Primary())
	if err == nil {
		t.Fatal("expected a server selection timeout, no primary exists")
	}
}

func TestTopologySelectServerRespectsContextCancellation(t *testing.T) {
	desc := description.Topology{
		Kind:    description.ReplicaSetNoPrimary,
		Servers: map[address.Address]description.Server{"a:27017": {Addr: "a:27017", Kind: description.RSSecondary}},
	}
	srvA := bareServer(desc.Servers["a:27017"])
	srvA.addr = desc.Servers["a:27017"]
	topo := newBareTopology(desc, map[address.Address]*Server{"a:27017": srvA})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := topo.SelectServer(ctx, readpref.Primary())
	wg.Wait()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestTopologyApplyUpdatesExistingServerDescription(t *testing.T) {
	desc := description.Topology{
		Kind:    description.Single,
		Servers: map[address.Address]description.Server{"a:27017": {Addr: "a:27017", Kind: description.Standalone}},
	}
	srvA := bareServer(desc.Servers["a:27017"])
	srvA.addr = desc.Servers["a:27017"]
	topo := newBareTopology(desc, map[address.Address]*Server{"a:27017": srvA})

	topo.apply(description.Server{Addr: "a:27017", Kind: description.Unknown, Err: errors.New("boom")})

	if topo.servers["a:27017"].Description().Kind != description.Unknown {
		t.Fatalf("got %s, want Unknown after a failed heartbeat", topo.servers["a:27017"].Description().Kind)
	}
}

func TestTopologyApplyClearsPoolOnHeartbeatFailure(t *testing.T) {
	desc := description.Topology{
		Kind:    description.Single,
		Servers: map[address.Address]description.Server{"a:27017": {Addr: "a:27017", Kind: description.Standalone}},
	}
	srvA := bareServer(desc.Servers["a:27017"])
	srvA.addr = desc.Servers["a:27017"]
	topo := newBareTopology(desc, map[address.Address]*Server{"a:27017": srvA})

	if topo.servers["a:27017"].pool.Generation() != 0 {
		t.Fatal("expected a fresh pool to start at generation 0")
	}
	topo.apply(description.Server{Addr: "a:27017", Kind: description.Unknown, Err: errors.New("boom")})
	if topo.servers["a:27017"].pool.Generation() != 1 {
		t.Fatalf("got generation %d, want 1 after a heartbeat-failure pool clear", topo.servers["a:27017"].pool.Generation())
	}
}
