// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"net"
	"testing"

	"go.nodedb.dev/driver/x/mongo/driver"
)

// pipeDialer hands out one end of a fresh net.Pipe() per dial, keeping the
// other end alive so Connect's dial succeeds without a real listener.
type pipeDialer struct {
	servers []net.Conn
}

func (d *pipeDialer) dial(ctx context.Context, network, address string) (net.Conn, error) {
	client, server := net.Pipe()
	d.servers = append(d.servers, server)
	return client, nil
}

func newTestPool(t *testing.T, maxSize uint64) *Pool {
	t.Helper()
	dialer := &pipeDialer{}
	return NewPool(PoolConfig{
		Address: "test:27017",
		MaxSize: maxSize,
		Dialer:  driver.DialerFunc(dialer.dial),
	})
}

func TestPoolCheckoutDialsThenReusesIdleConnection(t *testing.T) {
	pool := newTestPool(t, 2)
	ctx := context.Background()

	conn, err := pool.Checkout(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstID := conn.ID
	pool.Checkin(conn)

	reused, err := pool.Checkout(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reused.ID != firstID {
		t.Fatalf("got a freshly dialed connection %s, want the idle one %s reused", reused.ID, firstID)
	}
}

func TestPoolClearDiscardsIdleAndBumpsGeneration(t *testing.T) {
	pool := newTestPool(t, 2)
	ctx := context.Background()

	conn, err := pool.Checkout(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstID := conn.ID
	pool.Checkin(conn)

	if pool.Generation() != 0 {
		t.Fatalf("got generation %d before Clear, want 0", pool.Generation())
	}
	pool.Clear()
	if pool.Generation() != 1 {
		t.Fatalf("got generation %d after Clear, want 1", pool.Generation())
	}

	fresh, err := pool.Checkout(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.ID == firstID {
		t.Fatal("expected Clear to have discarded the idle connection, got it reused")
	}
}

func TestPoolCheckinDropsConnectionFromAnOlderGeneration(t *testing.T) {
	pool := newTestPool(t, 2)
	ctx := context.Background()

	conn, err := pool.Checkout(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pool.Clear() // bump generation while conn is checked out

	pool.Checkin(conn)
	if conn.Alive() {
		t.Fatal("expected a stale (pre-Clear generation) connection to be closed on checkin, not returned to idle")
	}
}

func TestPoolCloseClosesIdleConnections(t *testing.T) {
	pool := newTestPool(t, 2)
	ctx := context.Background()

	conn, err := pool.Checkout(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pool.Checkin(conn)

	pool.Close()
	if conn.Alive() {
		t.Fatal("expected Close to close idle connections")
	}

	if _, err := pool.Checkout(ctx); err == nil {
		t.Fatal("expected Checkout on a closed pool to fail")
	}
}
