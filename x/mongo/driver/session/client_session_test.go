// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"testing"

	"go.nodedb.dev/driver/bson/primitive"
)

func clusterTimeDoc(t, i uint32) primitive.D {
	return primitive.D{{Key: "clusterTime", Value: primitive.Timestamp{T: t, I: i}}}
}

func TestClientSessionAdvanceOperationTimeOnlyMovesForward(t *testing.T) {
	pool := NewPool()
	s := NewClientSession(pool, &ClusterClock{}, 1, true, false)

	s.AdvanceOperationTime(primitive.Timestamp{T: 5, I: 1})
	s.AdvanceOperationTime(primitive.Timestamp{T: 3, I: 9}) // older, must not regress

	ts, ok := s.OperationTime()
	if !ok {
		t.Fatal("expected an operationTime to have been observed")
	}
	if ts.T != 5 || ts.I != 1 {
		t.Fatalf("got %+v, want {T:5 I:1} (the older sample must not win)", ts)
	}
}

func TestClientSessionAdvanceClusterTimeUpdatesClientWideClock(t *testing.T) {
	clock := &ClusterClock{}
	a := NewClientSession(NewPool(), clock, 1, false, false)
	b := NewClientSession(NewPool(), clock, 1, false, false)

	a.AdvanceClusterTime(clusterTimeDoc(10, 1))

	// b never saw a reply directly, but shares the client-wide clock.
	if got := b.ClusterTime(); got == nil {
		t.Fatal("expected b to see the cluster-wide clusterTime advanced by a")
	}

	b.AdvanceClusterTime(clusterTimeDoc(5, 1)) // older than the clock's 10/1
	got := clock.GetClusterTime()
	ts, ok := extractClusterTimestamp(got)
	if !ok || ts.T != 10 {
		t.Fatalf("got %+v, want the clock to remain at T=10 (older sample must not win)", got)
	}
}

func TestClientSessionOwnClusterTimeOverridesClock(t *testing.T) {
	clock := &ClusterClock{}
	clock.AdvanceClusterTime(clusterTimeDoc(1, 1))

	s := NewClientSession(NewPool(), clock, 1, false, false)
	s.AdvanceClusterTime(clusterTimeDoc(99, 1))

	ts, ok := extractClusterTimestamp(s.ClusterTime())
	if !ok || ts.T != 99 {
		t.Fatalf("got %+v, want the session's own newer clusterTime (T=99)", s.ClusterTime())
	}
}

func TestClientSessionPinUnpin(t *testing.T) {
	s := NewClientSession(NewPool(), &ClusterClock{}, 1, false, false)
	if _, ok := s.PinnedServer(); ok {
		t.Fatal("expected no pinned server initially")
	}
	s.Pin("a:27017")
	addr, ok := s.PinnedServer()
	if !ok || addr != "a:27017" {
		t.Fatalf("got %v (ok=%v), want a:27017", addr, ok)
	}
	s.Unpin()
	if _, ok := s.PinnedServer(); ok {
		t.Fatal("expected no pinned server after Unpin")
	}
}

func TestClientSessionTxnNumberAllocatesSequentially(t *testing.T) {
	s := NewClientSession(NewPool(), &ClusterClock{}, 1, false, false)
	if s.CurrentTxnNumber() != 0 {
		t.Fatalf("got %d, want 0 before any allocation", s.CurrentTxnNumber())
	}
	if n := s.NextTxnNumber(); n != 1 {
		t.Fatalf("got %d, want 1", n)
	}
	if n := s.NextTxnNumber(); n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
	if s.CurrentTxnNumber() != 2 {
		t.Fatalf("got %d, want 2 (unchanged by CurrentTxnNumber)", s.CurrentTxnNumber())
	}
}
