// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"reflect"
	"testing"

	"go.nodedb.dev/driver/bson/primitive"
)

func TestPoolLIFOReuse(t *testing.T) {
	pool := NewPool()

	a := NewClientSession(pool, &ClusterClock{}, 1, false, false)
	b := NewClientSession(pool, &ClusterClock{}, 1, false, false)

	aID, bID := a.SessionID, b.SessionID

	a.EndSession()
	b.EndSession()

	c := NewClientSession(pool, &ClusterClock{}, 1, false, false)
	d := NewClientSession(pool, &ClusterClock{}, 1, false, false)

	if !sessionIDsEqual(c.SessionID, bID) {
		t.Fatalf("expected first reused session to be the last one ended (LIFO)")
	}
	if !sessionIDsEqual(d.SessionID, aID) {
		t.Fatalf("expected second reused session to be the first one ended")
	}
}

func sessionIDsEqual(a, b primitive.D) bool {
	return reflect.DeepEqual(a, b)
}

func TestClientSessionInUseGuard(t *testing.T) {
	pool := NewPool()
	s := NewClientSession(pool, &ClusterClock{}, 1, false, false)

	if err := s.StartOperation(1); err != nil {
		t.Fatalf("StartOperation: %v", err)
	}
	if err := s.StartOperation(1); err != ErrSessionInUse {
		t.Fatalf("expected ErrSessionInUse, got %v", err)
	}
	s.EndOperation()
	if err := s.StartOperation(1); err != nil {
		t.Fatalf("StartOperation after EndOperation: %v", err)
	}
	s.EndOperation()

	s.EndSession()
	if err := s.StartOperation(1); err != ErrSessionEnded {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
}

func TestClientSessionWrongClient(t *testing.T) {
	pool := NewPool()
	s := NewClientSession(pool, &ClusterClock{}, 1, false, false)
	if err := s.StartOperation(2); err != ErrWrongClient {
		t.Fatalf("expected ErrWrongClient, got %v", err)
	}
}
