// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package session implements logical sessions: the server-session pool,
// causal-consistency cluster-time tracking, and retryable-write
// transaction numbering of spec.md §4.7.
package session

import (
	"sync"

	"go.nodedb.dev/driver/bson/primitive"
)

// ClusterClock tracks the highest $clusterTime this client has observed
// from any server, shared by every session on the client (spec.md §4.7:
// "$clusterTime is attached to every outgoing command iff the deployment
// has ever returned one").
type ClusterClock struct {
	mu   sync.Mutex
	time primitive.D
}

// AdvanceClusterTime updates the clock if newTime is newer than the
// currently held cluster time, compared lexicographically on
// (timestamp, inc).
func (c *ClusterClock) AdvanceClusterTime(newTime primitive.D) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if clusterTimeGreater(newTime, c.time) {
		c.time = newTime
	}
}

// GetClusterTime returns the clock's current value, or nil if no server
// has ever returned one.
func (c *ClusterClock) GetClusterTime() primitive.D {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

func clusterTimeGreater(a, b primitive.D) bool {
	if b == nil {
		return a != nil
	}
	if a == nil {
		return false
	}
	at, aok := extractClusterTimestamp(a)
	bt, bok := extractClusterTimestamp(b)
	if !aok {
		return false
	}
	if !bok {
		return true
	}
	return primitive.CompareTimestamp(at, bt) > 0
}

func extractClusterTimestamp(d primitive.D) (primitive.Timestamp, bool) {
	for _, e := range d {
		if e.Key == "clusterTime" {
			if ts, ok := e.Value.(primitive.Timestamp); ok {
				return ts, true
			}
		}
	}
	return primitive.Timestamp{}, false
}
