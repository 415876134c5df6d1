// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"fmt"
	"sync/atomic"

	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/mongo/address"
)

// Client is a logical session (spec.md §3 ClientSession). It is not safe
// for concurrent use by two operations at once; Operations set the
// active-in-use flag for the duration of a call and reject a session
// already in use (spec.md §5: "the driver will report an error if a
// session is used concurrently from two operations").
type Client struct {
	SessionID        primitive.D
	ServerSession    *ServerSession
	CausalConsistency bool
	Implicit         bool

	ClientID uint64

	clusterClock *ClusterClock
	pool         *Pool

	operationTime primitive.Timestamp
	haveOpTime    bool

	clusterTime primitive.D

	pinnedServer address.Address
	inUse        int32
	ended        int32
}

// NewClientSession starts a session against pool (mints or reuses a
// ServerSession) and associates it with clientID for cross-client
// validation (spec.md §4.7: "a session is rejected by an operation whose
// database/collection/client was derived from a different client
// instance").
func NewClientSession(pool *Pool, clock *ClusterClock, clientID uint64, causalConsistency, implicit bool) *Client {
	ss := pool.GetSession()
	return &Client{
		SessionID:         ss.ID,
		ServerSession:     ss,
		CausalConsistency: causalConsistency,
		Implicit:          implicit,
		ClientID:          clientID,
		clusterClock:      clock,
		pool:              pool,
	}
}

// ErrSessionEnded is returned by any session-using call after EndSession.
var ErrSessionEnded = fmt.Errorf("session: session has ended")

// ErrSessionInUse is returned when a session already in use by another
// operation is used concurrently.
var ErrSessionInUse = fmt.Errorf("session: session is already in use by another operation")

// ErrWrongClient is returned when a session derived from one client is
// used against a different client.
var ErrWrongClient = fmt.Errorf("session: session was derived from a different client")

// StartOperation marks the session as in-use for the duration of one
// operation and validates it is still active and owned by clientID.
func (c *Client) StartOperation(clientID uint64) error {
	if atomic.LoadInt32(&c.ended) != 0 {
		return ErrSessionEnded
	}
	if c.ClientID != 0 && clientID != 0 && c.ClientID != clientID {
		return ErrWrongClient
	}
	if !atomic.CompareAndSwapInt32(&c.inUse, 0, 1) {
		return ErrSessionInUse
	}
	return nil
}

// EndOperation clears the in-use flag set by StartOperation.
func (c *Client) EndOperation() { atomic.StoreInt32(&c.inUse, 0) }

// NextTxnNumber allocates the next retryable-write transaction number
// (spec.md §4.7: "session holds txnNumber (i64) ... allocates the next
// number").
func (c *Client) NextTxnNumber() int64 {
	c.ServerSession.TxnNumber++
	return c.ServerSession.TxnNumber
}

// CurrentTxnNumber returns the most recently allocated txnNumber, used
// when retrying without reallocating (spec.md §4.7: "reuses txnNumber").
func (c *Client) CurrentTxnNumber() int64 { return c.ServerSession.TxnNumber }

// OperationTime returns the session's current operationTime and whether
// one has been observed yet.
func (c *Client) OperationTime() (primitive.Timestamp, bool) { return c.operationTime, c.haveOpTime }

// AdvanceOperationTime advances the session's operationTime to t if t is
// newer, implementing spec.md §8's universal property:
// "S.operationTime_after ≥ max(S.operationTime_before, t)".
func (c *Client) AdvanceOperationTime(t primitive.Timestamp) {
	if !c.haveOpTime || primitive.CompareTimestamp(t, c.operationTime) > 0 {
		c.operationTime = t
		c.haveOpTime = true
	}
}

// AdvanceClusterTime folds a reply's $clusterTime into both the session
// and the client-wide clock.
func (c *Client) AdvanceClusterTime(ct primitive.D) {
	if ct == nil {
		return
	}
	if c.clusterClock != nil {
		c.clusterClock.AdvanceClusterTime(ct)
	}
	if clusterTimeGreater(ct, c.clusterTime) {
		c.clusterTime = ct
	}
}

// ClusterTime returns the cluster time to attach to outgoing commands:
// the session's own if present, else the client-wide clock's.
func (c *Client) ClusterTime() primitive.D {
	if c.clusterTime != nil {
		return c.clusterTime
	}
	if c.clusterClock != nil {
		return c.clusterClock.GetClusterTime()
	}
	return nil
}

// PinnedServer returns the address a cursor/change-stream session is
// bound to, if any.
func (c *Client) PinnedServer() (address.Address, bool) {
	return c.pinnedServer, c.pinnedServer != ""
}

// Pin binds the session to addr, used by the bound-connection strategy
// for cursors (spec.md §4.8).
func (c *Client) Pin(addr address.Address) { c.pinnedServer = addr }

// Unpin releases a prior Pin.
func (c *Client) Unpin() { c.pinnedServer = "" }

// EndSession returns the underlying ServerSession to the pool (if still
// fresh) and marks c unusable for further operations.
func (c *Client) EndSession() {
	if !atomic.CompareAndSwapInt32(&c.ended, 0, 1) {
		return
	}
	c.pool.ReturnSession(c.ServerSession)
}
