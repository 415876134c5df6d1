// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package event

// ConnectionCreatedEvent is published when a pool allocates a new
// connection, before the handshake completes.
type ConnectionCreatedEvent struct {
	Address      string
	ConnectionID string
}

// ConnectionReadyEvent is published once a connection's handshake (and
// authentication, if configured) has completed and it is available for
// checkout.
type ConnectionReadyEvent struct {
	Address      string
	ConnectionID string
}

// ConnectionClosedEvent is published when a connection is closed, with the
// reason it was closed.
type ConnectionClosedEvent struct {
	Address      string
	ConnectionID string
	Reason       string
}

// Connection-close reasons.
const (
	ReasonIdle       = "idle"
	ReasonPoolClosed = "poolClosed"
	ReasonStale      = "stale"
	ReasonError      = "error"
)

// ConnectionCheckedOutEvent and ConnectionCheckedInEvent bracket a
// connection's use by an operation.
type ConnectionCheckedOutEvent struct {
	Address      string
	ConnectionID string
}

type ConnectionCheckedInEvent struct {
	Address      string
	ConnectionID string
}

// PoolClearedEvent is published when a pool is cleared, invalidating every
// connection with a generation at or below the cleared generation.
type PoolClearedEvent struct {
	Address    string
	ServiceID  string
	Generation uint64
}

// PoolMonitor receives connection-pool events. Any field may be nil.
type PoolMonitor struct {
	ConnectionCreated   func(ConnectionCreatedEvent)
	ConnectionReady     func(ConnectionReadyEvent)
	ConnectionClosed    func(ConnectionClosedEvent)
	ConnectionCheckedOut func(ConnectionCheckedOutEvent)
	ConnectionCheckedIn func(ConnectionCheckedInEvent)
	PoolCleared         func(PoolClearedEvent)
}

func (m *PoolMonitor) PublishConnectionCreated(e ConnectionCreatedEvent) {
	if m != nil && m.ConnectionCreated != nil {
		m.ConnectionCreated(e)
	}
}

func (m *PoolMonitor) PublishConnectionReady(e ConnectionReadyEvent) {
	if m != nil && m.ConnectionReady != nil {
		m.ConnectionReady(e)
	}
}

func (m *PoolMonitor) PublishConnectionClosed(e ConnectionClosedEvent) {
	if m != nil && m.ConnectionClosed != nil {
		m.ConnectionClosed(e)
	}
}

func (m *PoolMonitor) PublishConnectionCheckedOut(e ConnectionCheckedOutEvent) {
	if m != nil && m.ConnectionCheckedOut != nil {
		m.ConnectionCheckedOut(e)
	}
}

func (m *PoolMonitor) PublishConnectionCheckedIn(e ConnectionCheckedInEvent) {
	if m != nil && m.ConnectionCheckedIn != nil {
		m.ConnectionCheckedIn(e)
	}
}

func (m *PoolMonitor) PublishPoolCleared(e PoolClearedEvent) {
	if m != nil && m.PoolCleared != nil {
		m.PoolCleared(e)
	}
}
