// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"crypto/rand"
	"sync"
	"time"

	"go.nodedb.dev/driver/bson/primitive"
)

// ServerSession is the server-visible half of a session: an lsid the
// server correlates operations by, plus local bookkeeping the client uses
// to decide whether the session is still fresh enough to reuse.
type ServerSession struct {
	ID         primitive.D
	LastUse    time.Time
	TxnNumber  int64
}

func newServerSession() *ServerSession {
	return &ServerSession{ID: primitive.D{{Key: "id", Value: newSessionUUID()}}, LastUse: time.Now()}
}

// Expired reports whether the session has gone idle long enough that the
// server may have already reclaimed it, per spec.md §4.7: "pop an
// unexpired session (lastUse within logicalSessionTimeoutMinutes − 1
// min)".
func (s *ServerSession) Expired(timeoutMinutes int64) bool {
	if timeoutMinutes <= 0 {
		return false
	}
	window := time.Duration(timeoutMinutes)*time.Minute - time.Minute
	if window < 0 {
		window = 0
	}
	return time.Since(s.LastUse) >= window
}

// newSessionUUID mints a UUIDv4 wrapped as a binary subtype-0x04 value,
// spec.md §4.7: "lsid = {id: UUIDv4-binary-0x04}".
func newSessionUUID() primitive.Binary {
	var b [16]byte
	_, _ = rand.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return primitive.Binary{Subtype: primitive.BinaryUUID, Data: b[:]}
}

// Pool is the client-wide pool of reusable server sessions (spec.md §4.7:
// "Maintains a server-session pool"). Sessions are returned in LIFO order
// so recently-used sessions are reused first, matching scenario 5's
// assertion that starting sessions after ending some yields the same
// lsids back in LIFO order.
type Pool struct {
	mu                     sync.Mutex
	sessions               []*ServerSession
	logicalSessionTimeout  int64
}

// NewPool constructs an empty server-session pool. logicalSessionTimeoutMinutes
// is updated from the deployment's hello replies as they arrive.
func NewPool() *Pool { return &Pool{} }

// SetLogicalSessionTimeoutMinutes updates the timeout used to judge
// session freshness, called by the topology as a deployment's advertised
// value changes.
func (p *Pool) SetLogicalSessionTimeoutMinutes(minutes int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logicalSessionTimeout = minutes
}

// GetSession pops an unexpired session if one exists, else mints a fresh
// one.
func (p *Pool) GetSession() *ServerSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.sessions) > 0 {
		last := len(p.sessions) - 1
		s := p.sessions[last]
		p.sessions = p.sessions[:last]
		if !s.Expired(p.logicalSessionTimeout) {
			return s
		}
	}
	return newServerSession()
}

// ReturnSession pushes s back onto the pool if it is still fresh,
// otherwise discards it.
func (p *Pool) ReturnSession(s *ServerSession) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Expired(p.logicalSessionTimeout) {
		return
	}
	s.LastUse = time.Now()
	p.sessions = append(p.sessions, s)
}

// IDs returns every session's lsid currently held in the pool, for
// draining via endSessions on client shutdown (spec.md §4.7: "Drain pool
// on client shutdown by sending endSessions in batches of ≤10,000").
func (p *Pool) IDs() []primitive.D {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]primitive.D, len(p.sessions))
	for i, s := range p.sessions {
		out[i] = s.ID
	}
	return out
}

// EndSessionsBatchSize is the maximum lsid count per endSessions command.
const EndSessionsBatchSize = 10000
