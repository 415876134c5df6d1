// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"sync/atomic"

	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/x/mongo/driver"
)

// Server pairs one address's heartbeat Monitor with its connection Pool,
// and satisfies x/mongo/driver.SelectedServer so the executor can check
// connections out of it without this package's caller needing to import
// topology directly.
type Server struct {
	addr description.Server
	pool *Pool
	mon  *Monitor

	opCount int64
}

func newServer(pool *Pool, mon *Monitor) *Server {
	return &Server{pool: pool, mon: mon}
}

// Connection checks a connection out of the server's pool.
func (s *Server) Connection(ctx context.Context) (*driver.Connection, error) {
	return s.pool.Checkout(ctx)
}

// Description returns the server's most recently published description.
func (s *Server) Description() description.Server {
	return s.addr
}

// Address returns the server's address as a string, to satisfy
// x/mongo/driver.SelectedServer.
func (s *Server) Address() string { return string(s.addr.Addr) }

// IncrementOperationCount and DecrementOperationCount track the in-flight
// operation count the pick-of-two selection step reads via
// readpref.OperationCounter.
func (s *Server) IncrementOperationCount() { atomic.AddInt64(&s.opCount, 1) }
func (s *Server) DecrementOperationCount() { atomic.AddInt64(&s.opCount, -1) }

// OperationCount implements readpref.OperationCounter for a single server.
func (s *Server) OperationCount() int64 { return atomic.LoadInt64(&s.opCount) }

// ProcessError clears the server's pool and requests an immediate
// heartbeat, spec.md §4.6's failure semantics: "network error on a command
// invalidates its connection and triggers clear() on its pool".
func (s *Server) ProcessError(err error) {
	s.pool.Clear()
	s.mon.RequestImmediateCheck()
}

// Close stops the server's monitor and tears down its pool.
func (s *Server) Close() {
	s.mon.Stop()
	s.pool.Close()
}
