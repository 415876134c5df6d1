// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package topology implements server discovery and monitoring: a Monitor
// per server address, a Topology state machine aggregating their
// descriptions, and a Pool of connections per server (spec.md §4.3, §4.4,
// §4.6). Topology implements x/mongo/driver.Deployment so the executor
// never imports this package.
package topology

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"go.nodedb.dev/driver/event"
	"go.nodedb.dev/driver/mongo/address"
	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/mongo/readpref"
	"go.nodedb.dev/driver/x/mongo/driver"
	"go.nodedb.dev/driver/x/mongo/driver/session"
)

// DefaultHeartbeatFrequency is spec.md §4.3's default heartbeatFrequencyMS.
const DefaultHeartbeatFrequency = defaultHeartbeatFrequency

// Config collects the deployment-wide settings a Topology needs to start
// monitoring its seed list and pooling connections to each member.
type Config struct {
	Seeds              []address.Address
	DirectConnection   bool
	ReplicaSetName     string
	LoadBalanced       bool
	ServerSelectionTimeout time.Duration
	LocalThreshold     time.Duration
	HeartbeatFrequency time.Duration

	Dialer     driver.Dialer
	TLSConfig  *tls.Config
	Handshaker Handshaker

	PoolMinSize          uint64
	PoolMaxSize          uint64
	PoolMaxIdleTime      time.Duration
	PoolWaitQueueTimeout time.Duration

	ServerMonitor *event.ServerMonitor
	PoolMonitor   *event.PoolMonitor

	SessionPool *session.Pool
}

// Topology aggregates every known server's description and connection
// pool, and implements x/mongo/driver.Deployment.
type Topology struct {
	cfg Config

	mu       sync.RWMutex
	desc     description.Topology
	servers  map[address.Address]*Server

	subs     map[int64]chan struct{}
	lastSub  int64

	done   chan struct{}
	closed bool
}

// New starts monitoring every seed and returns a Topology once constructed
// (monitoring continues asynchronously; callers wait for a usable server
// via SelectServer, which blocks until one appears).
func New(cfg Config) *Topology {
	if cfg.ServerSelectionTimeout <= 0 {
		cfg.ServerSelectionTimeout = 30 * time.Second
	}
	if cfg.LocalThreshold <= 0 {
		cfg.LocalThreshold = readpref.DefaultLocalThreshold
	}
	if cfg.HeartbeatFrequency <= 0 {
		cfg.HeartbeatFrequency = DefaultHeartbeatFrequency
	}

	t := &Topology{
		cfg:     cfg,
		desc:    description.NewTopology(cfg.Seeds, cfg.DirectConnection, cfg.ReplicaSetName, cfg.LoadBalanced),
		servers: make(map[address.Address]*Server),
		subs:    make(map[int64]chan struct{}),
		done:    make(chan struct{}),
	}
	for _, seed := range cfg.Seeds {
		t.addServer(seed)
	}
	return t
}

func (t *Topology) addServer(addr address.Address) {
	pool := NewPool(PoolConfig{
		Address:          addr,
		MinSize:          t.cfg.PoolMinSize,
		MaxSize:          t.cfg.PoolMaxSize,
		MaxIdleTime:      t.cfg.PoolMaxIdleTime,
		WaitQueueTimeout: t.cfg.PoolWaitQueueTimeout,
		Dialer:           t.cfg.Dialer,
		TLSConfig:        t.cfg.TLSConfig,
		Handshaker:       t.cfg.Handshaker,
		Monitor:          t.cfg.PoolMonitor,
	})
	mon := NewMonitor(MonitorConfig{
		Address:            addr,
		Dialer:             t.cfg.Dialer,
		TLSConfig:          t.cfg.TLSConfig,
		HeartbeatFrequency: t.cfg.HeartbeatFrequency,
		Monitor:            t.cfg.ServerMonitor,
	})
	srv := newServer(pool, mon)
	srv.addr = description.NewUnknownServer(addr, nil)

	t.mu.Lock()
	t.servers[addr] = srv
	t.mu.Unlock()

	go t.watch(addr, mon)
}

func (t *Topology) watch(addr address.Address, mon *Monitor) {
	for {
		select {
		case desc, ok := <-mon.Updates():
			if !ok {
				return
			}
			t.apply(desc)
		case <-t.done:
			return
		}
	}
}

func (t *Topology) apply(newDesc description.Server) {
	t.mu.Lock()
	t.desc = t.desc.Apply(newDesc)
	if srv, ok := t.servers[newDesc.Addr]; ok {
		srv.addr = newDesc
	}

	// Reconcile server set with replica-set membership changes: start
	// monitoring newly-seen members, stop monitoring evicted ones.
	var toAdd []address.Address
	for a := range t.desc.Servers {
		if _, ok := t.servers[a]; !ok {
			toAdd = append(toAdd, a)
		}
	}
	var toRemove []address.Address
	for a := range t.servers {
		if _, ok := t.desc.Servers[a]; !ok {
			toRemove = append(toRemove, a)
		}
	}
	for _, a := range toRemove {
		srv := t.servers[a]
		delete(t.servers, a)
		go srv.Close()
	}

	if t.cfg.SessionPool != nil {
		if newDesc.LogicalSessionTimeoutMinutes != nil {
			t.cfg.SessionPool.SetLogicalSessionTimeoutMinutes(*newDesc.LogicalSessionTimeoutMinutes)
		}
	}

	// A heartbeat failure clears the server's pool (spec.md §4.6).
	if newDesc.Kind == description.Unknown && newDesc.Err != nil {
		if srv, ok := t.servers[newDesc.Addr]; ok {
			srv.pool.Clear()
		}
	}
	t.mu.Unlock()

	for _, a := range toAdd {
		t.addServer(a)
	}

	t.broadcast()
}

func (t *Topology) broadcast() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (t *Topology) subscribe() (<-chan struct{}, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSub++
	id := t.lastSub
	ch := make(chan struct{}, 1)
	t.subs[id] = ch
	return ch, id
}

func (t *Topology) unsubscribe(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, id)
}

// Description returns the topology's current immutable snapshot.
func (t *Topology) Description() description.Topology {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.desc
}

// opCounter adapts the server map to readpref.OperationCounter.
type opCounter struct{ t *Topology }

func (c opCounter) OperationCount(addr address.Address) int64 {
	c.t.mu.RLock()
	defer c.t.mu.RUnlock()
	if s, ok := c.t.servers[addr]; ok {
		return s.OperationCount()
	}
	return 0
}

// SelectServer implements x/mongo/driver.Deployment: it loops
// readpref.Select until a candidate is found or serverSelectionTimeoutMS
// elapses, requesting an immediate heartbeat check and waiting for a
// topology change between attempts (spec.md §4.5).
func (t *Topology) SelectServer(ctx context.Context, rp *readpref.ReadPref) (driver.SelectedServer, error) {
	deadline := time.Now().Add(t.cfg.ServerSelectionTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	updates, id := t.subscribe()
	defer t.unsubscribe(id)

	for {
		desc := t.Description()
		addr, err := readpref.Select(desc, rp, t.cfg.LocalThreshold, opCounter{t})
		if err == nil {
			t.mu.RLock()
			srv, ok := t.servers[addr]
			t.mu.RUnlock()
			if ok {
				return srv, nil
			}
			continue
		}
		if err != readpref.ErrServerSelectionEmpty {
			return nil, err
		}

		t.requestImmediateChecks()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("driver: server selection timed out after %s for %s", t.cfg.ServerSelectionTimeout, describeSelection(rp))
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("driver: server selection timed out after %s for %s", t.cfg.ServerSelectionTimeout, describeSelection(rp))
		case <-updates:
			timer.Stop()
		}
	}
}

func (t *Topology) requestImmediateChecks() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, srv := range t.servers {
		srv.mon.RequestImmediateCheck()
	}
}

func describeSelection(rp *readpref.ReadPref) string {
	if rp == nil {
		return "primary"
	}
	return rp.Mode().String()
}

// Close stops every server's monitor and closes its pool.
func (t *Topology) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.done)
	servers := t.servers
	t.servers = nil
	t.mu.Unlock()

	for _, srv := range servers {
		srv.Close()
	}
}
