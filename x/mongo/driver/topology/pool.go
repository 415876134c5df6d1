// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"go.nodedb.dev/driver/event"
	"go.nodedb.dev/driver/mongo/address"
	"go.nodedb.dev/driver/x/mongo/driver"
)

// Handshaker runs the post-dial negotiation (hello, compression, auth)
// required before a connection may be checked out, spec.md §4.6:
// "Handshake performed on new connections and must complete before
// availability".
type Handshaker func(ctx context.Context, conn *driver.Connection) error

// PoolConfig collects the per-server pool sizing spec.md §4.6 names.
type PoolConfig struct {
	Address            address.Address
	MinSize            uint64
	MaxSize            uint64
	MaxIdleTime        time.Duration
	WaitQueueTimeout   time.Duration
	Dialer             driver.Dialer
	TLSConfig          *tls.Config
	Handshaker         Handshaker
	Monitor            *event.PoolMonitor
}

// Pool is a per-server connection pool: a FIFO of idle connections, a
// checked-out counter, and a generation counter for clear()-driven
// invalidation (spec.md §4.6).
type Pool struct {
	cfg PoolConfig

	mu         sync.Mutex
	idle       []*driver.Connection
	generation uint64
	checkedOut int
	closed     bool

	sem *semaphore.Weighted
}

// NewPool constructs an empty pool; connections are established lazily on
// checkout up to cfg.MaxSize.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100
	}
	return &Pool{cfg: cfg, sem: semaphore.NewWeighted(int64(cfg.MaxSize))}
}

// Generation returns the pool's current generation, bumped by Clear.
func (p *Pool) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Checkout pops an idle connection if one is fresh, else dials a new one,
// blocking (bounded by cfg.WaitQueueTimeout and ctx) until room is
// available in the pool.
func (p *Pool) Checkout(ctx context.Context) (*driver.Connection, error) {
	if p.cfg.WaitQueueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.WaitQueueTimeout)
		defer cancel()
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("driver: pool for %s is closed", p.cfg.Address)
		}
		for len(p.idle) > 0 {
			last := len(p.idle) - 1
			c := p.idle[last]
			p.idle = p.idle[:last]
			if p.isStale(c) || p.isExpired(c) {
				p.mu.Unlock()
				p.publishClosed(c, event.ReasonStale)
				c.Close()
				p.sem.Release(1)
				p.mu.Lock()
				continue
			}
			p.checkedOut++
			p.mu.Unlock()
			p.publishCheckedOut(c)
			return c, nil
		}
		gen := p.generation
		p.mu.Unlock()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("driver: checkout from %s: %w", p.cfg.Address, err)
		}

		c, err := p.establish(ctx, gen)
		if err != nil {
			p.sem.Release(1)
			return nil, err
		}
		p.mu.Lock()
		p.checkedOut++
		p.mu.Unlock()
		p.publishCheckedOut(c)
		return c, nil
	}
}

func (p *Pool) establish(ctx context.Context, generation uint64) (*driver.Connection, error) {
	c, err := driver.Connect(ctx, p.cfg.Address, p.cfg.Dialer, p.cfg.TLSConfig, generation)
	if err != nil {
		return nil, err
	}
	p.publishCreated(c)
	if p.cfg.Handshaker != nil {
		if err := p.cfg.Handshaker(ctx, c); err != nil {
			c.Close()
			return nil, fmt.Errorf("driver: handshake with %s: %w", p.cfg.Address, err)
		}
	}
	p.publishReady(c)
	return c, nil
}

// Checkin returns conn to the idle FIFO, or closes it if it is dead, stale,
// or the pool has been closed (spec.md §4.6:
// "checkin(conn): if conn marked bad or stale → close; else push to
// head").
func (p *Pool) Checkin(conn *driver.Connection) {
	p.mu.Lock()
	p.checkedOut--
	stale := p.isStale(conn)
	closed := p.closed
	p.mu.Unlock()

	if !conn.Alive() || stale || closed {
		reason := event.ReasonError
		if stale {
			reason = event.ReasonStale
		} else if closed {
			reason = event.ReasonPoolClosed
		}
		p.publishClosed(conn, reason)
		conn.Close()
		p.sem.Release(1)
		return
	}

	p.publishCheckedIn(conn)
	p.mu.Lock()
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

// Clear bumps the generation so in-use connections are dropped on their
// next Checkin, and discards currently idle ones (spec.md §4.6: "clear():
// increment generation; in-use connections will be dropped on return").
func (p *Pool) Clear() {
	p.mu.Lock()
	p.generation++
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		p.publishClosed(c, event.ReasonStale)
		c.Close()
		p.sem.Release(1)
	}
	p.publishCleared()
}

// Close tears the pool down, closing every idle connection. Connections
// already checked out are closed as they are returned.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}
}

// isStale reports whether c predates the pool's current generation. The
// caller must hold p.mu.
func (p *Pool) isStale(c *driver.Connection) bool {
	return c.Generation != p.generation
}

func (p *Pool) isExpired(c *driver.Connection) bool {
	if p.cfg.MaxIdleTime <= 0 {
		return false
	}
	return time.Since(c.LastUsed()) >= p.cfg.MaxIdleTime
}

func (p *Pool) publishCreated(c *driver.Connection) {
	if p.cfg.Monitor == nil {
		return
	}
	p.cfg.Monitor.PublishConnectionCreated(event.ConnectionCreatedEvent{Address: string(p.cfg.Address), ConnectionID: c.ID})
}

func (p *Pool) publishReady(c *driver.Connection) {
	if p.cfg.Monitor == nil {
		return
	}
	p.cfg.Monitor.PublishConnectionReady(event.ConnectionReadyEvent{Address: string(p.cfg.Address), ConnectionID: c.ID})
}

func (p *Pool) publishClosed(c *driver.Connection, reason string) {
	if p.cfg.Monitor == nil {
		return
	}
	p.cfg.Monitor.PublishConnectionClosed(event.ConnectionClosedEvent{Address: string(p.cfg.Address), ConnectionID: c.ID, Reason: reason})
}

func (p *Pool) publishCheckedOut(c *driver.Connection) {
	if p.cfg.Monitor == nil {
		return
	}
	p.cfg.Monitor.PublishConnectionCheckedOut(event.ConnectionCheckedOutEvent{Address: string(p.cfg.Address), ConnectionID: c.ID})
}

func (p *Pool) publishCheckedIn(c *driver.Connection) {
	if p.cfg.Monitor == nil {
		return
	}
	p.cfg.Monitor.PublishConnectionCheckedIn(event.ConnectionCheckedInEvent{Address: string(p.cfg.Address), ConnectionID: c.ID})
}

func (p *Pool) publishCleared() {
	if p.cfg.Monitor == nil {
		return
	}
	p.cfg.Monitor.PublishPoolCleared(event.PoolClearedEvent{Address: string(p.cfg.Address), Generation: p.Generation()})
}
