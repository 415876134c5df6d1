// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go.nodedb.dev/driver/event"
	"go.nodedb.dev/driver/mongo/address"
	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
	"go.nodedb.dev/driver/x/mongo/driver"
)

const (
	defaultHeartbeatFrequency = 10 * time.Second
	minHeartbeatFrequency     = 500 * time.Millisecond
	rttAlpha                  = 0.2
)

// MonitorConfig configures a single server's heartbeat + RTT streams.
type MonitorConfig struct {
	Address            address.Address
	Dialer             driver.Dialer
	TLSConfig          *tls.Config
	HeartbeatFrequency time.Duration
	Monitor            *event.ServerMonitor
}

// Monitor runs spec.md §4.3's two logical streams for one server: the
// regular heartbeat (which publishes the Server description the topology
// reacts to) and an RTT-only stream that keeps the latency estimate fresh
// independently of however long the heartbeat stream's current hello is
// taking. Both streams are supervised by an errgroup so Stop cancels and
// drains them together.
type Monitor struct {
	cfg MonitorConfig

	mu        sync.Mutex
	prev      description.Server
	avgRTT    time.Duration
	avgRTTSet bool

	updates chan description.Server

	checkRequested chan struct{}
	cancel         context.CancelFunc
	group          *errgroup.Group
	closeOnce      sync.Once

	heartbeatConn *driver.Connection
	rttConn       *driver.Connection
}

// NewMonitor constructs and starts a Monitor. Updates are delivered on the
// returned channel until Stop is called; the channel is closed at that
// point.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.HeartbeatFrequency <= 0 {
		cfg.HeartbeatFrequency = defaultHeartbeatFrequency
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	m := &Monitor{
		cfg:            cfg,
		prev:           description.NewUnknownServer(cfg.Address, nil),
		updates:        make(chan description.Server, 1),
		checkRequested: make(chan struct{}, 1),
		cancel:         cancel,
		group:          group,
	}
	group.Go(func() error { m.runHeartbeat(ctx); return nil })
	group.Go(func() error { m.runRTT(ctx); return nil })
	return m
}

// Updates returns the channel new Server descriptions are published on.
func (m *Monitor) Updates() <-chan description.Server { return m.updates }

// RequestImmediateCheck wakes the heartbeat stream to run now instead of
// waiting out the remainder of its interval, floored at
// minHeartbeatFrequency (spec.md §4.3).
func (m *Monitor) RequestImmediateCheck() {
	select {
	case m.checkRequested <- struct{}{}:
	default:
	}
}

// Stop cancels both streams and waits for them to exit.
func (m *Monitor) Stop() {
	m.closeOnce.Do(func() {
		m.cancel()
		_ = m.group.Wait()
		if m.heartbeatConn != nil {
			m.heartbeatConn.Close()
		}
		if m.rttConn != nil {
			m.rttConn.Close()
		}
		close(m.updates)
	})
}

func (m *Monitor) runHeartbeat(ctx context.Context) {
	interval := minHeartbeatFrequency
	for {
		checkStart := time.Now()
		desc := m.heartbeat(ctx)
		select {
		case m.updates <- desc:
		case <-ctx.Done():
			return
		}

		if desc.Kind != description.Unknown {
			interval = m.cfg.HeartbeatFrequency
		} else {
			interval = minHeartbeatFrequency
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-m.checkRequested:
			timer.Stop()
			if wait := minHeartbeatFrequency - time.Since(checkStart); wait > 0 {
				floor := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					floor.Stop()
					return
				case <-floor.C:
				}
			}
		}
	}
}

// runRTT independently pings with an unawaited hello every heartbeat
// interval, refreshing the EWMA RTT estimate even while the heartbeat
// stream is blocked in an awaitable hello (spec.md §4.3: "each server has
// two logical streams: the regular heartbeat and an optional RTT-only
// stream").
func (m *Monitor) runRTT(ctx context.Context) {
	timer := time.NewTimer(m.cfg.HeartbeatFrequency)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		m.pingRTT(ctx)
		timer.Reset(m.cfg.HeartbeatFrequency)
	}
}

func (m *Monitor) pingRTT(ctx context.Context) {
	conn := m.rttConn
	if conn == nil || !conn.Alive() {
		dialCtx, cancel := context.WithTimeout(ctx, m.cfg.HeartbeatFrequency)
		defer cancel()
		var err error
		conn, err = driver.Connect(dialCtx, m.cfg.Address, m.cfg.Dialer, m.cfg.TLSConfig, 0)
		if err != nil {
			return
		}
		m.rttConn = conn
	}

	cmd := buildHelloCommand(description.Server{}, false, 0)
	start := time.Now()
	requestID := driver.NextRequestID()
	if err := conn.WriteMsg(ctx, requestID, 0, cmd); err != nil {
		conn.Close()
		m.rttConn = nil
		return
	}
	if _, err := conn.ReadMsg(ctx); err != nil {
		conn.Close()
		m.rttConn = nil
		return
	}
	m.recordRTT(time.Since(start))
}

func (m *Monitor) heartbeat(ctx context.Context) description.Server {
	hbCtx, cancel := context.WithTimeout(ctx, m.cfg.HeartbeatFrequency+10*time.Second)
	defer cancel()

	conn := m.heartbeatConn
	if conn == nil || !conn.Alive() {
		var err error
		conn, err = driver.Connect(hbCtx, m.cfg.Address, m.cfg.Dialer, m.cfg.TLSConfig, 0)
		if err != nil {
			m.publishFailed("", false, err)
			desc := description.NewUnknownServer(m.cfg.Address, err)
			m.setPrev(desc)
			return desc
		}
		m.heartbeatConn = conn
	}

	m.mu.Lock()
	prev := m.prev
	m.mu.Unlock()

	awaited := prev.Kind != description.Unknown
	cmd := buildHelloCommand(prev, awaited, int32(m.cfg.HeartbeatFrequency/time.Millisecond))

	m.publishStarted(conn.ID, awaited)
	start := time.Now()
	requestID := driver.NextRequestID()
	if err := conn.WriteMsg(hbCtx, requestID, 0, cmd); err != nil {
		m.publishFailed(conn.ID, awaited, err)
		conn.Close()
		m.heartbeatConn = nil
		desc := description.NewUnknownServer(m.cfg.Address, err)
		m.setPrev(desc)
		return desc
	}
	body, err := conn.ReadMsg(hbCtx)
	if err != nil {
		m.publishFailed(conn.ID, awaited, err)
		conn.Close()
		m.heartbeatConn = nil
		desc := description.NewUnknownServer(m.cfg.Address, err)
		m.setPrev(desc)
		return desc
	}
	rtt := time.Since(start)

	reply := bsoncore.Document(body)
	avg, avgSet := m.recordRTT(rtt)
	desc := parseHelloReply(m.cfg.Address, reply, int64(avg/time.Millisecond), avgSet)
	m.publishSucceeded(conn.ID, awaited, rtt)
	m.setPrev(desc)
	return desc
}

// recordRTT applies spec.md §4.3's EWMA smoothing: newAvg = α·sample +
// (1-α)·oldAvg, seeded by the first sample.
func (m *Monitor) recordRTT(sample time.Duration) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.avgRTTSet {
		m.avgRTT = sample
		m.avgRTTSet = true
	} else {
		m.avgRTT = time.Duration(rttAlpha*float64(sample) + (1-rttAlpha)*float64(m.avgRTT))
	}
	return m.avgRTT, m.avgRTTSet
}

func (m *Monitor) setPrev(desc description.Server) {
	m.mu.Lock()
	m.prev = desc
	m.mu.Unlock()
}

func (m *Monitor) publishStarted(connID string, awaited bool) {
	if m.cfg.Monitor == nil {
		return
	}
	m.cfg.Monitor.PublishServerHeartbeatStarted(event.ServerHeartbeatStartedEvent{ConnectionID: connID, Awaited: awaited})
}

func (m *Monitor) publishSucceeded(connID string, awaited bool, d time.Duration) {
	if m.cfg.Monitor == nil {
		return
	}
	m.cfg.Monitor.PublishServerHeartbeatSucceeded(event.ServerHeartbeatSucceededEvent{
		ConnectionID: connID,
		Awaited:      awaited,
		Duration:     d,
	})
}

func (m *Monitor) publishFailed(connID string, awaited bool, err error) {
	if m.cfg.Monitor == nil {
		return
	}
	m.cfg.Monitor.PublishServerHeartbeatFailed(event.ServerHeartbeatFailedEvent{
		ConnectionID: connID,
		Awaited:      awaited,
		Failure:      err,
	})
}
