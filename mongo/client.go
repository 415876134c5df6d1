// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package mongo is the user-facing façade: Client, Database, Collection,
// and Cursor, wired on top of x/mongo/driver's executor and
// x/mongo/driver/topology's SDAM/pooling layer.
package mongo

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.nodedb.dev/driver/event"
	"go.nodedb.dev/driver/mongo/dburi"
	"go.nodedb.dev/driver/mongo/options"
	"go.nodedb.dev/driver/mongo/readconcern"
	"go.nodedb.dev/driver/mongo/readpref"
	"go.nodedb.dev/driver/mongo/writeconcern"
	"go.nodedb.dev/driver/x/mongo/driver"
	"go.nodedb.dev/driver/x/mongo/driver/auth"
	"go.nodedb.dev/driver/x/mongo/driver/operation"
	"go.nodedb.dev/driver/x/mongo/driver/session"
	"go.nodedb.dev/driver/x/mongo/driver/topology"
)

var globalClientID uint64

func nextClientID() uint64 { return atomic.AddUint64(&globalClientID, 1) }

// Client is a handle on a deployment: one Topology (SDAM + connection
// pools), one server-session pool, and one cluster clock shared by every
// session minted from it (spec.md §4.7).
type Client struct {
	id uint64

	topo        *topology.Topology
	sessionPool *session.Pool
	clock       *session.ClusterClock

	readPreference *readpref.ReadPref
	readConcern    *readconcern.ReadConcern
	writeConcern   *writeconcern.WriteConcern

	commandMonitor *event.CommandMonitor
}

// Connect parses uri and starts monitoring its deployment, returning a
// Client once its Topology has been constructed (monitoring continues
// asynchronously; the first operation blocks on server selection until a
// usable server appears).
func Connect(ctx context.Context, uri string, extra ...*options.ClientOptionsBuilder) (*Client, error) {
	cs, err := dburi.Parse(ctx, uri)
	if err != nil {
		return nil, err
	}

	builder := options.Client().ApplyURI(cs)
	for _, e := range extra {
		if e != nil {
			builder.Opts = append(builder.Opts, e.OptionsSetters()...)
		}
	}

	opts := &options.ClientOptions{}
	for _, set := range builder.OptionsSetters() {
		if err := set(opts); err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
	}
	return NewClient(opts)
}

// NewClient builds a Client directly from a fully-populated
// ClientOptions, bypassing connection-string parsing.
func NewClient(opts *options.ClientOptions) (*Client, error) {
	if len(opts.Hosts) == 0 {
		return nil, fmt.Errorf("mongo: client options have no hosts")
	}

	var cred *auth.Credential
	if opts.Auth != nil {
		cred = &auth.Credential{
			Username:    opts.Auth.Username,
			Password:    opts.Auth.Password,
			PasswordSet: opts.Auth.Password != "",
			Source:      opts.Auth.AuthSource,
			Mechanism:   opts.Auth.AuthMechanism,
		}
	}

	handshaker := topology.NewHandshaker(topology.HandshakeConfig{
		Credential:  cred,
		Compressors: opts.Compressors,
	})

	cfg := topology.Config{
		Seeds:      opts.Hosts,
		Handshaker: handshaker,
		TLSConfig:  opts.TLSConfig,
	}
	if opts.ReplicaSet != "" {
		cfg.ReplicaSetName = opts.ReplicaSet
	}
	if opts.DirectConnection != nil {
		cfg.DirectConnection = *opts.DirectConnection
	}
	if opts.LoadBalanced != nil {
		cfg.LoadBalanced = *opts.LoadBalanced
	}
	if opts.ServerSelectionTimeout != nil {
		cfg.ServerSelectionTimeout = *opts.ServerSelectionTimeout
	}
	if opts.LocalThreshold != nil {
		cfg.LocalThreshold = *opts.LocalThreshold
	}
	if opts.HeartbeatInterval != nil {
		cfg.HeartbeatFrequency = *opts.HeartbeatInterval
	}
	if opts.MaxPoolSize != nil {
		cfg.PoolMaxSize = *opts.MaxPoolSize
	}
	if opts.MinPoolSize != nil {
		cfg.PoolMinSize = *opts.MinPoolSize
	}
	if opts.MaxConnIdleTime != nil {
		cfg.PoolMaxIdleTime = *opts.MaxConnIdleTime
	}

	sessionPool := session.NewPool()
	cfg.SessionPool = sessionPool

	rp := opts.ReadPreference
	if rp == nil {
		rp = readpref.Primary()
	}

	c := &Client{
		id:             nextClientID(),
		topo:           topology.New(cfg),
		sessionPool:    sessionPool,
		clock:          &session.ClusterClock{},
		readPreference: rp,
		readConcern:    readconcern.Local(),
		writeConcern:   writeconcern.Majority(),
	}
	return c, nil
}

// Disconnect stops monitoring the deployment and closes every pooled
// connection. It does not wait for in-flight operations to finish.
func (c *Client) Disconnect(ctx context.Context) error {
	c.topo.Close()
	return nil
}

// Database returns a handle on the named database. It does not perform
// any network round trip.
func (c *Client) Database(name string) *Database {
	return &Database{client: c, name: name}
}

// StartSession mints a new ClientSession, server-side session included,
// applying setters from opts in order (spec.md §4.7). The session must
// later be ended with its EndSession method.
func (c *Client) StartSession(extra ...*options.SessionOptionsBuilder) (*session.Client, error) {
	sessOpts := &options.SessionOptions{}
	for _, e := range extra {
		if e == nil {
			continue
		}
		for _, set := range e.OptionsSetters() {
			if err := set(sessOpts); err != nil {
				return nil, fmt.Errorf("mongo: %w", err)
			}
		}
	}
	causal := true
	if sessOpts.CausalConsistency != nil {
		causal = *sessOpts.CausalConsistency
	}
	return session.NewClientSession(c.sessionPool, c.clock, c.id, causal, false), nil
}

// SetCommandMonitor attaches a CommandMonitor to every operation run
// through this client from now on.
func (c *Client) SetCommandMonitor(m *event.CommandMonitor) { c.commandMonitor = m }

// Ping runs a server-facing hello against rp (or the client's default
// read preference) and returns once the deployment has acknowledged it,
// the minimal round trip a caller uses to confirm a server is reachable.
func (c *Client) Ping(ctx context.Context, rp *readpref.ReadPref) error {
	if rp == nil {
		rp = c.readPreference
	}
	h := &operation.Hello{}
	op := &driver.Operation{
		Database:   "admin",
		Command:    h.Command(),
		ReadPref:   rp,
		ClientID:   c.id,
		Deployment: c.topo,
	}
	return op.Execute(ctx)
}
