// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

import (
	"crypto/tls"
	"time"

	"go.nodedb.dev/driver/mongo/address"
	"go.nodedb.dev/driver/mongo/dburi"
	"go.nodedb.dev/driver/mongo/readpref"
)

// Credential holds the auth-related settings a ClientOptions accepts
// directly, mirroring what a connection string's userinfo and
// authSource/authMechanism query parameters would otherwise supply.
type Credential struct {
	Username      string
	Password      string
	AuthSource    string
	AuthMechanism string
}

// ClientOptions represents arguments that can be used to configure a
// Client.
type ClientOptions struct {
	Hosts []address.Address

	AppName          string
	Auth             *Credential
	Compressors      []string
	DirectConnection *bool
	LoadBalanced     *bool
	ReplicaSet       string

	ConnectTimeout         *time.Duration
	HeartbeatInterval      *time.Duration
	LocalThreshold         *time.Duration
	ServerSelectionTimeout *time.Duration
	SocketTimeout          *time.Duration

	MaxPoolSize     *uint64
	MinPoolSize     *uint64
	MaxConnIdleTime *time.Duration

	ReadPreference *readpref.ReadPref

	TLSConfig *tls.Config
}

// ClientOptionsBuilder contains options to configure a Client. Each
// option can be set through setter functions.
type ClientOptionsBuilder struct {
	Opts []func(*ClientOptions) error
}

// Client creates a new ClientOptions instance.
func Client() *ClientOptionsBuilder {
	return &ClientOptionsBuilder{}
}

func (c *ClientOptionsBuilder) OptionsSetters() []func(*ClientOptions) error {
	return c.Opts
}

// ApplyURI appends the settings carried by a parsed mongodb:// or
// mongodb+srv:// connection string (see dburi.Parse). Later setters still
// take precedence since OptionsSetters run in call order.
func (c *ClientOptionsBuilder) ApplyURI(cs *dburi.ConnectionString) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.Hosts = cs.Hosts
		if cs.Username != "" {
			opts.Auth = &Credential{
				Username:      cs.Username,
				Password:      cs.Password,
				AuthSource:    cs.AuthSource,
				AuthMechanism: cs.AuthMechanism,
			}
		}
		opts.AppName = cs.AppName
		opts.ReplicaSet = cs.ReplicaSet
		opts.DirectConnection = &cs.DirectConnection
		opts.LoadBalanced = &cs.LoadBalanced
		opts.Compressors = cs.Compressors
		if cs.ConnectTimeout > 0 {
			opts.ConnectTimeout = &cs.ConnectTimeout
		}
		if cs.HeartbeatInterval > 0 {
			opts.HeartbeatInterval = &cs.HeartbeatInterval
		}
		if cs.ServerSelectionTimeout > 0 {
			opts.ServerSelectionTimeout = &cs.ServerSelectionTimeout
		}
		if cs.SocketTimeout > 0 {
			opts.SocketTimeout = &cs.SocketTimeout
		}
		if cs.MaxConnIdleTime > 0 {
			opts.MaxConnIdleTime = &cs.MaxConnIdleTime
		}
		if cs.MaxPoolSize > 0 {
			opts.MaxPoolSize = &cs.MaxPoolSize
		}
		if cs.MinPoolSize > 0 {
			opts.MinPoolSize = &cs.MinPoolSize
		}
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetHosts(hosts []address.Address) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.Hosts = hosts
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetAppName(name string) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.AppName = name
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetAuth(cred Credential) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.Auth = &cred
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetCompressors(compressors []string) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.Compressors = compressors
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetDirectConnection(b bool) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.DirectConnection = &b
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetLoadBalanced(b bool) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.LoadBalanced = &b
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetReplicaSet(name string) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.ReplicaSet = name
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetConnectTimeout(d time.Duration) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.ConnectTimeout = &d
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetHeartbeatInterval(d time.Duration) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.HeartbeatInterval = &d
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetLocalThreshold(d time.Duration) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.LocalThreshold = &d
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetServerSelectionTimeout(d time.Duration) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.ServerSelectionTimeout = &d
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetSocketTimeout(d time.Duration) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.SocketTimeout = &d
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetMaxPoolSize(n uint64) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.MaxPoolSize = &n
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetMinPoolSize(n uint64) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.MinPoolSize = &n
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetMaxConnIdleTime(d time.Duration) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.MaxConnIdleTime = &d
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetReadPreference(rp *readpref.ReadPref) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.ReadPreference = rp
		return nil
	})
	return c
}

func (c *ClientOptionsBuilder) SetTLSConfig(cfg *tls.Config) *ClientOptionsBuilder {
	c.Opts = append(c.Opts, func(opts *ClientOptions) error {
		opts.TLSConfig = cfg
		return nil
	})
	return c
}

// SessionOptions represents arguments that can be used to configure a
// ClientSession (spec.md §4.7).
type SessionOptions struct {
	// If true, every read and write in the session observes the effects
	// of every prior operation in the session. The default value is
	// true.
	CausalConsistency *bool
}

// SessionOptionsBuilder contains options to configure a session. Each
// option can be set through setter functions.
type SessionOptionsBuilder struct {
	Opts []func(*SessionOptions) error
}

// Session creates a new SessionOptions instance.
func Session() *SessionOptionsBuilder {
	return &SessionOptionsBuilder{}
}

func (s *SessionOptionsBuilder) OptionsSetters() []func(*SessionOptions) error {
	return s.Opts
}

func (s *SessionOptionsBuilder) SetCausalConsistency(b bool) *SessionOptionsBuilder {
	s.Opts = append(s.Opts, func(opts *SessionOptions) error {
		opts.CausalConsistency = &b
		return nil
	})
	return s
}
