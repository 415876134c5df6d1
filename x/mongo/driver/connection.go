// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.nodedb.dev/driver/mongo/address"
)

var globalConnectionID uint64

func nextConnectionID() uint64 { return atomic.AddUint64(&globalConnectionID, 1) }

// Connection reads and writes wire protocol messages over a dialed
// network connection (spec.md §3 Connection: "id, address, generation,
// established-wire-version-range, lastUsed").
type Connection struct {
	ID         string
	Addr       address.Address
	Generation uint64

	conn net.Conn

	readTimeout  time.Duration
	writeTimeout time.Duration

	compressor Compressor
	compressed *CompressorRegistry

	dead     bool
	lastUsed time.Time
}

// Dialer makes network connections; satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// Connect dials addr and returns an unauthenticated, un-handshaken
// Connection. The caller (topology.Pool) is responsible for running the
// handshake before the connection is made available for checkout
// (spec.md §4.6: "Handshake performed on new connections and must
// complete before availability").
func Connect(ctx context.Context, addr address.Address, dialer Dialer, tlsConfig *tls.Config, generation uint64) (*Connection, error) {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	nc, err := dialer.DialContext(ctx, addr.Network(), addr.Host()+hostPortSuffix(addr))
	if err != nil {
		return nil, fmt.Errorf("driver: dial %s: %w", addr, err)
	}
	if tlsConfig != nil {
		cfg := tlsConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = addr.Host()
		}
		tlsConn := tls.Client(nc, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			nc.Close()
			return nil, fmt.Errorf("driver: TLS handshake with %s: %w", addr, err)
		}
		nc = tlsConn
	}
	return &Connection{
		ID:         fmt.Sprintf("%s[-%d]", addr, nextConnectionID()),
		Addr:       addr,
		Generation: generation,
		conn:       nc,
		lastUsed:   time.Now(),
	}, nil
}

func hostPortSuffix(addr address.Address) string {
	if addr.Network() == "unix" {
		return ""
	}
	if addr.Port() == "" {
		return ""
	}
	return ":" + addr.Port()
}

// SetCompressor installs the compressor negotiated during handshake, and
// the registry used to decompress OP_COMPRESSED replies of any id the
// server might choose.
func (c *Connection) SetCompressor(comp Compressor, reg *CompressorRegistry) {
	c.compressor = comp
	c.compressed = reg
}

// Alive reports whether the connection has not been marked dead by a
// prior I/O error.
func (c *Connection) Alive() bool { return !c.dead }

// WriteMsg sends an OP_MSG wire message carrying body as its single
// type-0 section, compressing it first if a compressor was negotiated.
func (c *Connection) WriteMsg(ctx context.Context, requestID int32, flags uint32, body []byte) error {
	if c.dead {
		return fmt.Errorf("driver: connection %s is dead", c.ID)
	}
	if err := c.applyWriteDeadline(ctx); err != nil {
		return err
	}

	msg := AppendMsg(nil, requestID, 0, flags, body)
	if c.compressor != nil {
		compressed, err := AppendCompressed(nil, msg, c.compressor)
		if err != nil {
			return fmt.Errorf("driver: compress outgoing message: %w", err)
		}
		msg = compressed
	}

	if _, err := c.conn.Write(msg); err != nil {
		c.Close()
		return fmt.Errorf("driver: write to %s: %w", c.Addr, err)
	}
	c.lastUsed = time.Now()
	return nil
}

// ReadMsg reads one wire message, transparently reversing OP_COMPRESSED
// framing, and returns the OP_MSG body document.
func (c *Connection) ReadMsg(ctx context.Context) ([]byte, error) {
	if c.dead {
		return nil, fmt.Errorf("driver: connection %s is dead", c.ID)
	}
	if err := c.applyReadDeadline(ctx); err != nil {
		return nil, err
	}

	var sizeBuf [4]byte
	if _, err := io.ReadFull(c.conn, sizeBuf[:]); err != nil {
		c.Close()
		return nil, fmt.Errorf("driver: read message length from %s: %w", c.Addr, err)
	}
	size := readi32(sizeBuf[:])
	if size < 16 {
		c.Close()
		return nil, fmt.Errorf("driver: invalid message length %d", size)
	}
	buf := make([]byte, size)
	copy(buf, sizeBuf[:])
	if _, err := io.ReadFull(c.conn, buf[4:]); err != nil {
		c.Close()
		return nil, fmt.Errorf("driver: read message body from %s: %w", c.Addr, err)
	}

	h, err := ReadHeader(buf)
	if err != nil {
		c.Close()
		return nil, err
	}
	if h.OpCode == OpCompressed {
		if c.compressed == nil {
			c.Close()
			return nil, fmt.Errorf("driver: received OP_COMPRESSED with no compressor registry configured")
		}
		buf, err = DecompressMessage(buf, c.compressed)
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	_, body, err := ReadMsg(buf)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.lastUsed = time.Now()
	return body, nil
}

func (c *Connection) applyWriteDeadline(ctx context.Context) error {
	deadline := time.Time{}
	if c.writeTimeout != 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	return c.conn.SetWriteDeadline(deadline)
}

func (c *Connection) applyReadDeadline(ctx context.Context) error {
	deadline := time.Time{}
	if c.readTimeout != 0 {
		deadline = time.Now().Add(c.readTimeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	return c.conn.SetReadDeadline(deadline)
}

// Close marks the connection dead and closes the underlying net.Conn.
func (c *Connection) Close() error {
	if c.dead {
		return nil
	}
	c.dead = true
	return c.conn.Close()
}

// LastUsed reports when the connection was last used for a read or write,
// for the pool's maxIdleTimeMS eviction check.
func (c *Connection) LastUsed() time.Time { return c.lastUsed }
