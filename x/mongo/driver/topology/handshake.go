// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"fmt"

	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
	"go.nodedb.dev/driver/x/mongo/driver"
	"go.nodedb.dev/driver/x/mongo/driver/auth"
)

// HandshakeConfig configures NewHandshaker's per-connection negotiation:
// an initial non-awaitable hello (to learn the wire version range before
// anything else runs on the connection) followed by authentication, if a
// credential is configured.
type HandshakeConfig struct {
	Credential  *auth.Credential
	Compressors []string
}

// NewHandshaker builds the Pool's Handshaker: one hello round trip plus,
// if cfg.Credential is set, one mechanism negotiation — run to completion
// before a freshly-dialed Connection is exposed for checkout (spec.md
// §4.6).
func NewHandshaker(cfg HandshakeConfig) Handshaker {
	return func(ctx context.Context, conn *driver.Connection) error {
		desc, err := handshakeHello(ctx, conn)
		if err != nil {
			return fmt.Errorf("topology: handshake hello: %w", err)
		}
		if desc.Kind == description.Unknown {
			return fmt.Errorf("topology: handshake hello reported ok:0")
		}

		if cfg.Credential == nil {
			return nil
		}
		authenticator, err := auth.CreateAuthenticator(cfg.Credential)
		if err != nil {
			return err
		}
		return authenticator.Auth(ctx, conn)
	}
}

func handshakeHello(ctx context.Context, conn *driver.Connection) (description.Server, error) {
	cmd := buildHelloCommand(description.Server{}, false, 0)
	requestID := driver.NextRequestID()
	if err := conn.WriteMsg(ctx, requestID, 0, cmd); err != nil {
		return description.Server{}, err
	}
	body, err := conn.ReadMsg(ctx)
	if err != nil {
		return description.Server{}, err
	}
	reply := bsoncore.Document(body)
	if err := reply.Validate(); err != nil {
		return description.Server{}, err
	}
	return parseHelloReply(conn.Addr, reply, 0, false), nil
}
