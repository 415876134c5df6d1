// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package auth negotiates the mechanism a connection authenticates with
// during handshake: SCRAM-SHA-1, SCRAM-SHA-256, MONGODB-X509, and PLAIN.
// An Authenticator runs once per new Connection, ahead of the connection
// being handed back to its pool for checkout (spec.md §4.6).
package auth

import (
	"context"
	"fmt"

	"go.nodedb.dev/driver/x/mongo/driver"
)

// Mechanism name constants, matching the wire values accepted by a
// saslSupportedMechs / authenticate command.
const (
	SCRAMSHA1    = "SCRAM-SHA-1"
	SCRAMSHA256  = "SCRAM-SHA-256"
	MongoDBX509  = "MONGODB-X509"
	MongoDBPLAIN = "PLAIN"

	defaultAuthDB = "admin"
)

// Credential carries the auth-related connection string options: username,
// password, authSource, mechanism, and mechanism properties (spec.md §6).
type Credential struct {
	Username    string
	Password    string
	PasswordSet bool
	Source      string
	Mechanism   string
	Props       map[string]string
}

// sourceOrDefault returns the authSource to send, falling back to the
// mechanism's own default (admin for SCRAM, $external for PLAIN).
func (c *Credential) sourceOrDefault(fallback string) string {
	if c.Source != "" {
		return c.Source
	}
	return fallback
}

// Authenticator runs one mechanism's conversation over an already-dialed,
// already-compression-negotiated connection.
type Authenticator interface {
	Auth(ctx context.Context, conn *driver.Connection) error
}

// Error wraps a failure from a specific mechanism, the concrete type the
// handshake's Authenticator step returns.
type Error struct {
	Mechanism string
	Wrapped   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth: mechanism %s: %s", e.Mechanism, e.Wrapped)
}

func (e *Error) Unwrap() error { return e.Wrapped }

func newError(mech string, err error) error {
	return &Error{Mechanism: mech, Wrapped: err}
}

// CreateAuthenticator builds the Authenticator for cred.Mechanism, the
// single switch every supported mechanism registers through (the pack's
// mechanism-registration pattern, one factory function per mechanism name).
func CreateAuthenticator(cred *Credential) (Authenticator, error) {
	switch cred.Mechanism {
	case "", SCRAMSHA256:
		return newScramAuthenticator(cred, SCRAMSHA256)
	case SCRAMSHA1:
		return newScramAuthenticator(cred, SCRAMSHA1)
	case MongoDBX509:
		return newX509Authenticator(cred)
	case MongoDBPLAIN:
		return newPlainAuthenticator(cred)
	default:
		return nil, fmt.Errorf("auth: unsupported mechanism %q", cred.Mechanism)
	}
}
