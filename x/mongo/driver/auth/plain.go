// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"context"
	"fmt"

	"go.nodedb.dev/driver/x/mongo/driver"
)

func newPlainAuthenticator(cred *Credential) (Authenticator, error) {
	if !cred.PasswordSet {
		return nil, fmt.Errorf("auth: PLAIN requires a password")
	}
	return &plainAuthenticator{
		username: cred.Username,
		password: cred.Password,
		source:   cred.sourceOrDefault("$external"),
	}, nil
}

// plainAuthenticator implements RFC 4616 PLAIN over a single sasl round
// trip: one saslStart carrying authzid\x00authcid\x00passwd, done
// immediately.
type plainAuthenticator struct {
	username string
	password string
	source   string
}

func (a *plainAuthenticator) Auth(ctx context.Context, conn *driver.Connection) error {
	return ConductSaslConversation(ctx, conn, a.source, a)
}

func (a *plainAuthenticator) Start() (string, []byte, error) {
	payload := []byte(fmt.Sprintf("\x00%s\x00%s", a.username, a.password))
	return MongoDBPLAIN, payload, nil
}

func (a *plainAuthenticator) Next(challenge []byte) ([]byte, error) {
	return nil, fmt.Errorf("auth: unexpected PLAIN server challenge")
}

func (a *plainAuthenticator) Completed() bool { return true }
