// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"context"
	"fmt"

	"github.com/xdg-go/scram"
	"github.com/xdg-go/stringprep"

	"go.nodedb.dev/driver/x/mongo/driver"
)

func newScramAuthenticator(cred *Credential, mechanism string) (Authenticator, error) {
	if !cred.PasswordSet {
		return nil, fmt.Errorf("auth: %s requires a password", mechanism)
	}
	passwd, err := stringprep.SASLprep.Prepare(cred.Password)
	if err != nil {
		// The server never sees an un-prepared password anyway; fall back
		// to the raw string rather than fail outright (spec.md §6 leaves
		// SASLprep failures to the mechanism).
		passwd = cred.Password
	}

	var hash scram.HashGeneratorFcn
	switch mechanism {
	case SCRAMSHA1:
		hash = scram.SHA1
	case SCRAMSHA256:
		hash = scram.SHA256
	default:
		return nil, fmt.Errorf("auth: unknown scram mechanism %q", mechanism)
	}

	client, err := hash.NewClient(cred.Username, passwd, "")
	if err != nil {
		return nil, fmt.Errorf("auth: build scram client: %w", err)
	}

	return &scramAuthenticator{
		mechanism: mechanism,
		source:    cred.sourceOrDefault(defaultAuthDB),
		client:    client,
	}, nil
}

// scramAuthenticator runs a SCRAM-SHA-1 or SCRAM-SHA-256 conversation via
// the xdg-go/scram state machine, adapted to the SaslClient shape
// ConductSaslConversation drives.
type scramAuthenticator struct {
	mechanism string
	source    string
	client    *scram.Client
	conv      *scram.ClientConversation
}

func (a *scramAuthenticator) Auth(ctx context.Context, conn *driver.Connection) error {
	a.conv = a.client.NewConversation()
	return ConductSaslConversation(ctx, conn, a.source, a)
}

func (a *scramAuthenticator) Start() (string, []byte, error) {
	resp, err := a.conv.Step("")
	if err != nil {
		return a.mechanism, nil, err
	}
	return a.mechanism, []byte(resp), nil
}

func (a *scramAuthenticator) Next(challenge []byte) ([]byte, error) {
	resp, err := a.conv.Step(string(challenge))
	if err != nil {
		return nil, err
	}
	return []byte(resp), nil
}

func (a *scramAuthenticator) Completed() bool {
	return a.conv.Done() && a.conv.Valid()
}
