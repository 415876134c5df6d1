// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"strings"
	"testing"
)

func TestNewScramAuthenticatorRejectsUnknownMechanism(t *testing.T) {
	cred := &Credential{Username: "u", Password: "p", PasswordSet: true}
	if _, err := newScramAuthenticator(cred, "SCRAM-SHA-9000"); err == nil {
		t.Fatal("expected an error for an unrecognized scram mechanism")
	}
}

func TestNewScramAuthenticatorRequiresAPassword(t *testing.T) {
	cred := &Credential{Username: "u"}
	if _, err := newScramAuthenticator(cred, SCRAMSHA256); err == nil {
		t.Fatal("expected an error when no password is set")
	}
}

func TestScramAuthenticatorStartProducesAClientFirstMessage(t *testing.T) {
	cred := &Credential{Username: "u", Password: "p", PasswordSet: true}
	authr, err := newScramAuthenticator(cred, SCRAMSHA256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := authr.(*scramAuthenticator)
	a.conv = a.client.NewConversation()

	mech, payload, err := a.Start()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mech != SCRAMSHA256 {
		t.Fatalf("got mechanism %q, want %q", mech, SCRAMSHA256)
	}
	if !strings.HasPrefix(string(payload), "n,,n=u,r=") {
		t.Fatalf("got client-first message %q, want a GS2 header + username + nonce", payload)
	}
	if a.Completed() {
		t.Fatal("conversation should not be complete after only the client-first message")
	}
}

func TestScramAuthenticatorSourceDefaultsToAdmin(t *testing.T) {
	cred := &Credential{Username: "u", Password: "p", PasswordSet: true}
	authr, err := newScramAuthenticator(cred, SCRAMSHA1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := authr.(*scramAuthenticator)
	if a.source != defaultAuthDB {
		t.Fatalf("got source %q, want %q", a.source, defaultAuthDB)
	}
}
