// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import "testing"

func TestPlainAuthenticatorStart(t *testing.T) {
	a, err := newPlainAuthenticator(&Credential{Username: "alice", Password: "s3cret", PasswordSet: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pa := a.(*plainAuthenticator)
	if pa.source != "$external" {
		t.Fatalf("got source %q, want $external", pa.source)
	}

	mech, payload, err := pa.Start()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mech != MongoDBPLAIN {
		t.Fatalf("got mechanism %q, want %q", mech, MongoDBPLAIN)
	}
	want := "\x00alice\x00s3cret"
	if string(payload) != want {
		t.Fatalf("got payload %q, want %q", payload, want)
	}
	if !pa.Completed() {
		t.Fatal("PLAIN authenticator should report completed immediately")
	}
}

func TestPlainAuthenticatorRequiresPassword(t *testing.T) {
	if _, err := newPlainAuthenticator(&Credential{Username: "alice"}); err == nil {
		t.Fatal("expected error for missing password")
	}
}

func TestPlainAuthenticatorCustomSource(t *testing.T) {
	a, err := newPlainAuthenticator(&Credential{Username: "alice", Password: "p", PasswordSet: true, Source: "myapp"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := a.(*plainAuthenticator).source; got != "myapp" {
		t.Fatalf("got source %q, want myapp", got)
	}
}
