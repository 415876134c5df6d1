// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import "testing"

func TestCreateAuthenticator(t *testing.T) {
	cases := []struct {
		name      string
		mechanism string
		cred      Credential
		wantType  string
		wantErr   bool
	}{
		{
			name:      "default is scram sha 256",
			mechanism: "",
			cred:      Credential{Username: "u", Password: "p", PasswordSet: true},
			wantType:  "*auth.scramAuthenticator",
		},
		{
			name:      "scram sha 1",
			mechanism: SCRAMSHA1,
			cred:      Credential{Username: "u", Password: "p", PasswordSet: true},
			wantType:  "*auth.scramAuthenticator",
		},
		{
			name:      "scram without password fails",
			mechanism: SCRAMSHA256,
			cred:      Credential{Username: "u"},
			wantErr:   true,
		},
		{
			name:      "plain",
			mechanism: MongoDBPLAIN,
			cred:      Credential{Username: "u", Password: "p", PasswordSet: true},
			wantType:  "*auth.plainAuthenticator",
		},
		{
			name:      "x509",
			mechanism: MongoDBX509,
			cred:      Credential{Username: "CN=client"},
			wantType:  "*auth.x509Authenticator",
		},
		{
			name:      "unsupported mechanism",
			mechanism: "GSSAPI",
			cred:      Credential{},
			wantErr:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cred := tc.cred
			cred.Mechanism = tc.mechanism
			a, err := CreateAuthenticator(&cred)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got authenticator %T", a)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := typeName(a); got != tc.wantType {
				t.Fatalf("got %s, want %s", got, tc.wantType)
			}
		})
	}
}

func TestCredentialSourceOrDefault(t *testing.T) {
	c := &Credential{}
	if got := c.sourceOrDefault("admin"); got != "admin" {
		t.Fatalf("got %q, want admin", got)
	}
	c.Source = "myDB"
	if got := c.sourceOrDefault("admin"); got != "myDB" {
		t.Fatalf("got %q, want myDB", got)
	}
}

func typeName(a Authenticator) string {
	switch a.(type) {
	case *scramAuthenticator:
		return "*auth.scramAuthenticator"
	case *plainAuthenticator:
		return "*auth.plainAuthenticator"
	case *x509Authenticator:
		return "*auth.x509Authenticator"
	default:
		return "unknown"
	}
}
