// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"crypto/tls"
	"crypto/x509"
	"testing"
)

func TestOCSPVerifierNoChain(t *testing.T) {
	verify := OCSPVerifier(true)
	if err := verify(tls.ConnectionState{}); err != nil {
		t.Fatalf("expected no error with no verified chain, got %v", err)
	}
}

func TestOCSPVerifierMissingStapleMustStaple(t *testing.T) {
	verify := OCSPVerifier(true)
	state := tls.ConnectionState{
		VerifiedChains: [][]*x509.Certificate{{&x509.Certificate{}, &x509.Certificate{}}},
	}
	if err := verify(state); err == nil {
		t.Fatal("expected error for missing OCSP staple with mustStaple set")
	}
}

func TestOCSPVerifierMissingStapleSoft(t *testing.T) {
	verify := OCSPVerifier(false)
	state := tls.ConnectionState{
		VerifiedChains: [][]*x509.Certificate{{&x509.Certificate{}, &x509.Certificate{}}},
	}
	if err := verify(state); err != nil {
		t.Fatalf("expected no error when mustStaple is false, got %v", err)
	}
}
