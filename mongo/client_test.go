// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"net"
	"testing"
	"time"

	"go.nodedb.dev/driver/mongo/address"
	"go.nodedb.dev/driver/mongo/options"
)

// closedPort returns the address of a TCP port that is guaranteed closed:
// it binds a listener, reads the address, then closes it immediately.
func closedPort(t *testing.T) address.Address {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return address.Address(addr)
}

func TestClientPingFailsFastAgainstAnUnreachableSeed(t *testing.T) {
	timeout := 100 * time.Millisecond
	opts := &options.ClientOptions{
		Hosts:                  []address.Address{closedPort(t)},
		ServerSelectionTimeout: &timeout,
	}
	client, err := NewClient(opts)
	if err != nil {
		t.Fatalf("unexpected error constructing client: %v", err)
	}
	defer client.Disconnect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx, nil); err == nil {
		t.Fatal("expected Ping against an unreachable seed to fail with no suitable server")
	}
}

func TestNewClientRequiresAtLeastOneHost(t *testing.T) {
	if _, err := NewClient(&options.ClientOptions{}); err == nil {
		t.Fatal("expected an error for client options with no hosts")
	}
}
