// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package address parses and normalizes the host:port pairs the driver
// dials, plus the Unix-domain-socket form the wire protocol also accepts.
package address

import (
	"net"
	"strings"
)

// Address is a normalized server address: "host:port", a Unix socket path,
// or the literal "" for an address that has not been resolved yet.
type Address string

// Network returns "unix" for a Unix-domain-socket address (one ending in
// ".sock") and "tcp" otherwise.
func (a Address) Network() string {
	if strings.HasSuffix(string(a), ".sock") {
		return "unix"
	}
	return "tcp"
}

// String returns the address as a plain string.
func (a Address) String() string {
	if a == "" {
		return "<nil>"
	}
	return string(a)
}

// Host and Port split a TCP address into its components. For a Unix socket
// address, Host returns the full path and Port returns "".
func (a Address) Host() string {
	if a.Network() == "unix" {
		return string(a)
	}
	host, _, err := net.SplitHostPort(string(a))
	if err != nil {
		return string(a)
	}
	return host
}

func (a Address) Port() string {
	if a.Network() == "unix" {
		return ""
	}
	_, port, err := net.SplitHostPort(string(a))
	if err != nil {
		return ""
	}
	return port
}

// defaultPort is appended to a bare host with no ":port" suffix, matching
// the default a client connects to when a seed list entry omits one.
const defaultPort = "27017"

// Normalize lower-cases the host portion and appends defaultPort if addr
// has no port and is not a Unix socket path, so that two addresses
// referring to the same endpoint compare equal as strings.
func Normalize(addr string) Address {
	addr = strings.TrimSpace(addr)
	if strings.HasSuffix(addr, ".sock") {
		return Address(addr)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, defaultPort
	}
	return Address(strings.ToLower(host) + ":" + port)
}
