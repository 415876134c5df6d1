// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package description holds the immutable server and topology description
// types the monitor produces and the selector consumes.
package description

import (
	"time"

	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/mongo/address"
)

// ServerKind classifies a server's role within its topology.
type ServerKind uint32

const (
	Unknown ServerKind = iota
	Standalone
	Mongos
	RSPrimary
	RSSecondary
	RSArbiter
	RSOther
	RSGhost
	LoadBalancer
)

func (k ServerKind) String() string {
	switch k {
	case Standalone:
		return "Standalone"
	case Mongos:
		return "Mongos"
	case RSPrimary:
		return "RSPrimary"
	case RSSecondary:
		return "RSSecondary"
	case RSArbiter:
		return "RSArbiter"
	case RSOther:
		return "RSOther"
	case RSGhost:
		return "RSGhost"
	case LoadBalancer:
		return "LoadBalancer"
	default:
		return "Unknown"
	}
}

// Server is an immutable snapshot of one server's state as of its most
// recent heartbeat reply. A new Server always replaces the old one
// wholesale (spec.md §3: "ServerDescriptions are replaced wholesale").
type Server struct {
	Addr    address.Address
	Kind    ServerKind
	Err     error

	MinWireVersion int32
	MaxWireVersion int32
	Tags           map[string]string

	ElectionID *primitive.ObjectID
	SetVersion *uint64
	SetName    string

	LogicalSessionTimeoutMinutes *int64
	LastWriteDate                time.Time
	LastUpdateTime               time.Time
	AverageRTT                   time.Duration
	AverageRTTSet                bool

	Hosts    []string
	Passives []string
	Arbiters []string
	Primary  address.Address

	TopologyVersion *TopologyVersion
}

// TopologyVersion tracks a server's self-reported incarnation, used to
// suppress a stale Unknown transition (spec.md §4.6 failure semantics).
type TopologyVersion struct {
	ProcessID primitive.ObjectID
	Counter   int64
}

// GreaterThan reports whether tv is a strictly newer incarnation than
// other. A nil other is always older.
func (tv *TopologyVersion) GreaterThan(other *TopologyVersion) bool {
	if tv == nil {
		return false
	}
	if other == nil {
		return true
	}
	if tv.ProcessID != other.ProcessID {
		return false
	}
	return tv.Counter > other.Counter
}

// NewUnknownServer returns the zero-value description for an address that
// has not yet replied, or whose most recent heartbeat failed.
func NewUnknownServer(addr address.Address, err error) Server {
	return Server{Addr: addr, Kind: Unknown, Err: err, LastUpdateTime: nowFunc()}
}

// DataBearing reports whether the server kind can serve reads/writes
// itself, as opposed to being a routing or topology-only member.
func (s Server) DataBearing() bool {
	switch s.Kind {
	case Standalone, Mongos, RSPrimary, RSSecondary, LoadBalancer:
		return true
	default:
		return false
	}
}

// WireVersionCompatible reports whether s's advertised wire version range
// intersects [min, max].
func (s Server) WireVersionCompatible(min, max int32) (bool, string) {
	if s.Kind == Unknown {
		return true, ""
	}
	if s.MaxWireVersion < min {
		return false, "server is too old"
	}
	if s.MinWireVersion > max {
		return false, "server is too new"
	}
	return true, ""
}

// nowFunc is overridable in tests; production code always uses time.Now.
var nowFunc = time.Now
