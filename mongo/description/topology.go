// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import (
	"bytes"
	"fmt"

	"go.nodedb.dev/driver/mongo/address"
)

// TopologyKind classifies the shape of the deployment as a whole.
type TopologyKind uint32

const (
	TopologyUnknown TopologyKind = iota
	Single
	ReplicaSetNoPrimary
	ReplicaSetWithPrimary
	Sharded
	LoadBalanced
)

func (k TopologyKind) String() string {
	switch k {
	case Single:
		return "Single"
	case ReplicaSetNoPrimary:
		return "ReplicaSetNoPrimary"
	case ReplicaSetWithPrimary:
		return "ReplicaSetWithPrimary"
	case Sharded:
		return "Sharded"
	case LoadBalanced:
		return "LoadBalanced"
	default:
		return "Unknown"
	}
}

// Topology is an immutable snapshot of the whole deployment. Every SDAM
// event produces a new Topology; consumers (the selector, event
// listeners) hold a reference to one snapshot at a time and never see it
// mutate under them.
type Topology struct {
	Kind               TopologyKind
	SetName            string
	MaxSetVersion      *uint64
	MaxElectionID      *[12]byte
	Servers            map[address.Address]Server
	CompatibilityError error
}

// newEmptyTopology returns the zero topology for the given kind with an
// empty server map, used as the seed before any heartbeat has landed.
func newEmptyTopology(kind TopologyKind) Topology {
	return Topology{Kind: kind, Servers: map[address.Address]Server{}}
}

// NewTopology returns the initial TopologyDescription for a driver started
// against seeds, honoring spec.md §3's invariant: "type=Single iff exactly
// one configured seed and it is Standalone/Unknown."
func NewTopology(seeds []address.Address, directConnection bool, replicaSet, loadBalanced bool) Topology {
	t := newEmptyTopology(TopologyUnknown)
	switch {
	case loadBalanced:
		t.Kind = LoadBalanced
	case directConnection || (len(seeds) == 1 && !replicaSet):
		t.Kind = Single
	case replicaSet:
		t.Kind = ReplicaSetNoPrimary
	default:
		t.Kind = TopologyUnknown
	}
	for _, s := range seeds {
		t.Servers[s] = NewUnknownServer(s, nil)
	}
	return t
}

// clone returns a shallow copy of t with its own Servers map, so callers
// can derive a new immutable snapshot without mutating t.
func (t Topology) clone() Topology {
	out := t
	out.Servers = make(map[address.Address]Server, len(t.Servers))
	for k, v := range t.Servers {
		out.Servers[k] = v
	}
	return out
}

// Apply runs the state-machine table of spec.md §4.4 against the arrival
// of a new server description, returning the resulting TopologyDescription.
// Edges not named in the table leave the topology kind unchanged.
func (t Topology) Apply(newDesc Server) Topology {
	switch t.Kind {
	case LoadBalanced:
		return t.applyLoadBalanced(newDesc)
	case Single:
		return t.applySingle(newDesc)
	case Sharded, TopologyUnknown:
		return t.applyShardedOrUnknown(newDesc)
	case ReplicaSetNoPrimary, ReplicaSetWithPrimary:
		return t.applyReplicaSet(newDesc)
	default:
		return t
	}
}

func (t Topology) applyLoadBalanced(newDesc Server) Topology {
	out := t.clone()
	out.Servers[newDesc.Addr] = newDesc
	return out
}

func (t Topology) applySingle(newDesc Server) Topology {
	out := t.clone()
	out.Servers[newDesc.Addr] = newDesc
	return out
}

func (t Topology) applyShardedOrUnknown(newDesc Server) Topology {
	out := t.clone()
	if _, tracked := out.Servers[newDesc.Addr]; !tracked {
		return out
	}
	switch newDesc.Kind {
	case Unknown:
		out.Servers[newDesc.Addr] = newDesc
		return recomputeCompatibility(out)
	case Standalone:
		if len(out.Servers) == 1 {
			out.Kind = Single
			out.Servers[newDesc.Addr] = newDesc
			return recomputeCompatibility(out)
		}
		delete(out.Servers, newDesc.Addr)
		return recomputeCompatibility(out)
	case Mongos:
		out.Kind = Sharded
		out.Servers[newDesc.Addr] = newDesc
		return recomputeCompatibility(out)
	case RSPrimary, RSSecondary, RSArbiter, RSOther, RSGhost:
		if out.Kind == Sharded {
			delete(out.Servers, newDesc.Addr)
			return recomputeCompatibility(out)
		}
		out.SetName = newDesc.SetName
		if newDesc.Kind == RSPrimary {
			out.Kind = ReplicaSetWithPrimary
		} else {
			out.Kind = ReplicaSetNoPrimary
		}
		out.Servers[newDesc.Addr] = newDesc
		out = addMissingRSMembers(out, newDesc)
		return recomputeCompatibility(out)
	default:
		out.Servers[newDesc.Addr] = newDesc
		return recomputeCompatibility(out)
	}
}

func (t Topology) applyReplicaSet(newDesc Server) Topology {
	out := t.clone()
	if _, tracked := out.Servers[newDesc.Addr]; !tracked {
		return out
	}
	if newDesc.SetName != "" && out.SetName != "" && newDesc.SetName != out.SetName {
		delete(out.Servers, newDesc.Addr)
		return recomputeCompatibility(finishRSTransition(out))
	}

	switch newDesc.Kind {
	case Unknown, RSGhost:
		out.Servers[newDesc.Addr] = newDesc
		return recomputeCompatibility(finishRSTransition(out))
	case RSPrimary:
		if existing, ok := primaryOf(out); ok && existing.Addr != newDesc.Addr {
			if !isNewerPrimary(newDesc, existing) {
				// Stale primary report: ignore, keep old primary.
				return out
			}
			out.Servers[existing.Addr] = NewUnknownServer(existing.Addr, nil)
		}
		out.Servers[newDesc.Addr] = newDesc
		out.SetName = newDesc.SetName
		if newDesc.SetVersion != nil {
			out.MaxSetVersion = newDesc.SetVersion
		}
		if newDesc.ElectionID != nil {
			b := [12]byte(*newDesc.ElectionID)
			out.MaxElectionID = &b
		}
		out = addMissingRSMembers(out, newDesc)
		out.Kind = ReplicaSetWithPrimary
		return recomputeCompatibility(out)
	case RSSecondary, RSArbiter, RSOther:
		out.Servers[newDesc.Addr] = newDesc
		out.SetName = newDesc.SetName
		out = addMissingRSMembers(out, newDesc)
		return recomputeCompatibility(finishRSTransition(out))
	default:
		delete(out.Servers, newDesc.Addr)
		return recomputeCompatibility(finishRSTransition(out))
	}
}

// isNewerPrimary implements the (setVersion, electionId) comparison of
// spec.md §4.4: a reported primary displaces the existing one if its pair
// strictly exceeds the existing primary's. When either side lacks a
// setVersion, or the setVersions are equal and either side lacks an
// electionId, the candidate counts as newer.
func isNewerPrimary(candidate, existing Server) bool {
	if candidate.SetVersion == nil || existing.SetVersion == nil {
		return true
	}
	if *candidate.SetVersion != *existing.SetVersion {
		return *candidate.SetVersion > *existing.SetVersion
	}
	if candidate.ElectionID == nil || existing.ElectionID == nil {
		return true
	}
	return bytes.Compare(candidate.ElectionID[:], existing.ElectionID[:]) > 0
}

func primaryOf(t Topology) (Server, bool) {
	for _, s := range t.Servers {
		if s.Kind == RSPrimary {
			return s, true
		}
	}
	return Server{}, false
}

// finishRSTransition recomputes ReplicaSetWithPrimary vs
// ReplicaSetNoPrimary after a member is added, removed, or demoted.
func finishRSTransition(t Topology) Topology {
	if _, ok := primaryOf(t); ok {
		t.Kind = ReplicaSetWithPrimary
	} else {
		t.Kind = ReplicaSetNoPrimary
	}
	return t
}

// addMissingRSMembers tracks any host the primary (or any member) reports
// in its hosts/passives/arbiters lists that isn't already tracked, seeding
// it as Unknown so the monitor starts heartbeating it.
func addMissingRSMembers(t Topology, desc Server) Topology {
	for _, list := range [][]string{desc.Hosts, desc.Passives, desc.Arbiters} {
		for _, h := range list {
			a := address.Normalize(h)
			if _, ok := t.Servers[a]; !ok {
				t.Servers[a] = NewUnknownServer(a, nil)
			}
		}
	}
	return t
}

// recomputeCompatibility sets CompatibilityError when any tracked server's
// wire-version range does not intersect [minSupportedWireVersion,
// maxSupportedWireVersion].
func recomputeCompatibility(t Topology) Topology {
	t.CompatibilityError = nil
	for _, s := range t.Servers {
		if ok, reason := s.WireVersionCompatible(MinSupportedWireVersion, MaxSupportedWireVersion); !ok {
			t.CompatibilityError = fmt.Errorf("server at %s is incompatible: %s (wire range [%d,%d], driver supports [%d,%d])",
				s.Addr, reason, s.MinWireVersion, s.MaxWireVersion, MinSupportedWireVersion, MaxSupportedWireVersion)
			return t
		}
	}
	return t
}

// MinSupportedWireVersion and MaxSupportedWireVersion bound the hello
// wire-version range this driver negotiates.
const (
	MinSupportedWireVersion = 6
	MaxSupportedWireVersion = 21
)
