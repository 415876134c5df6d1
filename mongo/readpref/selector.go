// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package readpref

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"go.nodedb.dev/driver/mongo/address"
	"go.nodedb.dev/driver/mongo/description"
)

// defaultHeartbeatFrequency mirrors topology.DefaultHeartbeatFrequency;
// duplicated here as a plain constant to avoid an import cycle between
// readpref and topology (topology imports readpref, not the reverse).
const defaultHeartbeatFrequency = 10 * time.Second

// DefaultLocalThreshold is the latency window width applied in step 5 of
// the selection algorithm.
const DefaultLocalThreshold = 15 * time.Millisecond

// OperationCounter reports the current in-flight operation count for an
// address, used to break ties in the pick-of-two step.
type OperationCounter interface {
	OperationCount(address.Address) int64
}

// ErrServerSelectionEmpty is returned by a single selection pass (not the
// overall retry loop) when no server currently qualifies; callers should
// wait for a topology change and retry.
var ErrServerSelectionEmpty = fmt.Errorf("readpref: no suitable server in current topology snapshot")

// Select runs one pass of spec.md §4.5's algorithm (steps 1-5, returning
// the filtered candidate list) plus step 6's pick-of-two, given a live
// operation-count source. It does not loop/wait; that is the caller's
// (topology.SelectServer's) responsibility, bounded by
// serverSelectionTimeoutMS.
func Select(topo description.Topology, rp *ReadPref, localThreshold time.Duration, counts OperationCounter) (address.Address, error) {
	if topo.CompatibilityError != nil {
		return "", topo.CompatibilityError
	}
	if rp == nil {
		rp = Primary()
	}

	candidates := suitableSet(topo, rp)
	candidates = filterMaxStaleness(topo, rp, candidates)
	candidates = filterTagSets(candidates, rp.tagSets)
	candidates = filterLatencyWindow(candidates, localThreshold)

	if len(candidates) == 0 {
		return "", ErrServerSelectionEmpty
	}
	if len(candidates) == 1 {
		return candidates[0].Addr, nil
	}
	return pickOfTwo(candidates, counts), nil
}

func suitableSet(topo description.Topology, rp *ReadPref) []description.Server {
	switch topo.Kind {
	case description.TopologyUnknown:
		return nil
	case description.Single, description.LoadBalanced:
		out := make([]description.Server, 0, len(topo.Servers))
		for _, s := range topo.Servers {
			out = append(out, s)
		}
		return out
	case description.Sharded:
		return filterKind(topo, description.Mongos)
	case description.ReplicaSetNoPrimary, description.ReplicaSetWithPrimary:
		return replicaSetSuitableSet(topo, rp)
	default:
		return nil
	}
}

func filterKind(topo description.Topology, kind description.ServerKind) []description.Server {
	var out []description.Server
	for _, s := range topo.Servers {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func replicaSetSuitableSet(topo description.Topology, rp *ReadPref) []description.Server {
	primary := filterKind(topo, description.RSPrimary)
	secondaries := filterKind(topo, description.RSSecondary)

	switch rp.mode {
	case PrimaryMode:
		return primary
	case SecondaryMode, NearestMode:
		set := secondaries
		if rp.mode == NearestMode {
			set = append(append([]description.Server{}, primary...), secondaries...)
		}
		return set
	case PrimaryPreferredMode:
		if len(primary) > 0 {
			return primary
		}
		return secondaries
	case SecondaryPreferredMode:
		if len(secondaries) > 0 {
			return secondaries
		}
		return primary
	default:
		return nil
	}
}

// filterMaxStaleness implements spec.md §4.5 step 3. It is a no-op unless
// rp.maxStaleness is positive (Open Question resolution: 0 means
// disabled, not strictest — SPEC_FULL.md §8.2).
func filterMaxStaleness(topo description.Topology, rp *ReadPref, candidates []description.Server) []description.Server {
	if rp.maxStaleness <= 0 {
		return candidates
	}
	if rp.mode == PrimaryMode {
		return candidates
	}

	primary, hasPrimary := primaryOf(topo)
	maxLastWrite := maxLastWriteDate(topo)

	out := make([]description.Server, 0, len(candidates))
	for _, s := range candidates {
		if s.Kind == description.RSPrimary {
			out = append(out, s)
			continue
		}
		var staleness time.Duration
		if hasPrimary {
			staleness = (s.LastUpdateTime.Sub(s.LastWriteDate) - primary.LastUpdateTime.Sub(primary.LastWriteDate)) + defaultHeartbeatFrequency
		} else {
			staleness = maxLastWrite.Sub(s.LastWriteDate) + defaultHeartbeatFrequency
		}
		if staleness <= rp.maxStaleness {
			out = append(out, s)
		}
	}
	return out
}

func primaryOf(topo description.Topology) (description.Server, bool) {
	for _, s := range topo.Servers {
		if s.Kind == description.RSPrimary {
			return s, true
		}
	}
	return description.Server{}, false
}

func maxLastWriteDate(topo description.Topology) time.Time {
	var max time.Time
	for _, s := range topo.Servers {
		if s.LastWriteDate.After(max) {
			max = s.LastWriteDate
		}
	}
	return max
}

// filterTagSets implements spec.md §4.5 step 4: the first tag set (in
// order) with a non-empty match wins; an empty tagSets list matches
// everything.
func filterTagSets(candidates []description.Server, tagSets []TagSet) []description.Server {
	if len(tagSets) == 0 {
		return candidates
	}
	for _, ts := range tagSets {
		var out []description.Server
		for _, s := range candidates {
			if ts.Superset(s.Tags) {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// filterLatencyWindow implements spec.md §4.5 step 5.
func filterLatencyWindow(candidates []description.Server, localThreshold time.Duration) []description.Server {
	if len(candidates) == 0 {
		return candidates
	}
	min := time.Duration(math.MaxInt64)
	any := false
	for _, s := range candidates {
		if !s.AverageRTTSet {
			continue
		}
		any = true
		if s.AverageRTT < min {
			min = s.AverageRTT
		}
	}
	if !any {
		return candidates
	}
	out := make([]description.Server, 0, len(candidates))
	for _, s := range candidates {
		if !s.AverageRTTSet || s.AverageRTT <= min+localThreshold {
			out = append(out, s)
		}
	}
	return out
}

// pickOfTwo implements spec.md §4.5 step 6: sample two distinct candidates
// uniformly at random, return the one with the smaller operation count,
// ties broken by the first sampled (SPEC_FULL.md §8.1's Open Question
// resolution).
func pickOfTwo(candidates []description.Server, counts OperationCounter) address.Address {
	if len(candidates) < 2 {
		return candidates[0].Addr
	}
	i := randIndex(len(candidates))
	j := randIndex(len(candidates) - 1)
	if j >= i {
		j++
	}
	a, b := candidates[i], candidates[j]
	if counts == nil {
		return a.Addr
	}
	if counts.OperationCount(b.Addr) < counts.OperationCount(a.Addr) {
		return b.Addr
	}
	return a.Addr
}

// randIndex returns a uniform index in [0, n) using crypto/rand, avoiding
// a dependency on math/rand's process-global seeding for this
// correctness-sensitive sampling step.
func randIndex(n int) int {
	if n <= 1 {
		return 0
	}
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int(binary.BigEndian.Uint64(b[:]) % uint64(n))
}
