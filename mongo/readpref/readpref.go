// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package readpref defines read preference modes, tag sets, and
// max-staleness, and the server-selection algorithm of spec.md §4.5.
package readpref

import (
	"fmt"
	"time"
)

// Mode is a read preference mode.
type Mode uint8

const (
	PrimaryMode Mode = iota
	PrimaryPreferredMode
	SecondaryMode
	SecondaryPreferredMode
	NearestMode
)

func (m Mode) String() string {
	switch m {
	case PrimaryPreferredMode:
		return "primaryPreferred"
	case SecondaryMode:
		return "secondary"
	case SecondaryPreferredMode:
		return "secondaryPreferred"
	case NearestMode:
		return "nearest"
	default:
		return "primary"
	}
}

// TagSet is an unordered set of tags a candidate server's own tags must be
// a superset of.
type TagSet map[string]string

// Superset reports whether serverTags contains every key/value in ts.
func (ts TagSet) Superset(serverTags map[string]string) bool {
	for k, v := range ts {
		if serverTags[k] != v {
			return false
		}
	}
	return true
}

// smallestMaxStaleness is the floor spec.md §4.5 imposes on a non-zero
// maxStalenessSeconds: "must be ≥ smallestMaxStalenessSeconds (90s)".
const smallestMaxStaleness = 90 * time.Second

// ReadPref is an immutable read preference.
type ReadPref struct {
	mode           Mode
	tagSets        []TagSet
	maxStaleness   time.Duration
	hedgeEnabled   *bool
}

// New constructs a ReadPref, validating maxStaleness per spec.md §4.5:
// positive values are forbidden with PrimaryMode, and must clear the
// 90-second floor.
func New(mode Mode, opts ...Option) (*ReadPref, error) {
	rp := &ReadPref{mode: mode}
	for _, o := range opts {
		o(rp)
	}
	if rp.maxStaleness != 0 {
		if mode == PrimaryMode {
			return nil, fmt.Errorf("readpref: maxStaleness is not allowed with primary mode")
		}
		if floor := maxStalenessFloor(); rp.maxStaleness < floor {
			return nil, fmt.Errorf("readpref: maxStaleness must be at least %s", floor)
		}
	}
	if len(rp.tagSets) > 0 && mode == PrimaryMode {
		return nil, fmt.Errorf("readpref: tag sets are not allowed with primary mode")
	}
	return rp, nil
}

// Option configures a ReadPref.
type Option func(*ReadPref)

// WithTagSets sets the ordered tag sets consulted during server selection.
func WithTagSets(tagSets ...TagSet) Option {
	return func(rp *ReadPref) { rp.tagSets = tagSets }
}

// WithMaxStaleness sets the max-staleness window.
func WithMaxStaleness(d time.Duration) Option {
	return func(rp *ReadPref) { rp.maxStaleness = d }
}

func Primary() *ReadPref {
	rp, _ := New(PrimaryMode)
	return rp
}

// PrimaryPreferred returns a ReadPref that selects the primary if one is
// available, falling back to a secondary otherwise.
func PrimaryPreferred(opts ...Option) (*ReadPref, error) {
	return New(PrimaryPreferredMode, opts...)
}

// Secondary returns a ReadPref that selects only secondaries.
func Secondary(opts ...Option) (*ReadPref, error) {
	return New(SecondaryMode, opts...)
}

func SecondaryPreferred(opts ...Option) *ReadPref {
	rp, _ := New(SecondaryPreferredMode, opts...)
	return rp
}

// Nearest returns a ReadPref that selects any server within the latency
// window, primary or secondary.
func Nearest(opts ...Option) (*ReadPref, error) {
	return New(NearestMode, opts...)
}

func (rp *ReadPref) Mode() Mode               { return rp.mode }
func (rp *ReadPref) TagSets() []TagSet        { return rp.tagSets }
func (rp *ReadPref) MaxStaleness() time.Duration { return rp.maxStaleness }

// idleWritePeriod is the server's worst-case gap between no-op heartbeats
// used to pad the maxStaleness floor below.
const idleWritePeriod = 10 * time.Second

// maxStalenessFloor is the larger of the flat 90-second minimum and
// heartbeatFrequency+idleWritePeriod, using the driver's default heartbeat
// frequency since ReadPref is constructed independently of any one
// deployment's configured interval.
func maxStalenessFloor() time.Duration {
	if alt := defaultHeartbeatFrequency + idleWritePeriod; alt > smallestMaxStaleness {
		return alt
	}
	return smallestMaxStaleness
}
