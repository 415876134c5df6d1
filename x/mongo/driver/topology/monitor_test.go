// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"testing"
	"time"
)

func TestMonitorRecordRTTSeedsOnFirstSample(t *testing.T) {
	m := &Monitor{}
	avg, set := m.recordRTT(20 * time.Millisecond)
	if !set {
		t.Fatal("expected avgRTTSet after the first sample")
	}
	if avg != 20*time.Millisecond {
		t.Fatalf("got %s, want the first sample unchanged (20ms)", avg)
	}
}

func TestMonitorRecordRTTAppliesEWMA(t *testing.T) {
	m := &Monitor{}
	m.recordRTT(20 * time.Millisecond)
	avg, _ := m.recordRTT(0)
	// newAvg = 0.2*0 + 0.8*20ms = 16ms
	want := 16 * time.Millisecond
	if avg != want {
		t.Fatalf("got %s, want %s", avg, want)
	}
}
