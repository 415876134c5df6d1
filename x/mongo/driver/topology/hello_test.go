// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"testing"
	"time"

	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

func TestBuildHelloCommandNotAwaitable(t *testing.T) {
	cmd := buildHelloCommand(description.Server{}, false, 0)
	if _, err := cmd.LookupErr("topologyVersion"); err == nil {
		t.Fatal("did not expect topologyVersion on a non-awaitable hello")
	}
	if v, err := cmd.LookupErr("hello"); err != nil {
		t.Fatal("expected a hello field")
	} else if n, _ := v.AsInt64OK(); n != 1 {
		t.Fatalf("got hello=%d, want 1", n)
	}
}

func TestBuildHelloCommandAwaitableIncludesTopologyVersion(t *testing.T) {
	prev := description.Server{
		TopologyVersion: &description.TopologyVersion{Counter: 3},
	}
	cmd := buildHelloCommand(prev, true, 10000)
	tv, err := cmd.LookupErr("topologyVersion")
	if err != nil {
		t.Fatal("expected topologyVersion on an awaitable hello with a known prior topologyVersion")
	}
	doc, derr := tv.DocumentOK()
	if derr != nil {
		t.Fatalf("topologyVersion should be a document: %v", derr)
	}
	counter, cerr := doc.LookupErr("counter")
	if cerr != nil {
		t.Fatal("expected a counter field in topologyVersion")
	}
	if n, _ := counter.AsInt64OK(); n != 3 {
		t.Fatalf("got counter=%d, want 3", n)
	}
	if _, err := cmd.LookupErr("maxAwaitTimeMS"); err != nil {
		t.Fatal("expected maxAwaitTimeMS alongside topologyVersion")
	}
}

func buildReply(elems ...[]byte) bsoncore.Document {
	return bsoncore.BuildDocument(nil, elems...)
}

func TestParseHelloReplyStandalone(t *testing.T) {
	reply := buildReply(
		bsoncore.AppendInt32Element(nil, "ok", 1),
		bsoncore.AppendBooleanElement(nil, "isWritablePrimary", true),
		bsoncore.AppendInt32Element(nil, "minWireVersion", 6),
		bsoncore.AppendInt32Element(nil, "maxWireVersion", 21),
	)
	s := parseHelloReply("a:27017", reply, 5, true)
	if s.Kind != description.Standalone {
		t.Fatalf("got %s, want Standalone", s.Kind)
	}
	if s.MinWireVersion != 6 || s.MaxWireVersion != 21 {
		t.Fatalf("got wire range [%d,%d], want [6,21]", s.MinWireVersion, s.MaxWireVersion)
	}
	if !s.AverageRTTSet || s.AverageRTT != 5*time.Millisecond {
		t.Fatalf("got AverageRTT=%s set=%v, want 5ms set=true", s.AverageRTT, s.AverageRTTSet)
	}
}

func TestParseHelloReplyReplicaSetPrimary(t *testing.T) {
	reply := buildReply(
		bsoncore.AppendInt32Element(nil, "ok", 1),
		bsoncore.AppendStringElement(nil, "setName", "rs0"),
		bsoncore.AppendBooleanElement(nil, "isWritablePrimary", true),
		bsoncore.AppendArrayElement(nil, "hosts", bsoncore.BuildArray(nil,
			stringValue("a:27017"), stringValue("b:27017"))),
	)
	s := parseHelloReply("a:27017", reply, 0, false)
	if s.Kind != description.RSPrimary {
		t.Fatalf("got %s, want RSPrimary", s.Kind)
	}
	if s.SetName != "rs0" {
		t.Fatalf("got setName %q, want rs0", s.SetName)
	}
	if len(s.Hosts) != 2 {
		t.Fatalf("got %d hosts, want 2", len(s.Hosts))
	}
}

func TestParseHelloReplyReplicaSetSecondary(t *testing.T) {
	reply := buildReply(
		bsoncore.AppendInt32Element(nil, "ok", 1),
		bsoncore.AppendStringElement(nil, "setName", "rs0"),
		bsoncore.AppendBooleanElement(nil, "secondary", true),
	)
	s := parseHelloReply("b:27017", reply, 0, false)
	if s.Kind != description.RSSecondary {
		t.Fatalf("got %s, want RSSecondary", s.Kind)
	}
}

func TestParseHelloReplyMongos(t *testing.T) {
	reply := buildReply(
		bsoncore.AppendInt32Element(nil, "ok", 1),
		bsoncore.AppendStringElement(nil, "msg", "isdbgrid"),
	)
	s := parseHelloReply("a:27017", reply, 0, false)
	if s.Kind != description.Mongos {
		t.Fatalf("got %s, want Mongos", s.Kind)
	}
}

func TestParseHelloReplyNotOkIsUnknown(t *testing.T) {
	reply := buildReply(bsoncore.AppendInt32Element(nil, "ok", 0))
	s := parseHelloReply("a:27017", reply, 0, false)
	if s.Kind != description.Unknown {
		t.Fatalf("got %s, want Unknown", s.Kind)
	}
}

func stringValue(s string) bsoncore.Value {
	return bsoncore.Value{Type: 0x02, Data: bsoncore.AppendString(nil, s)}
}
