// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"bytes"
	"testing"

	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

func TestParseSaslResponse(t *testing.T) {
	reply := bsoncore.BuildDocument(nil,
		bsoncore.AppendInt32Element(nil, "conversationId", 1),
		bsoncore.AppendBooleanElement(nil, "done", false),
		bsoncore.AppendBinaryElement(nil, "payload", 0x00, []byte("r=abc")),
		bsoncore.AppendInt32Element(nil, "ok", 1),
	)

	cidElem, done, payload, err := parseSaslResponse(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatal("expected done=false")
	}
	if !bytes.Equal(payload, []byte("r=abc")) {
		t.Fatalf("got payload %q, want r=abc", payload)
	}

	// conversationId must be re-encodable as an int64 element regardless of
	// whether the server sent it as int32 or int64.
	wrapped := bsoncore.BuildDocument(nil, cidElem)
	v, err := wrapped.LookupErr("conversationId")
	if err != nil {
		t.Fatalf("conversationId element did not round-trip: %v", err)
	}
	if n, ok := v.AsInt64OK(); !ok || n != 1 {
		t.Fatalf("got conversationId %d, want 1", n)
	}
}

func TestParseSaslResponseMissingPayload(t *testing.T) {
	reply := bsoncore.BuildDocument(nil,
		bsoncore.AppendInt32Element(nil, "conversationId", 1),
		bsoncore.AppendBooleanElement(nil, "done", true),
	)
	if _, _, _, err := parseSaslResponse(reply); err == nil {
		t.Fatal("expected error for missing payload")
	}
}
