// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"time"

	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/mongo/address"
	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

// buildHelloCommand assembles spec.md §4.3's `hello` command: always
// `hello: 1`, plus `topologyVersion`/`maxAwaitTimeMS` when awaitable mode
// is appropriate (an existing, non-Unknown server description).
func buildHelloCommand(prev description.Server, awaitable bool, maxAwaitTime int32) bsoncore.Document {
	idx, doc := bsoncore.AppendDocumentStart(nil)
	doc = bsoncore.AppendInt32Element(doc, "hello", 1)
	if awaitable && prev.TopologyVersion != nil {
		tvIdx, tv := bsoncore.AppendDocumentStart(nil)
		tv = bsoncore.AppendObjectIDElement(tv, "processId", [12]byte(prev.TopologyVersion.ProcessID))
		tv = bsoncore.AppendInt64Element(tv, "counter", prev.TopologyVersion.Counter)
		tv = bsoncore.AppendDocumentEnd(tv, tvIdx)
		doc = bsoncore.AppendDocumentElement(doc, "topologyVersion", tv)
		doc = bsoncore.AppendInt32Element(doc, "maxAwaitTimeMS", maxAwaitTime)
	}
	doc = bsoncore.AppendStringElement(doc, "$db", "admin")
	return bsoncore.AppendDocumentEnd(doc, idx)
}

// parseHelloReply builds a Server description from a hello reply,
// implementing spec.md §3's ServerDescription field extraction.
func parseHelloReply(addr address.Address, reply bsoncore.Document, rtt int64, rttSet bool) description.Server {
	s := description.Server{
		Addr:           addr,
		LastUpdateTime: timeNow(),
		AverageRTT:     durationFromMillis(rtt),
		AverageRTTSet:  rttSet,
	}

	if v, err := reply.LookupErr("ok"); err == nil {
		if n, ok := v.AsInt64OK(); ok && n == 0 {
			s.Kind = description.Unknown
			return s
		}
	}

	isReplicaSetMember := false

	if v, err := reply.LookupErr("msg"); err == nil {
		if m, ok := v.StringValueOK(); ok && m == "isdbgrid" {
			s.Kind = description.Mongos
		}
	}
	if v, err := reply.LookupErr("setName"); err == nil {
		if name, ok := v.StringValueOK(); ok {
			s.SetName = name
			isReplicaSetMember = true
		}
	}
	if v, err := reply.LookupErr("isWritablePrimary"); err == nil {
		if b, ok := asBoolOK(v); ok && b {
			if isReplicaSetMember {
				s.Kind = description.RSPrimary
			} else {
				s.Kind = description.Standalone
			}
		}
	} else if v, err := reply.LookupErr("ismaster"); err == nil {
		if b, ok := asBoolOK(v); ok && b {
			if isReplicaSetMember {
				s.Kind = description.RSPrimary
			} else {
				s.Kind = description.Standalone
			}
		}
	}
	if v, err := reply.LookupErr("secondary"); err == nil {
		if b, ok := asBoolOK(v); ok && b && isReplicaSetMember {
			s.Kind = description.RSSecondary
		}
	}
	if v, err := reply.LookupErr("arbiterOnly"); err == nil {
		if b, ok := asBoolOK(v); ok && b && isReplicaSetMember {
			s.Kind = description.RSArbiter
		}
	}
	if isReplicaSetMember && s.Kind == description.Unknown {
		s.Kind = description.RSOther
	}
	if s.Kind == description.Unknown && !isReplicaSetMember {
		s.Kind = description.Standalone
	}

	if v, err := reply.LookupErr("minWireVersion"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			s.MinWireVersion = int32(n)
		}
	}
	if v, err := reply.LookupErr("maxWireVersion"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			s.MaxWireVersion = int32(n)
		}
	}
	if v, err := reply.LookupErr("logicalSessionTimeoutMinutes"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			s.LogicalSessionTimeoutMinutes = &n
		}
	}
	if v, err := reply.LookupErr("setVersion"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			u := uint64(n)
			s.SetVersion = &u
		}
	}
	if v, err := reply.LookupErr("electionId"); err == nil {
		if oid, ok := v.ObjectIDValueOK(); ok {
			eid := primitive.ObjectID(oid)
			s.ElectionID = &eid
		}
	}
	if v, err := reply.LookupErr("primary"); err == nil {
		if str, ok := v.StringValueOK(); ok {
			s.Primary = address.Normalize(str)
		}
	}
	s.Hosts = stringArray(reply, "hosts")
	s.Passives = stringArray(reply, "passives")
	s.Arbiters = stringArray(reply, "arbiters")

	if v, err := reply.LookupErr("lastWrite"); err == nil {
		if lw, lerr := v.DocumentOK(); lerr == nil {
			if ov, oerr := lw.LookupErr("lastWriteDate"); oerr == nil {
				if dt, ok := ov.DateTimeValueOK(); ok {
					s.LastWriteDate = dt
				}
			}
		}
	}

	if v, err := reply.LookupErr("topologyVersion"); err == nil {
		if tvDoc, terr := v.DocumentOK(); terr == nil {
			tv := &description.TopologyVersion{}
			if pv, perr := tvDoc.LookupErr("processId"); perr == nil {
				if oid, ok := pv.ObjectIDValueOK(); ok {
					tv.ProcessID = primitive.ObjectID(oid)
				}
			}
			if cv, cerr := tvDoc.LookupErr("counter"); cerr == nil {
				if n, ok := cv.AsInt64OK(); ok {
					tv.Counter = n
				}
			}
			s.TopologyVersion = tv
		}
	}

	return s
}

func stringArray(doc bsoncore.Document, key string) []string {
	v, err := doc.LookupErr(key)
	if err != nil {
		return nil
	}
	arr := v.ArrayValue()
	vals, err := arr.Values()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(vals))
	for _, e := range vals {
		if s, ok := e.StringValueOK(); ok {
			out = append(out, s)
		}
	}
	return out
}

func asBoolOK(v bsoncore.Value) (bool, bool) {
	switch v.Type {
	case 0x08:
		return v.Boolean(), true
	case 0x10:
		return v.Int32() != 0, true
	case 0x12:
		return v.Int64() != 0, true
	default:
		return false, false
	}
}

func durationFromMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func timeNow() time.Time { return time.Now() }
