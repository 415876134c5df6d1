// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package operation

import (
	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

// GetMore describes a getMore command, always run bound to the
// connection/server the originating find or aggregate selected (spec.md
// §4.8's bound-connection strategy).
type GetMore struct {
	Collection Collection
	CursorID   int64
	BatchSize  *int32
}

// Command returns the driver.CommandFn for gm.
func (gm *GetMore) Command() func(desc description.Server) (primitive.D, error) {
	return func(desc description.Server) (primitive.D, error) {
		d := primitive.D{
			{Key: "getMore", Value: gm.CursorID},
			{Key: "collection", Value: gm.Collection.Name},
		}
		d = appendIfSet(d, "batchSize", gm.BatchSize, gm.BatchSize != nil)
		return d, nil
	}
}

// KillCursors describes a killCursors command, also bound to the
// originating server.
type KillCursors struct {
	Collection Collection
	CursorIDs  []int64
}

// Command returns the driver.CommandFn for kc.
func (kc *KillCursors) Command() func(desc description.Server) (primitive.D, error) {
	return func(desc description.Server) (primitive.D, error) {
		return primitive.D{
			{Key: "killCursors", Value: kc.Collection.Name},
			{Key: "cursors", Value: kc.CursorIDs},
		}, nil
	}
}

// DecodeKillCursorsReply extracts the cursorsKilled array length from a
// killCursors reply; callers generally only care that the command
// succeeded, so this is provided for completeness/testing.
func DecodeKillCursorsReply(reply bsoncore.Document) (killed int, err error) {
	v, err := reply.LookupErr("cursorsKilled")
	if err != nil {
		return 0, nil
	}
	arr := v.ArrayValue()
	vals, err := arr.Values()
	if err != nil {
		return 0, err
	}
	return len(vals), nil
}
