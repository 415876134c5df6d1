// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package operation builds the per-command document a driver.Operation
// sends: find, insert, update, delete, getMore, and killCursors, plus the
// reply shapes callers decode into. Each builder returns a
// driver.CommandFn so it plugs directly into driver.Operation.Command.
package operation

import (
	"fmt"

	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/mongo/description"
)

// Collection identifies the namespace a CRUD command targets. The
// database name is carried separately on driver.Operation.Database; this
// type only holds the collection part of the namespace.
type Collection struct {
	Name string
}

func appendIfSet(d primitive.D, key string, v interface{}, set bool) primitive.D {
	if !set {
		return d
	}
	return append(d, primitive.E{Key: key, Value: v})
}

// checkWireVersion returns an error if desc's negotiated wire version
// range doesn't cover min, the check every command builder runs before
// assembling server-version-gated fields.
func checkWireVersion(desc description.Server, min int32, feature string) error {
	if desc.MaxWireVersion == 0 && desc.MinWireVersion == 0 {
		// Description not yet populated (e.g. a bound getMore before the
		// first heartbeat lands); let the server reject it if unsupported.
		return nil
	}
	if desc.MaxWireVersion < min {
		return fmt.Errorf("operation: %s requires wire version >= %d, server supports up to %d", feature, min, desc.MaxWireVersion)
	}
	return nil
}
