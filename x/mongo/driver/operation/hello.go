// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package operation

import (
	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/mongo/description"
)

// Hello builds a plain client-facing `hello` command, the shape a façade's
// Ping or a diagnostic call sends through the executor (the SDAM
// monitor's own awaitable hello lives in x/mongo/driver/topology and does
// not go through this builder).
type Hello struct {
	AppName string
}

// Command returns the driver.CommandFn for h.
func (h *Hello) Command() func(desc description.Server) (primitive.D, error) {
	return func(desc description.Server) (primitive.D, error) {
		d := primitive.D{{Key: "hello", Value: int32(1)}}
		if h.AppName != "" {
			d = append(d, primitive.E{Key: "client", Value: primitive.D{
				{Key: "application", Value: primitive.D{{Key: "name", Value: h.AppName}}},
			}})
		}
		return d, nil
	}
}
