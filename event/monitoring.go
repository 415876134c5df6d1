// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package event defines the driver's observability surface: command,
// server-discovery-and-monitoring, and connection-pool events, plus the
// monitor interfaces a caller implements to receive them (spec.md §6).
package event

import (
	"time"

	"go.nodedb.dev/driver/bson"
)

// CommandStartedEvent is published immediately before a command is written
// to the wire.
type CommandStartedEvent struct {
	Command      bson.Raw
	DatabaseName string
	CommandName  string
	RequestID    int64
	OperationID  int64
	ConnectionID string
}

// CommandSucceededEvent is published when a command's reply has been read
// and does not contain an ok:0 or error field.
type CommandSucceededEvent struct {
	Duration     time.Duration
	Reply        bson.Raw
	CommandName  string
	RequestID    int64
	OperationID  int64
	ConnectionID string
}

// CommandFailedEvent is published when sending a command or reading its
// reply fails, or the reply reports an error.
type CommandFailedEvent struct {
	Duration     time.Duration
	CommandName  string
	Failure      error
	RequestID    int64
	OperationID  int64
	ConnectionID string
}

// CommandMonitor receives command lifecycle events. A nil field is
// permitted and simply means the caller does not care about that event.
type CommandMonitor struct {
	Started   func(CommandStartedEvent)
	Succeeded func(CommandSucceededEvent)
	Failed    func(CommandFailedEvent)
}

// PublishStarted invokes m.Started if m and the field are both non-nil.
func (m *CommandMonitor) PublishStarted(e CommandStartedEvent) {
	if m != nil && m.Started != nil {
		m.Started(e)
	}
}

// PublishSucceeded invokes m.Succeeded if m and the field are both non-nil.
func (m *CommandMonitor) PublishSucceeded(e CommandSucceededEvent) {
	if m != nil && m.Succeeded != nil {
		m.Succeeded(e)
	}
}

// PublishFailed invokes m.Failed if m and the field are both non-nil.
func (m *CommandMonitor) PublishFailed(e CommandFailedEvent) {
	if m != nil && m.Failed != nil {
		m.Failed(e)
	}
}
