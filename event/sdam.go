// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package event

import "time"

// ServerDescriptionChangedEvent is published whenever a server's
// description is replaced, even if the two descriptions compare equal
// (spec.md §4.4: "ServerDescriptions are replaced wholesale ... after each
// heartbeat reply or topology event").
type ServerDescriptionChangedEvent struct {
	Address             string
	TopologyID          string
	PreviousDescription interface{}
	NewDescription      interface{}
}

// TopologyDescriptionChangedEvent is published whenever the topology as a
// whole transitions to a new immutable description.
type TopologyDescriptionChangedEvent struct {
	TopologyID          string
	PreviousDescription interface{}
	NewDescription      interface{}
}

// TopologyOpeningEvent and TopologyClosedEvent bracket a topology's
// lifetime.
type TopologyOpeningEvent struct{ TopologyID string }
type TopologyClosedEvent struct{ TopologyID string }

// ServerHeartbeatStartedEvent is published immediately before a monitor
// sends a hello on its dedicated heartbeat connection.
type ServerHeartbeatStartedEvent struct {
	ConnectionID string
	Awaited      bool
}

// ServerHeartbeatSucceededEvent is published when a hello reply is
// successfully read.
type ServerHeartbeatSucceededEvent struct {
	Duration     time.Duration
	ConnectionID string
	Awaited      bool
}

// ServerHeartbeatFailedEvent is published when sending or reading a hello
// fails; the monitor marks the server Unknown and clears its pool.
type ServerHeartbeatFailedEvent struct {
	Duration     time.Duration
	Failure      error
	ConnectionID string
	Awaited      bool
}

// ServerMonitor receives SDAM events. Any field may be nil.
type ServerMonitor struct {
	ServerDescriptionChanged   func(ServerDescriptionChangedEvent)
	TopologyDescriptionChanged func(TopologyDescriptionChangedEvent)
	TopologyOpening            func(TopologyOpeningEvent)
	TopologyClosed             func(TopologyClosedEvent)
	ServerHeartbeatStarted     func(ServerHeartbeatStartedEvent)
	ServerHeartbeatSucceeded   func(ServerHeartbeatSucceededEvent)
	ServerHeartbeatFailed      func(ServerHeartbeatFailedEvent)
}

func (m *ServerMonitor) PublishServerDescriptionChanged(e ServerDescriptionChangedEvent) {
	if m != nil && m.ServerDescriptionChanged != nil {
		m.ServerDescriptionChanged(e)
	}
}

func (m *ServerMonitor) PublishTopologyDescriptionChanged(e TopologyDescriptionChangedEvent) {
	if m != nil && m.TopologyDescriptionChanged != nil {
		m.TopologyDescriptionChanged(e)
	}
}

func (m *ServerMonitor) PublishTopologyOpening(e TopologyOpeningEvent) {
	if m != nil && m.TopologyOpening != nil {
		m.TopologyOpening(e)
	}
}

func (m *ServerMonitor) PublishTopologyClosed(e TopologyClosedEvent) {
	if m != nil && m.TopologyClosed != nil {
		m.TopologyClosed(e)
	}
}

func (m *ServerMonitor) PublishServerHeartbeatStarted(e ServerHeartbeatStartedEvent) {
	if m != nil && m.ServerHeartbeatStarted != nil {
		m.ServerHeartbeatStarted(e)
	}
}

func (m *ServerMonitor) PublishServerHeartbeatSucceeded(e ServerHeartbeatSucceededEvent) {
	if m != nil && m.ServerHeartbeatSucceeded != nil {
		m.ServerHeartbeatSucceeded(e)
	}
}

func (m *ServerMonitor) PublishServerHeartbeatFailed(e ServerHeartbeatFailedEvent) {
	if m != nil && m.ServerHeartbeatFailed != nil {
		m.ServerHeartbeatFailed(e)
	}
}
