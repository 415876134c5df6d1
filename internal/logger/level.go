// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import "strings"

// DiffToInfo is the number of levels before "Info" in this package's Level
// enumeration. A go-logr LogSink treats 0 as Info, so callers subtract this
// constant before handing a level to the sink.
const DiffToInfo = 1

// Level is a log severity level. The ordering matters: it must keep
// LevelInfo immediately after LevelOff so that DiffToInfo stays correct.
type Level int

// Recognised levels, from least to most verbose.
const (
	LevelOff Level = iota
	LevelInfo
	LevelDebug
)

var levelLiterals = map[string]Level{
	"off":   LevelOff,
	"error": LevelInfo,
	"warn":  LevelInfo,
	"info":  LevelInfo,
	"debug": LevelDebug,
	"trace": LevelDebug,
}

// ParseLevel maps an environment-variable string onto a Level, defaulting
// to LevelOff for anything unrecognised.
func ParseLevel(s string) Level {
	if lvl, ok := levelLiterals[strings.ToLower(s)]; ok {
		return lvl
	}
	return LevelOff
}

// Component identifies one of the driver's independently-leveled logging
// components (spec.md §2 per-subsystem boundary).
type Component string

// Recognised components.
const (
	ComponentCommand         Component = "command"
	ComponentTopology        Component = "topology"
	ComponentServerSelection Component = "serverSelection"
	ComponentConnection      Component = "connection"
)

var allComponents = []Component{
	ComponentCommand,
	ComponentTopology,
	ComponentServerSelection,
	ComponentConnection,
}

func componentEnvVar(c Component) string {
	switch c {
	case ComponentCommand:
		return "NODEDB_LOG_COMMAND"
	case ComponentTopology:
		return "NODEDB_LOG_TOPOLOGY"
	case ComponentServerSelection:
		return "NODEDB_LOG_SERVER_SELECTION"
	case ComponentConnection:
		return "NODEDB_LOG_CONNECTION"
	default:
		return ""
	}
}

// componentEnvVarAll, when set, overrides every per-component level.
const componentEnvVarAll = "NODEDB_LOG_ALL"
