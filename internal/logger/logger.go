// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package logger implements the driver's structured, component-leveled
// logging (SPEC_FULL.md §2). A Logger never blocks the caller: messages are
// queued to a buffered channel and drained by one printer goroutine, so a
// slow or absent LogSink cannot stall an operation in flight.
package logger

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const jobBufferSize = 100

const logSinkPathEnvVar = "NODEDB_LOG_PATH"
const maxDocumentLengthEnvVar = "NODEDB_LOG_MAX_DOCUMENT_LENGTH"

// DefaultMaxDocumentLength is the default maximum length, in bytes, of a
// stringified document embedded in a log line before truncation.
const DefaultMaxDocumentLength = 1000

// TruncationSuffix is appended to a truncated document string. It does not
// count toward MaxDocumentLength.
const TruncationSuffix = "..."

// LogSink is a subset of go-logr/logr's LogSink interface, letting callers
// plug in logr, zap, or zerolog adapters without this package depending on
// any of them.
type LogSink interface {
	Info(level int, msg string, keysAndValues ...interface{})
}

// Message is anything that can be logged: a component, a human-readable
// message, and a flat key/value list (document fields get special
// truncation treatment in formatMessage).
type Message interface {
	Component() Component
	Message() string
	KeysAndValues() []interface{}
}

type job struct {
	level Level
	msg   Message
}

// Logger is the driver's logger.
type Logger struct {
	ComponentLevels   map[Component]Level
	Sink              LogSink
	MaxDocumentLength uint

	jobs chan job
}

// New constructs a Logger. componentLevels take precedence over whatever
// the environment specifies; maxDocumentLength of 0 falls back to the
// environment then DefaultMaxDocumentLength; a nil sink falls back to the
// environment then stderr.
func New(sink LogSink, maxDocumentLength uint, componentLevels map[Component]Level) *Logger {
	l := &Logger{
		ComponentLevels:   mergeComponentLevels(componentLevels, envComponentLevels()),
		MaxDocumentLength: firstNonZero(maxDocumentLength, envMaxDocumentLength(), DefaultMaxDocumentLength),
		Sink:              firstNonNilSink(sink, envLogSink()),
		jobs:              make(chan job, jobBufferSize),
	}
	go l.run()
	return l
}

// Close drains and stops the logger's printer goroutine. It must not be
// called concurrently with Print.
func (l *Logger) Close() { close(l.jobs) }

// Is reports whether level is enabled for component.
func (l *Logger) Is(level Level, component Component) bool {
	return l.ComponentLevels[component] >= level
}

// Print enqueues msg for asynchronous delivery to the sink. If the queue is
// full, the message is dropped rather than blocking the caller.
func (l *Logger) Print(level Level, msg Message) {
	select {
	case l.jobs <- job{level, msg}:
	default:
	}
}

func (l *Logger) run() {
	for j := range l.jobs {
		if !l.Is(j.level, j.msg.Component()) {
			continue
		}
		if l.Sink == nil {
			continue
		}
		kv := formatMessage(j.msg.KeysAndValues(), l.MaxDocumentLength)
		l.Sink.Info(int(j.level)-DiffToInfo, j.msg.Message(), kv...)
	}
}

func truncate(s string, width uint) string {
	if width == 0 || uint(len(s)) <= width {
		return s
	}
	cut := s[:width]
	for len(cut) > 0 && !isRuneStart(cut[len(cut)-1]) {
		cut = cut[:len(cut)-1]
	}
	return cut + TruncationSuffix
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// formatMessage truncates any "command" or "reply" field (already rendered
// to a string by the caller) to commandWidth bytes, per spec.md §6:
// "Document fields over a configurable size are elided to keep log lines
// bounded."
func formatMessage(keysAndValues []interface{}, commandWidth uint) []interface{} {
	out := make([]interface{}, len(keysAndValues))
	copy(out, keysAndValues)
	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		if key != "command" && key != "reply" {
			continue
		}
		if s, ok := out[i+1].(string); ok {
			out[i+1] = truncate(s, commandWidth)
		}
	}
	return out
}

func firstNonZero(vals ...uint) uint {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonNilSink(sinks ...LogSink) LogSink {
	for _, s := range sinks {
		if s != nil {
			return s
		}
	}
	return newOSSink(os.Stderr)
}

func envMaxDocumentLength() uint {
	s := os.Getenv(maxDocumentLengthEnvVar)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}

func envLogSink() LogSink {
	switch strings.ToLower(os.Getenv(logSinkPathEnvVar)) {
	case "stderr", "":
		return newOSSink(os.Stderr)
	case "stdout":
		return newOSSink(os.Stdout)
	default:
		path := os.Getenv(logSinkPathEnvVar)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return newOSSink(os.Stderr)
		}
		return newOSSink(f)
	}
}

func envComponentLevels() map[Component]Level {
	levels := make(map[Component]Level, len(allComponents))
	global := ParseLevel(os.Getenv(componentEnvVarAll))
	for _, c := range allComponents {
		lvl := global
		if lvl == LevelOff {
			lvl = ParseLevel(os.Getenv(componentEnvVar(c)))
		}
		levels[c] = lvl
	}
	return levels
}

// mergeComponentLevels merges explicit over env, explicit taking priority
// per component.
func mergeComponentLevels(explicit, env map[Component]Level) map[Component]Level {
	merged := make(map[Component]Level, len(allComponents))
	for _, c := range allComponents {
		merged[c] = env[c]
	}
	for c, lvl := range explicit {
		merged[c] = lvl
	}
	return merged
}

// osSink is the LogSink used when the caller supplies none: it writes
// "level message key=value ..." lines to the given file.
type osSink struct {
	w *os.File
}

func newOSSink(w *os.File) LogSink {
	return &osSink{w: w}
}

func (s *osSink) Info(level int, msg string, keysAndValues ...interface{}) {
	fmt.Fprintf(s.w, "[%d] %s", level, msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(s.w, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	fmt.Fprintln(s.w)
}
