// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"fmt"

	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

// Retryable error labels (spec.md §7).
const (
	RetryableWriteError = "RetryableWriteError"
	RetryableReadError  = "RetryableReadError"
)

// Error wraps a server reply reporting ok:0, the concrete type behind
// spec.md §7's "Command" error kind.
type Error struct {
	Code    int32
	Name    string
	Message string
	Labels  []string
	Raw     bsoncore.Document
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("(%s) %s", e.Name, e.Message)
	}
	return e.Message
}

// HasErrorLabel reports whether label is present in e.Labels.
func (e *Error) HasErrorLabel(label string) bool {
	if e == nil {
		return false
	}
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// NetworkError wraps a socket-level failure on a specific connection,
// spec.md §7's "Network" kind. The executor unwraps it to decide whether
// the underlying connection's pool must be cleared.
type NetworkError struct {
	ConnectionID string
	Addr         string
	Wrapped      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("connection(%s) %s: %s", e.ConnectionID, e.Addr, e.Wrapped)
}

func (e *NetworkError) Unwrap() error { return e.Wrapped }

// WriteError is one element of a multi-document write's partial-success
// surface (spec.md §7's "WriteConcern / Write" kind).
type WriteError struct {
	Index   int32
	Code    int32
	Message string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write error at index %d: (%d) %s", e.Index, e.Code, e.Message)
}

// WriteException aggregates the write errors and write-concern error from
// a single write command's reply.
type WriteException struct {
	WriteErrors       []WriteError
	WriteConcernError *WriteError
	Labels            []string
}

func (e *WriteException) Error() string {
	if len(e.WriteErrors) > 0 {
		return e.WriteErrors[0].Error()
	}
	if e.WriteConcernError != nil {
		return "write concern error: " + e.WriteConcernError.Error()
	}
	return "write exception with no errors"
}

// HasErrorLabel reports whether label is present in e.Labels.
func (e *WriteException) HasErrorLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// ExtractCommandError builds an *Error from a command reply document if
// it reports ok:0, or returns (nil, nil) on success.
func ExtractCommandError(reply bsoncore.Document) (*Error, error) {
	okVal, err := reply.LookupErr("ok")
	if err == nil {
		if ok, convErr := asBool(okVal); convErr == nil && ok {
			return nil, nil
		}
	}

	ce := &Error{Raw: reply}
	if codeVal, err := reply.LookupErr("code"); err == nil {
		if n, ok := codeVal.AsInt64OK(); ok {
			ce.Code = int32(n)
		}
	}
	if nameVal, err := reply.LookupErr("codeName"); err == nil {
		ce.Name, _ = nameVal.StringValueOK()
	}
	if msgVal, err := reply.LookupErr("errmsg"); err == nil {
		ce.Message, _ = msgVal.StringValueOK()
	}
	if labelsVal, err := reply.LookupErr("errorLabels"); err == nil {
		arr := labelsVal.ArrayValue()
		vals, verr := arr.Values()
		if verr == nil {
			for _, v := range vals {
				if s, ok := v.StringValueOK(); ok {
					ce.Labels = append(ce.Labels, s)
				}
			}
		}
	}
	return ce, nil
}

func asBool(v bsoncore.Value) (bool, error) {
	switch v.Type {
	case 0x08:
		return v.Boolean(), nil
	case 0x10:
		return v.Int32() != 0, nil
	case 0x12:
		return v.Int64() != 0, nil
	case 0x01:
		return v.Double() != 0, nil
	default:
		return false, fmt.Errorf("driver: ok field has unexpected type %s", v.Type)
	}
}
