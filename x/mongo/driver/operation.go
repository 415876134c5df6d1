// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"
	"fmt"
	"time"

	"go.nodedb.dev/driver/bson"
	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/event"
	"go.nodedb.dev/driver/internal/logger"
	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/mongo/readconcern"
	"go.nodedb.dev/driver/mongo/readpref"
	"go.nodedb.dev/driver/mongo/writeconcern"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
	"go.nodedb.dev/driver/x/mongo/driver/session"
)

// SelectedServer is the result of server selection: something the
// executor can check a Connection out of. Implemented by
// x/mongo/driver/topology.Server; kept as an interface here so this
// package never imports topology (topology imports driver, not the
// reverse).
type SelectedServer interface {
	Connection(ctx context.Context) (*Connection, error)
	Description() description.Server
	Address() string
	IncrementOperationCount()
	DecrementOperationCount()
	// ProcessError reacts to a command's network-level failure: spec.md
	// §4.6 requires it invalidate the offending connection's pool and mark
	// the server Unknown ahead of its next heartbeat.
	ProcessError(err error)
}

// Deployment is something the executor can select a server from.
// Implemented by x/mongo/driver/topology.Topology.
type Deployment interface {
	SelectServer(ctx context.Context, rp *readpref.ReadPref) (SelectedServer, error)
}

// CommandFn builds the command document to send, given the selected
// server's description (so it can, for example, omit fields unsupported
// by the negotiated wire version).
type CommandFn func(desc description.Server) (primitive.D, error)

// DecodeFn interprets a successful reply document into a caller-owned
// result type. A nil DecodeFn means the caller only cares that the
// command succeeded.
type DecodeFn func(reply bsoncore.Document) error

// Operation describes one command execution through the six/seven-step
// algorithm of spec.md §4.8.
type Operation struct {
	Database    string
	Command     CommandFn
	Decode      DecodeFn
	ReadPref    *readpref.ReadPref
	ReadConcern *readconcern.ReadConcern
	WriteConcern *writeconcern.WriteConcern

	Session     *session.Client
	ClientID    uint64

	Deployment Deployment
	// Bound, when non-nil, skips server selection and connection
	// checkout, reusing an already-selected server/connection — the
	// "bound-connection strategy" spec.md §4.8 requires for getMore and
	// change-stream resume.
	Bound SelectedServer

	Retryable    bool
	RetryKind    string // driver.RetryableWriteError or driver.RetryableReadError
	MaxRetries   int

	CommandMonitor *event.CommandMonitor
	Logger         *logger.Logger

	OperationID int64

	// OnSelected, if set, is called with the server an execution attempt
	// selected (or the Bound server, if set) right after selection. A
	// cursor-returning command uses this to capture the server a
	// subsequent getMore must bind to.
	OnSelected func(SelectedServer)
}

// Execute runs the operation to completion, implementing spec.md §4.8's
// execute(op, session?) algorithm including the single retry on a
// retryable error label.
func (op *Operation) Execute(ctx context.Context) error {
	maxRetries := op.MaxRetries
	if op.Retryable && maxRetries == 0 {
		maxRetries = 1
	}
	// A retryable write takes a fresh txnNumber once per Execute; every
	// attempt below sends that same number.
	if op.Session != nil && op.Retryable && op.RetryKind == RetryableWriteError {
		op.Session.NextTxnNumber()
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := op.executeOnce(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !op.Retryable || !isRetryable(err, op.RetryKind) {
			return err
		}
		// "Retry re-runs server selection from scratch" (spec.md §4.7):
		// falling through to the next loop iteration does exactly that,
		// since executeOnce always reselects unless Bound is set.
	}
	return lastErr
}

func (op *Operation) executeOnce(ctx context.Context) error {
	// Step 1: resolve session (the caller supplies explicit-or-implicit
	// session.Client already; an implicit session is minted by the mongo
	// façade before constructing the Operation).
	if op.Session != nil {
		if err := op.Session.StartOperation(op.ClientID); err != nil {
			return err
		}
		defer op.Session.EndOperation()
	}

	// Step 2: select server.
	srv := op.Bound
	if srv == nil {
		if op.Deployment == nil {
			return fmt.Errorf("driver: operation has neither a Deployment nor a Bound server")
		}
		selected, err := op.Deployment.SelectServer(ctx, op.ReadPref)
		if err != nil {
			return err
		}
		srv = selected
	}
	if op.OnSelected != nil {
		op.OnSelected(srv)
	}
	srv.IncrementOperationCount()
	defer srv.DecrementOperationCount()

	// Step 3: checkout connection.
	conn, err := srv.Connection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Step 4: encode, attach session/cluster-time/txnNumber, send, decode.
	reply, err := op.roundTrip(ctx, conn, srv.Description())
	if err != nil {
		if isNetworkError(err) {
			srv.ProcessError(err)
		}
		return err
	}

	// Step 5: advance session state is done inside roundTrip once the
	// reply is parsed, ahead of returning it here.

	return op.handleReply(reply)
}

func (op *Operation) roundTrip(ctx context.Context, conn *Connection, desc description.Server) (bsoncore.Document, error) {
	cmdDoc, err := op.buildCommand(desc)
	if err != nil {
		return nil, err
	}

	requestID := NextRequestID()
	op.publishStarted(cmdDoc, requestID, conn.ID)

	start := time.Now()
	if err := conn.WriteMsg(ctx, requestID, 0, cmdDoc); err != nil {
		op.publishFailed(requestID, conn.ID, time.Since(start), err)
		return nil, &NetworkError{ConnectionID: conn.ID, Addr: string(srvAddr(desc)), Wrapped: err}
	}

	body, err := conn.ReadMsg(ctx)
	if err != nil {
		op.publishFailed(requestID, conn.ID, time.Since(start), err)
		return nil, &NetworkError{ConnectionID: conn.ID, Addr: string(srvAddr(desc)), Wrapped: err}
	}
	duration := time.Since(start)

	reply := bsoncore.Document(body)
	if err := reply.Validate(); err != nil {
		op.publishFailed(requestID, conn.ID, duration, err)
		return nil, fmt.Errorf("driver: invalid reply document: %w", err)
	}

	op.advanceSessionState(reply)

	if ce, cerr := ExtractCommandError(reply); cerr == nil && ce != nil {
		op.publishFailed(requestID, conn.ID, duration, ce)
		return reply, ce
	}

	op.publishSucceeded(reply, requestID, conn.ID, duration)
	return reply, nil
}

func (op *Operation) buildCommand(desc description.Server) ([]byte, error) {
	cmdD, err := op.Command(desc)
	if err != nil {
		return nil, err
	}
	dst, err := bson.Marshal(cmdD)
	if err != nil {
		return nil, err
	}
	doc := bsoncore.Document(dst)

	if op.Database != "" {
		doc = bsoncore.AppendElement(doc, bsoncore.AppendStringElement(nil, "$db", op.Database))
	}

	if op.Session != nil {
		doc = bsoncore.AppendElement(doc, bsoncore.AppendDocumentElement(nil, "lsid", marshalDocOrEmpty(op.Session.SessionID)))
		if ct := op.Session.ClusterTime(); ct != nil {
			doc = bsoncore.AppendElement(doc, bsoncore.AppendDocumentElement(nil, "$clusterTime", marshalDocOrEmpty(ct)))
		}
		if op.Retryable && op.RetryKind == RetryableWriteError {
			txn := op.Session.CurrentTxnNumber()
			if txn == 0 {
				txn = op.Session.NextTxnNumber()
			}
			doc = bsoncore.AppendElement(doc, bsoncore.AppendInt64Element(nil, "txnNumber", txn))
		}
	}

	if rc := op.effectiveReadConcern(); rc != nil {
		var rcErr error
		doc, rcErr = readconcern.AppendElement(doc, rc)
		if rcErr != nil {
			return nil, rcErr
		}
	}
	if op.WriteConcern != nil {
		var wcErr error
		doc, wcErr = writeconcern.AppendElement(doc, op.WriteConcern)
		if wcErr != nil {
			return nil, wcErr
		}
	}
	return doc, nil
}

// effectiveReadConcern injects afterClusterTime per spec.md §4.7's causal
// consistency rule: only once the session has observed an operationTime,
// and only when causal consistency is enabled.
func (op *Operation) effectiveReadConcern() *readconcern.ReadConcern {
	if op.Session == nil || !op.Session.CausalConsistency {
		return op.ReadConcern
	}
	opTime, ok := op.Session.OperationTime()
	if !ok {
		return op.ReadConcern
	}
	return op.ReadConcern.WithAfterClusterTime(opTime)
}

// advanceSessionState implements spec.md §4.7: "Every successful reply
// advances session.operationTime ... and session.clusterTime".
// Unacknowledged writes (w=0) never reach here with a reply to parse, so
// the "MUST NOT advance operationTime" rule holds structurally.
func (op *Operation) advanceSessionState(reply bsoncore.Document) {
	if op.Session == nil {
		return
	}
	if v, err := reply.LookupErr("operationTime"); err == nil {
		t, i := v.TimestampValue()
		op.Session.AdvanceOperationTime(primitive.Timestamp{T: t, I: i})
	}
	if v, err := reply.LookupErr("$clusterTime"); err == nil {
		var ct primitive.D
		if uerr := bson.Unmarshal(v.Document(), &ct); uerr == nil {
			op.Session.AdvanceClusterTime(ct)
		}
	}
}

func (op *Operation) handleReply(reply bsoncore.Document) error {
	if ce, err := ExtractCommandError(reply); err == nil && ce != nil {
		return ce
	}
	if op.Decode != nil {
		return op.Decode(reply)
	}
	return nil
}

func isRetryable(err error, label string) bool {
	if label == "" {
		label = RetryableWriteError
	}
	if ce, ok := err.(*Error); ok {
		return ce.HasErrorLabel(label)
	}
	if we, ok := err.(*WriteException); ok {
		return we.HasErrorLabel(label)
	}
	if isNetworkError(err) {
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	_, ok := err.(*NetworkError)
	return ok
}

func srvAddr(desc description.Server) string { return string(desc.Addr) }

func marshalDocOrEmpty(d primitive.D) bsoncore.Document {
	raw, err := bson.Marshal(d)
	if err != nil {
		return bsoncore.Document{5, 0, 0, 0, 0}
	}
	return bsoncore.Document(raw)
}

func (op *Operation) publishStarted(cmd []byte, requestID int32, connID string) {
	if op.CommandMonitor == nil {
		return
	}
	op.CommandMonitor.PublishStarted(event.CommandStartedEvent{
		Command:      bson.Raw(cmd),
		DatabaseName: op.Database,
		RequestID:    int64(requestID),
		OperationID:  op.OperationID,
		ConnectionID: connID,
	})
}

func (op *Operation) publishSucceeded(reply bsoncore.Document, requestID int32, connID string, d time.Duration) {
	if op.CommandMonitor == nil {
		return
	}
	op.CommandMonitor.PublishSucceeded(event.CommandSucceededEvent{
		Duration:     d,
		Reply:        bson.Raw(reply),
		RequestID:    int64(requestID),
		OperationID:  op.OperationID,
		ConnectionID: connID,
	})
}

func (op *Operation) publishFailed(requestID int32, connID string, d time.Duration, err error) {
	if op.CommandMonitor == nil {
		return
	}
	op.CommandMonitor.PublishFailed(event.CommandFailedEvent{
		Duration:     d,
		Failure:      err,
		RequestID:    int64(requestID),
		OperationID:  op.OperationID,
		ConnectionID: connID,
	})
}
