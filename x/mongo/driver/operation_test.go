// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"go.nodedb.dev/driver/bson/bsontype"
	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/mongo/description"
	"go.nodedb.dev/driver/mongo/readpref"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

// fakeServer speaks just enough OP_MSG to drive the executor in tests:
// it reads one message per call to next, and the test supplies the reply
// body (or closes the connection to simulate a network failure).
type fakeServer struct {
	conn net.Conn
}

func newFakeServer(t *testing.T) (*fakeServer, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	return &fakeServer{conn: server}, client
}

// next reads one OP_MSG request and returns its body document.
func (s *fakeServer) next() (bsoncore.Document, int32, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(s.conn, sizeBuf[:]); err != nil {
		return nil, 0, err
	}
	size := int32(sizeBuf[0]) | int32(sizeBuf[1])<<8 | int32(sizeBuf[2])<<16 | int32(sizeBuf[3])<<24
	buf := make([]byte, size)
	copy(buf, sizeBuf[:])
	if _, err := io.ReadFull(s.conn, buf[4:]); err != nil {
		return nil, 0, err
	}
	h, err := ReadHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	_, body, err := ReadMsg(buf)
	if err != nil {
		return nil, 0, err
	}
	return bsoncore.Document(body), h.RequestID, nil
}

// reply sends body as the OP_MSG response to the request with requestID.
func (s *fakeServer) reply(requestID int32, body bsoncore.Document) error {
	msg := AppendMsg(nil, NextRequestID(), requestID, 0, body)
	_, err := s.conn.Write(msg)
	return err
}

func (s *fakeServer) close() { s.conn.Close() }

// fakeSelected is a SelectedServer backed by a single pre-dialed
// Connection, standing in for topology.Server in executor tests.
type fakeSelected struct {
	conn *Connection
	err  error
}

func (f *fakeSelected) Connection(ctx context.Context) (*Connection, error) { return f.conn, nil }
func (f *fakeSelected) Description() description.Server {
	return description.Server{Kind: description.Standalone}
}
func (f *fakeSelected) Address() string          { return string(f.conn.Addr) }
func (f *fakeSelected) IncrementOperationCount() {}
func (f *fakeSelected) DecrementOperationCount() {}
func (f *fakeSelected) ProcessError(err error)   { f.err = err }

// fakeDeployment returns whatever SelectedServer build produces on each
// call, recording how many times selection was requested (so a test can assert a retry
// reselected rather than reusing the dead connection).
type fakeDeployment struct {
	selects int
	build   func() (SelectedServer, *Connection, error)
}

func (d *fakeDeployment) SelectServer(ctx context.Context, rp *readpref.ReadPref) (SelectedServer, error) {
	d.selects++
	srv, _, err := d.build()
	return srv, err
}

func dialPipe(t *testing.T) (*Connection, *fakeServer) {
	t.Helper()
	srv, client := newFakeServer(t)
	conn := &Connection{ID: "1", Addr: "test:27017", conn: client}
	return conn, srv
}

func okReply(extra ...[]byte) bsoncore.Document {
	elems := append([][]byte{bsoncore.AppendInt32Element(nil, "ok", 1)}, extra...)
	return bsoncore.BuildDocument(nil, elems...)
}

func errReply(code int32, name, msg string, labels ...string) bsoncore.Document {
	elems := [][]byte{
		bsoncore.AppendInt32Element(nil, "ok", 0),
		bsoncore.AppendInt32Element(nil, "code", code),
		bsoncore.AppendStringElement(nil, "codeName", name),
		bsoncore.AppendStringElement(nil, "errmsg", msg),
	}
	if len(labels) > 0 {
		vals := make([]bsoncore.Value, len(labels))
		for i, l := range labels {
			vals[i] = bsoncore.Value{Type: bsontype.String, Data: bsoncore.AppendString(nil, l)}
		}
		elems = append(elems, bsoncore.AppendArrayElement(nil, "errorLabels", bsoncore.BuildArray(nil, vals...)))
	}
	return bsoncore.BuildDocument(nil, elems...)
}

func TestOperationExecuteSuccess(t *testing.T) {
	conn, srv := dialPipe(t)
	defer srv.close()

	go func() {
		_, reqID, err := srv.next()
		if err != nil {
			return
		}
		srv.reply(reqID, okReply(bsoncore.AppendInt32Element(nil, "n", 1)))
	}()

	selected := &fakeSelected{conn: conn}
	var gotN int32
	op := &Operation{
		Database: "test",
		Command: func(desc description.Server) (primitive.D, error) {
			return primitive.D{{Key: "ping", Value: 1}}, nil
		},
		Decode: func(reply bsoncore.Document) error {
			if v, err := reply.LookupErr("n"); err == nil {
				if n, ok := v.AsInt64OK(); ok {
					gotN = int32(n)
				}
			}
			return nil
		},
		Bound: selected,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := op.Execute(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotN != 1 {
		t.Fatalf("got n=%d, want 1", gotN)
	}
}

func TestOperationExecuteCommandError(t *testing.T) {
	conn, srv := dialPipe(t)
	defer srv.close()

	go func() {
		_, reqID, err := srv.next()
		if err != nil {
			return
		}
		srv.reply(reqID, errReply(11000, "DuplicateKey", "duplicate key"))
	}()

	selected := &fakeSelected{conn: conn}
	op := &Operation{
		Database: "test",
		Command: func(desc description.Server) (primitive.D, error) {
			return primitive.D{{Key: "insert", Value: "widgets"}}, nil
		},
		Bound: selected,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := op.Execute(ctx)
	if err == nil {
		t.Fatal("expected a command error")
	}
	ce, ok := err.(*Error)
	if !ok {
		t.Fatalf("got %T, want *Error", err)
	}
	if ce.Code != 11000 {
		t.Fatalf("got code=%d, want 11000", ce.Code)
	}
}

// TestOperationRetriesOnRetryableLabel drives two round trips through a
// Deployment that dials a fresh connection each time: the first reply
// carries a RetryableWriteError label, the second succeeds. Execute must
// reselect (not reuse the dead round) and return the second result.
func TestOperationRetriesOnRetryableLabel(t *testing.T) {
	var servers []*fakeServer

	dep := &fakeDeployment{build: func() (SelectedServer, *Connection, error) {
		conn, srv := dialPipe(t)
		servers = append(servers, srv)
		return &fakeSelected{conn: conn}, conn, nil
	}}

	go func() {
		// First attempt: fail with a retryable label.
		for len(servers) == 0 {
			time.Sleep(time.Millisecond)
		}
		_, reqID, err := servers[0].next()
		if err != nil {
			return
		}
		servers[0].reply(reqID, errReply(112, "WriteConflict", "conflict", RetryableWriteError))
	}()

	op := &Operation{
		Database: "test",
		Command: func(desc description.Server) (primitive.D, error) {
			return primitive.D{{Key: "insert", Value: "widgets"}}, nil
		},
		Deployment: dep,
		Retryable:  true,
		RetryKind:  RetryableWriteError,
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- op.Execute(ctx)
	}()

	// Wait for the retry's connection to be established, then answer it.
	for len(servers) < 2 {
		time.Sleep(time.Millisecond)
	}
	_, reqID, err := servers[1].next()
	if err != nil {
		t.Fatalf("second attempt never reached the server: %v", err)
	}
	servers[1].reply(reqID, okReply())

	if err := <-done; err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if dep.selects != 2 {
		t.Fatalf("got %d selections, want 2 (initial + one retry)", dep.selects)
	}
	for _, s := range servers {
		s.close()
	}
}

func TestOperationWithoutSessionOmitsReadConcern(t *testing.T) {
	conn, srv := dialPipe(t)
	defer srv.close()

	done := make(chan bsoncore.Document, 1)
	go func() {
		cmd, reqID, err := srv.next()
		if err != nil {
			return
		}
		done <- cmd
		srv.reply(reqID, okReply())
	}()

	selected := &fakeSelected{conn: conn}
	op := &Operation{
		Database: "test",
		Command: func(desc description.Server) (primitive.D, error) {
			return primitive.D{{Key: "find", Value: "widgets"}}, nil
		},
		Bound: selected,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := op.Execute(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cmd := <-done
	if _, err := cmd.LookupErr("readConcern"); err == nil {
		t.Fatal("did not expect a readConcern field with no Session/ReadConcern set")
	}
}
