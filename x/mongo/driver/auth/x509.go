// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"context"

	"go.nodedb.dev/driver/x/bsonx/bsoncore"
	"go.nodedb.dev/driver/x/mongo/driver"
)

func newX509Authenticator(cred *Credential) (Authenticator, error) {
	return &x509Authenticator{username: cred.Username}, nil
}

// x509Authenticator sends a single authenticate command over $external;
// the client's identity comes from the certificate already presented
// during the TLS handshake, not from this command's body (the username is
// optional but conventionally included to match the certificate subject).
type x509Authenticator struct {
	username string
}

func (a *x509Authenticator) Auth(ctx context.Context, conn *driver.Connection) error {
	elems := [][]byte{
		bsoncore.AppendInt32Element(nil, "authenticate", 1),
		bsoncore.AppendStringElement(nil, "mechanism", MongoDBX509),
	}
	if a.username != "" {
		elems = append(elems, bsoncore.AppendStringElement(nil, "user", a.username))
	}
	cmd := bsoncore.BuildDocument(nil, elems...)
	cmd = bsoncore.AppendElement(cmd, bsoncore.AppendStringElement(nil, "$db", "$external"))

	requestID := driver.NextRequestID()
	if err := conn.WriteMsg(ctx, requestID, 0, cmd); err != nil {
		return newError(MongoDBX509, err)
	}
	body, err := conn.ReadMsg(ctx)
	if err != nil {
		return newError(MongoDBX509, err)
	}
	reply := bsoncore.Document(body)
	if err := reply.Validate(); err != nil {
		return newError(MongoDBX509, err)
	}
	if ce, cerr := driver.ExtractCommandError(reply); cerr == nil && ce != nil {
		return newError(MongoDBX509, ce)
	}
	return nil
}
