// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"context"
	"fmt"

	"go.nodedb.dev/driver/x/bsonx/bsoncore"
	"go.nodedb.dev/driver/x/mongo/driver"
)

// SaslClient is the client side of a sasl conversation: build the initial
// payload, react to each server challenge, and report when the client
// considers the conversation finished.
type SaslClient interface {
	Start() (mechanism string, payload []byte, err error)
	Next(challenge []byte) (payload []byte, err error)
	Completed() bool
}

// SaslClientCloser is a SaslClient holding resources (file handles, scram
// conversation state) that need releasing once the conversation ends.
type SaslClientCloser interface {
	SaslClient
	Close()
}

// ConductSaslConversation drives a saslStart/saslContinue command loop to
// completion over conn, the shape every SASL-based mechanism (SCRAM,
// PLAIN) shares.
func ConductSaslConversation(ctx context.Context, conn *driver.Connection, db string, client SaslClient) error {
	if db == "" {
		db = defaultAuthDB
	}
	if closer, ok := client.(SaslClientCloser); ok {
		defer closer.Close()
	}

	mech, payload, err := client.Start()
	if err != nil {
		return newError(mech, err)
	}

	reply, err := sendSaslCommand(ctx, conn, db, bsoncore.BuildDocument(nil,
		bsoncore.AppendInt32Element(nil, "saslStart", 1),
		bsoncore.AppendStringElement(nil, "mechanism", mech),
		bsoncore.AppendBinaryElement(nil, "payload", 0x00, payload),
	))
	if err != nil {
		return newError(mech, err)
	}

	conversationID, done, respPayload, err := parseSaslResponse(reply)
	if err != nil {
		return newError(mech, err)
	}

	for {
		if done && client.Completed() {
			return nil
		}

		payload, err = client.Next(respPayload)
		if err != nil {
			return newError(mech, err)
		}

		if done && client.Completed() {
			return nil
		}

		reply, err = sendSaslCommand(ctx, conn, db, bsoncore.BuildDocument(nil,
			bsoncore.AppendInt32Element(nil, "saslContinue", 1),
			conversationID,
			bsoncore.AppendBinaryElement(nil, "payload", 0x00, payload),
		))
		if err != nil {
			return newError(mech, err)
		}

		conversationID, done, respPayload, err = parseSaslResponse(reply)
		if err != nil {
			return newError(mech, err)
		}
	}
}

func sendSaslCommand(ctx context.Context, conn *driver.Connection, db string, cmd bsoncore.Document) (bsoncore.Document, error) {
	doc := bsoncore.AppendElement(cmd, bsoncore.AppendStringElement(nil, "$db", db))
	requestID := driver.NextRequestID()
	if err := conn.WriteMsg(ctx, requestID, 0, doc); err != nil {
		return nil, err
	}
	body, err := conn.ReadMsg(ctx)
	if err != nil {
		return nil, err
	}
	reply := bsoncore.Document(body)
	if err := reply.Validate(); err != nil {
		return nil, err
	}
	if ce, cerr := driver.ExtractCommandError(reply); cerr == nil && ce != nil {
		return nil, ce
	}
	return reply, nil
}

// parseSaslResponse extracts the fields common to every saslStart/
// saslContinue reply, re-encoding conversationId as an element so the
// caller can thread it into the next command. The server may return it as
// either int32 or int64; it is always re-encoded as an int64 element.
func parseSaslResponse(reply bsoncore.Document) (conversationIDElem []byte, done bool, payload []byte, err error) {
	cidVal, err := reply.LookupErr("conversationId")
	if err != nil {
		return nil, false, nil, fmt.Errorf("sasl reply missing conversationId: %w", err)
	}
	cid, ok := cidVal.AsInt64OK()
	if !ok {
		return nil, false, nil, fmt.Errorf("sasl reply conversationId has unexpected type")
	}
	conversationIDElem = bsoncore.AppendInt64Element(nil, "conversationId", cid)

	if doneVal, derr := reply.LookupErr("done"); derr == nil {
		done = doneVal.Boolean()
	}

	payloadVal, perr := reply.LookupErr("payload")
	if perr != nil {
		return nil, false, nil, fmt.Errorf("sasl reply missing payload: %w", perr)
	}
	_, payload = payloadVal.BinaryValue()

	return conversationIDElem, done, payload, nil
}
