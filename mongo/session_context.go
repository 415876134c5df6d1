// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"

	"go.nodedb.dev/driver/x/mongo/driver/session"
)

type sessionContextKey struct{}

// NewSessionContext returns a copy of ctx carrying sess, so that every
// Collection/Database call made with the returned context runs within
// sess instead of an implicit, per-operation session.
func NewSessionContext(ctx context.Context, sess *session.Client) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// sessionFromContext returns the explicit session carried by ctx, if any.
func sessionFromContext(ctx context.Context) *session.Client {
	sess, _ := ctx.Value(sessionContextKey{}).(*session.Client)
	return sess
}
