// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

import "testing"

func applyFind(setters []func(*FindOptions) error) (*FindOptions, error) {
	opts := &FindOptions{}
	for _, set := range setters {
		if err := set(opts); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func TestFindOptionsBuilder(t *testing.T) {
	builder := Find().SetLimit(10).SetSkip(2).SetComment("trace-me")
	opts, err := applyFind(builder.OptionsSetters())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Limit == nil || *opts.Limit != 10 {
		t.Fatalf("got limit=%v, want 10", opts.Limit)
	}
	if opts.Skip == nil || *opts.Skip != 2 {
		t.Fatalf("got skip=%v, want 2", opts.Skip)
	}
	if opts.Comment != "trace-me" {
		t.Fatalf("got comment=%v", opts.Comment)
	}
}

func TestInsertManyDefaultsOrdered(t *testing.T) {
	builder := InsertMany()
	opts := &InsertManyOptions{}
	for _, set := range builder.OptionsSetters() {
		if err := set(opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if opts.Ordered == nil || *opts.Ordered != true {
		t.Fatalf("got ordered=%v, want true by default", opts.Ordered)
	}
}

func TestUpdateOptionsBuilder(t *testing.T) {
	builder := Update().SetUpsert(true).SetHint("x_1")
	opts := &UpdateOptions{}
	for _, set := range builder.OptionsSetters() {
		if err := set(opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if opts.Upsert == nil || !*opts.Upsert {
		t.Fatal("expected upsert to be true")
	}
	if opts.Hint != "x_1" {
		t.Fatalf("got hint=%v", opts.Hint)
	}
}

func TestSessionOptionsSetCausalConsistencyFalse(t *testing.T) {
	builder := Session().SetCausalConsistency(false)
	opts := &SessionOptions{}
	for _, set := range builder.OptionsSetters() {
		if err := set(opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if opts.CausalConsistency == nil || *opts.CausalConsistency {
		t.Fatal("expected causal consistency to be false")
	}
}

func TestClientOptionsBuilderSetters(t *testing.T) {
	builder := Client().SetAppName("nodedb-ping").SetMaxPoolSize(50)
	opts := &ClientOptions{}
	for _, set := range builder.OptionsSetters() {
		if err := set(opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if opts.AppName != "nodedb-ping" {
		t.Fatalf("got appName=%q", opts.AppName)
	}
	if opts.MaxPoolSize == nil || *opts.MaxPoolSize != 50 {
		t.Fatalf("got maxPoolSize=%v", opts.MaxPoolSize)
	}
}
