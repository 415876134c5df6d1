// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

// FindOptions represents arguments that can be used to configure a Find
// operation.
type FindOptions struct {
	// If true, the server may write temporary data to disk while
	// processing the find. The default value is false. Collection.Find does
	// not send this option to the server.
	AllowDiskUse *bool

	// The number of documents to return per batch. The default value is 0,
	// which means that the server will determine a batch size.
	BatchSize *int32

	// Specifies a collation to use for string comparisons during the
	// operation. The default value is nil. Collection.Find does not send
	// this option to the server, so the collection's default collation
	// applies whatever it is set to.
	Collation *Collation

	// A string or document that will be included in server logs, profiling
	// logs, and currentOp queries to help trace the operation.
	Comment interface{}

	// A document describing which fields will be included in the documents
	// returned by the operation. The default value is nil, which means all
	// fields will be included.
	Projection interface{}

	// The maximum number of documents to return. A negative limit implies
	// a single batch and a closed cursor. The default value is 0, which
	// means that all matching documents will be returned.
	Limit *int64

	// The number of documents to skip before adding documents to the
	// result. The default value is 0.
	Skip *int64

	// A document specifying the order in which results should be
	// returned.
	Sort interface{}
}

// FindOptionsBuilder contains options to configure find operations. Each
// option can be set through setter functions.
type FindOptionsBuilder struct {
	Opts []func(*FindOptions) error
}

// Find creates a new FindOptions instance.
func Find() *FindOptionsBuilder {
	return &FindOptionsBuilder{}
}

// OptionsSetters returns a list of FindOptions setter functions.
func (f *FindOptionsBuilder) OptionsSetters() []func(*FindOptions) error {
	return f.Opts
}

func (f *FindOptionsBuilder) SetAllowDiskUse(b bool) *FindOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOptions) error {
		opts.AllowDiskUse = &b
		return nil
	})
	return f
}

func (f *FindOptionsBuilder) SetBatchSize(i int32) *FindOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOptions) error {
		opts.BatchSize = &i
		return nil
	})
	return f
}

func (f *FindOptionsBuilder) SetCollation(c *Collation) *FindOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOptions) error {
		opts.Collation = c
		return nil
	})
	return f
}

func (f *FindOptionsBuilder) SetComment(comment interface{}) *FindOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOptions) error {
		opts.Comment = comment
		return nil
	})
	return f
}

func (f *FindOptionsBuilder) SetProjection(projection interface{}) *FindOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOptions) error {
		opts.Projection = projection
		return nil
	})
	return f
}

func (f *FindOptionsBuilder) SetLimit(i int64) *FindOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOptions) error {
		opts.Limit = &i
		return nil
	})
	return f
}

func (f *FindOptionsBuilder) SetSkip(i int64) *FindOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOptions) error {
		opts.Skip = &i
		return nil
	})
	return f
}

func (f *FindOptionsBuilder) SetSort(sort interface{}) *FindOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOptions) error {
		opts.Sort = sort
		return nil
	})
	return f
}

// FindOneOptions represents arguments that can be used to configure a
// FindOne operation. It mirrors FindOptions minus the batching knobs,
// which do not apply to a single-document read.
type FindOneOptions struct {
	Collation  *Collation
	Comment    interface{}
	Projection interface{}
	Skip       *int64
	Sort       interface{}
}

// FindOneOptionsBuilder contains options to configure a FindOne operation.
type FindOneOptionsBuilder struct {
	Opts []func(*FindOneOptions) error
}

// FindOne creates a new FindOneOptions instance.
func FindOne() *FindOneOptionsBuilder {
	return &FindOneOptionsBuilder{}
}

func (f *FindOneOptionsBuilder) OptionsSetters() []func(*FindOneOptions) error {
	return f.Opts
}

func (f *FindOneOptionsBuilder) SetCollation(c *Collation) *FindOneOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOneOptions) error {
		opts.Collation = c
		return nil
	})
	return f
}

func (f *FindOneOptionsBuilder) SetComment(comment interface{}) *FindOneOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOneOptions) error {
		opts.Comment = comment
		return nil
	})
	return f
}

func (f *FindOneOptionsBuilder) SetProjection(projection interface{}) *FindOneOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOneOptions) error {
		opts.Projection = projection
		return nil
	})
	return f
}

func (f *FindOneOptionsBuilder) SetSkip(i int64) *FindOneOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOneOptions) error {
		opts.Skip = &i
		return nil
	})
	return f
}

func (f *FindOneOptionsBuilder) SetSort(sort interface{}) *FindOneOptionsBuilder {
	f.Opts = append(f.Opts, func(opts *FindOneOptions) error {
		opts.Sort = sort
		return nil
	})
	return f
}
