// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

// UpdateOptions represents arguments that can be used to configure an
// Update or Replace operation.
type UpdateOptions struct {
	// A set of filters specifying to which array elements an update should
	// apply, used with positional-filtered ($[<identifier>]) updates.
	ArrayFilters []interface{}

	// If true, the write opts out of schema validation on the server. The
	// default value is false.
	BypassDocumentValidation *bool

	// Specifies a collation to use for string comparisons during the
	// operation. The default value is nil, which means the default
	// collation of the collection will be used.
	Collation *Collation

	// A string or document included in server logs and currentOp to help
	// trace the operation. The default value is nil.
	Comment interface{}

	// The index to use for the operation. The default value is nil, which
	// means that no hint will be sent.
	Hint interface{}

	// If true, a new document is inserted if no document matches the
	// filter. The default value is false.
	Upsert *bool
}

// UpdateOptionsBuilder contains options to configure update and replace
// operations. Each option can be set through setter functions.
type UpdateOptionsBuilder struct {
	Opts []func(*UpdateOptions) error
}

// Update creates a new UpdateOptions instance.
func Update() *UpdateOptionsBuilder {
	return &UpdateOptionsBuilder{}
}

func (u *UpdateOptionsBuilder) OptionsSetters() []func(*UpdateOptions) error {
	return u.Opts
}

func (u *UpdateOptionsBuilder) SetArrayFilters(filters []interface{}) *UpdateOptionsBuilder {
	u.Opts = append(u.Opts, func(opts *UpdateOptions) error {
		opts.ArrayFilters = filters
		return nil
	})
	return u
}

func (u *UpdateOptionsBuilder) SetBypassDocumentValidation(b bool) *UpdateOptionsBuilder {
	u.Opts = append(u.Opts, func(opts *UpdateOptions) error {
		opts.BypassDocumentValidation = &b
		return nil
	})
	return u
}

func (u *UpdateOptionsBuilder) SetCollation(c *Collation) *UpdateOptionsBuilder {
	u.Opts = append(u.Opts, func(opts *UpdateOptions) error {
		opts.Collation = c
		return nil
	})
	return u
}

func (u *UpdateOptionsBuilder) SetComment(comment interface{}) *UpdateOptionsBuilder {
	u.Opts = append(u.Opts, func(opts *UpdateOptions) error {
		opts.Comment = comment
		return nil
	})
	return u
}

func (u *UpdateOptionsBuilder) SetHint(h interface{}) *UpdateOptionsBuilder {
	u.Opts = append(u.Opts, func(opts *UpdateOptions) error {
		opts.Hint = h
		return nil
	})
	return u
}

func (u *UpdateOptionsBuilder) SetUpsert(b bool) *UpdateOptionsBuilder {
	u.Opts = append(u.Opts, func(opts *UpdateOptions) error {
		opts.Upsert = &b
		return nil
	})
	return u
}

// DeleteOptions represents arguments that can be used to configure a
// Delete operation.
type DeleteOptions struct {
	// Specifies a collation to use for string comparisons during the
	// operation. The default value is nil.
	Collation *Collation

	// A string or document included in server logs and currentOp to help
	// trace the operation. The default value is nil.
	Comment interface{}

	// The index to use for the operation. The default value is nil.
	Hint interface{}
}

// DeleteOptionsBuilder contains options to configure delete operations.
// Each option can be set through setter functions.
type DeleteOptionsBuilder struct {
	Opts []func(*DeleteOptions) error
}

// Delete creates a new DeleteOptions instance.
func Delete() *DeleteOptionsBuilder {
	return &DeleteOptionsBuilder{}
}

func (d *DeleteOptionsBuilder) OptionsSetters() []func(*DeleteOptions) error {
	return d.Opts
}

func (d *DeleteOptionsBuilder) SetCollation(c *Collation) *DeleteOptionsBuilder {
	d.Opts = append(d.Opts, func(opts *DeleteOptions) error {
		opts.Collation = c
		return nil
	})
	return d
}

func (d *DeleteOptionsBuilder) SetComment(comment interface{}) *DeleteOptionsBuilder {
	d.Opts = append(d.Opts, func(opts *DeleteOptions) error {
		opts.Comment = comment
		return nil
	})
	return d
}

func (d *DeleteOptionsBuilder) SetHint(h interface{}) *DeleteOptionsBuilder {
	d.Opts = append(d.Opts, func(opts *DeleteOptions) error {
		opts.Hint = h
		return nil
	})
	return d
}
