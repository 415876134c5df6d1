// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsoncodec

import "reflect"

// ValueEncoder is implemented by types that know how to encode a Go value
// of a specific type onto the wire, bypassing the registry's default
// reflection-based walk. Grounded on the teacher's cond_addr_codec.go /
// pointer_codec.go pattern of per-type codec overrides.
type ValueEncoder interface {
	EncodeValue(*Registry, reflect.Value) (typ byte, data []byte, err error)
}

// ValueDecoder is the decode-side counterpart of ValueEncoder.
type ValueDecoder interface {
	DecodeValue(*Registry, byte, []byte, reflect.Value) error
}

// Registry holds the coder-layer Strategies plus any type-specific codec
// overrides registered for types the default struct/map/slice walk should
// not handle generically (mirrors the teacher's bsoncodec.Registry, which
// is consulted before the default value encoders/decoders run).
type Registry struct {
	Strategies Strategies

	encoders map[reflect.Type]ValueEncoder
	decoders map[reflect.Type]ValueDecoder
}

// NewRegistry returns a Registry configured with DefaultStrategies and no
// type overrides.
func NewRegistry() *Registry {
	return &Registry{Strategies: DefaultStrategies()}
}

// RegisterTypeEncoder installs enc as the encoder used for values of type t,
// overriding the default reflection-based encoding for that type.
func (r *Registry) RegisterTypeEncoder(t reflect.Type, enc ValueEncoder) {
	if r.encoders == nil {
		r.encoders = make(map[reflect.Type]ValueEncoder)
	}
	r.encoders[t] = enc
}

// RegisterTypeDecoder installs dec as the decoder used for values of type t.
func (r *Registry) RegisterTypeDecoder(t reflect.Type, dec ValueDecoder) {
	if r.decoders == nil {
		r.decoders = make(map[reflect.Type]ValueDecoder)
	}
	r.decoders[t] = dec
}

// LookupEncoder returns the registered encoder override for t, if any.
func (r *Registry) LookupEncoder(t reflect.Type) (ValueEncoder, bool) {
	if r.encoders == nil {
		return nil, false
	}
	enc, ok := r.encoders[t]
	return enc, ok
}

// LookupDecoder returns the registered decoder override for t, if any.
func (r *Registry) LookupDecoder(t reflect.Type) (ValueDecoder, bool) {
	if r.decoders == nil {
		return nil, false
	}
	dec, ok := r.decoders[t]
	return dec, ok
}
