// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	kzlib "github.com/klauspost/compress/zlib"
)

// CompressorID identifies a wire-level compressor, matching the id
// negotiated in a hello reply's compression array (spec.md §7
// supplemented feature).
type CompressorID uint8

const (
	CompressorNoop CompressorID = iota
	CompressorSnappy
	CompressorZlib
	CompressorZstd
)

// Compressor compresses and decompresses an OP_MSG body, keeping the
// uncompressed size alongside so OP_COMPRESSED framing can be reversed.
type Compressor interface {
	ID() CompressorID
	Name() string
	Compress(dst, src []byte) ([]byte, error)
	Decompress(dst, src []byte, uncompressedSize int32) ([]byte, error)
}

type snappyCompressor struct{}

func (snappyCompressor) ID() CompressorID { return CompressorSnappy }
func (snappyCompressor) Name() string     { return "snappy" }

func (snappyCompressor) Compress(dst, src []byte) ([]byte, error) {
	return snappy.Encode(dst, src), nil
}

func (snappyCompressor) Decompress(dst, src []byte, uncompressedSize int32) ([]byte, error) {
	return snappy.Decode(dst, src)
}

type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor() (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("driver: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("driver: zstd decoder: %w", err)
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (z *zstdCompressor) ID() CompressorID { return CompressorZstd }
func (z *zstdCompressor) Name() string     { return "zstd" }

func (z *zstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, dst), nil
}

func (z *zstdCompressor) Decompress(dst, src []byte, uncompressedSize int32) ([]byte, error) {
	return z.dec.DecodeAll(src, dst)
}

type zlibCompressor struct{ level int }

func (z zlibCompressor) ID() CompressorID { return CompressorZlib }
func (z zlibCompressor) Name() string     { return "zlib" }

func (z zlibCompressor) Compress(dst, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := kzlib.NewWriterLevel(&buf, z.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append(dst, buf.Bytes()...), nil
}

func (z zlibCompressor) Decompress(dst, src []byte, uncompressedSize int32) ([]byte, error) {
	r, err := kzlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := dst
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CompressorRegistry resolves compressor names (from a connection string's
// "compressors" option, spec.md §6) and ids (from the wire) to
// Compressors, and orders the client's preference list for the hello
// handshake.
type CompressorRegistry struct {
	byName map[string]Compressor
	byID   map[CompressorID]Compressor
	order  []string
}

// NewCompressorRegistry builds a registry containing every compressor
// named in names, in order, silently skipping unrecognized names. An
// empty names list yields a registry with no compressors, disabling
// OP_COMPRESSED entirely.
func NewCompressorRegistry(names []string) (*CompressorRegistry, error) {
	r := &CompressorRegistry{byName: map[string]Compressor{}, byID: map[CompressorID]Compressor{}}
	for _, name := range names {
		var c Compressor
		switch name {
		case "snappy":
			c = snappyCompressor{}
		case "zstd":
			zc, err := newZstdCompressor()
			if err != nil {
				return nil, err
			}
			c = zc
		case "zlib":
			c = zlibCompressor{level: kzlib.DefaultCompression}
		default:
			continue
		}
		r.byName[name] = c
		r.byID[c.ID()] = c
		r.order = append(r.order, name)
	}
	return r, nil
}

// Names returns the client's compressor preference list for the hello
// handshake's "compression" field.
func (r *CompressorRegistry) Names() []string { return r.order }

// Negotiate picks the first client-preferred compressor also present in
// serverSupported, or nil if none match (compression stays disabled).
func (r *CompressorRegistry) Negotiate(serverSupported []string) Compressor {
	supported := make(map[string]bool, len(serverSupported))
	for _, s := range serverSupported {
		supported[s] = true
	}
	for _, name := range r.order {
		if supported[name] {
			return r.byName[name]
		}
	}
	return nil
}

// ByID looks up a compressor by its wire id, used when decompressing an
// OP_COMPRESSED reply.
func (r *CompressorRegistry) ByID(id CompressorID) (Compressor, bool) {
	c, ok := r.byID[id]
	return c, ok
}
