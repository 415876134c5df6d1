// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import "fmt"

// AppendCompressed wraps an already-framed OP_MSG message (including its
// own header) in an OP_COMPRESSED envelope using comp, preserving the
// inner message's requestID/responseTo.
func AppendCompressed(dst []byte, msg []byte, comp Compressor) ([]byte, error) {
	inner, err := ReadHeader(msg)
	if err != nil {
		return nil, err
	}
	uncompressed := msg[16:]
	compressed, err := comp.Compress(nil, uncompressed)
	if err != nil {
		return nil, fmt.Errorf("driver: compress with %s: %w", comp.Name(), err)
	}

	idx := len(dst)
	h := Header{RequestID: inner.RequestID, ResponseTo: inner.ResponseTo, OpCode: OpCompressed}
	dst = h.AppendHeader(dst)
	dst = appendi32(dst, int32(inner.OpCode))
	dst = appendi32(dst, int32(len(uncompressed)))
	dst = append(dst, byte(comp.ID()))
	dst = append(dst, compressed...)
	patchMessageLength(dst, idx)
	return dst, nil
}

// DecompressMessage reverses AppendCompressed given the OP_COMPRESSED
// message (header included) and a registry to resolve the compressor id
// against, returning the reconstructed inner message with its original
// header restored.
func DecompressMessage(msg []byte, reg *CompressorRegistry) ([]byte, error) {
	h, err := ReadHeader(msg)
	if err != nil {
		return nil, err
	}
	if h.OpCode != OpCompressed {
		return msg, nil
	}
	if len(msg) < 25 {
		return nil, fmt.Errorf("driver: truncated OP_COMPRESSED message")
	}
	originalOpcode := OpCode(readi32(msg[16:20]))
	uncompressedSize := readi32(msg[20:24])
	compressorID := CompressorID(msg[24])
	payload := msg[25:]

	comp, ok := reg.ByID(compressorID)
	if !ok {
		return nil, fmt.Errorf("driver: unknown compressor id %d in OP_COMPRESSED reply", compressorID)
	}
	uncompressed, err := comp.Decompress(make([]byte, 0, uncompressedSize), payload, uncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("driver: decompress with %s: %w", comp.Name(), err)
	}

	out := make([]byte, 0, 16+len(uncompressed))
	origHeader := Header{RequestID: h.RequestID, ResponseTo: h.ResponseTo, OpCode: originalOpcode}
	out = origHeader.AppendHeader(out)
	out = append(out, uncompressed...)
	patchMessageLength(out, 0)
	return out, nil
}

func patchMessageLength(buf []byte, idx int) {
	n := int32(len(buf) - idx)
	buf[idx+0] = byte(n)
	buf[idx+1] = byte(n >> 8)
	buf[idx+2] = byte(n >> 16)
	buf[idx+3] = byte(n >> 24)
}
