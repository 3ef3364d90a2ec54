// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the handshake frame a connecting instance
// sends to the primary over the local socket.
//
// The frame is length-prefixed fixed binary, not a self-describing
// encoding: the layout is part of the coordination contract and every
// process compiled from the same build must agree on it byte for
// byte. All multi-byte fields are big-endian.
//
//	u64  body length
//	body:
//	  u32  identifier length
//	  ...  identifier bytes (the sender's block identifier)
//	  u8   connection type
//	  u32  instance id
//	  u16  CRC-16/X-25 over all preceding body bytes
//
// The trailing checksum guards the primary against acting on a
// truncated or garbled handshake; an identifier echo that differs
// from the receiver's own block identifier means the peer belongs to
// a different application build and the connection is silently
// dropped. Bytes after the handshake frame carry no structure at this
// layer; payload boundaries are the host application's business.
//
// This package has no dependencies on other Solo packages except
// lib/crc16.
package wire
