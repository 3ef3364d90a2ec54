// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package crc16 implements the CRC-16/X-25 checksum (reflected
// polynomial 0x8408, initial value 0xFFFF, final complement).
//
// This is the 16-bit integrity check used in two places:
//
//   - the coordination block in shared memory, where it guards readers
//     against observing a record mid-write by another process, and
//   - the handshake frame on the local socket, where it guards the
//     primary against acting on a truncated or garbled message.
//
// Both uses fix a u16 field in a byte-exact layout, so the checksum
// width is part of the wire contract and cannot change without
// versioning the protocol.
//
// This package has no dependencies on other Solo packages.
package crc16
