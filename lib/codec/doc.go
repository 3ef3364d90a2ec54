// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is Solo's CBOR serialization layer for structured
// message payloads.
//
// The single-instance message channel carries opaque bytes; this
// package is the convention for applications that want structure on
// top of it. Encoding is Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items, so the same logical message always produces identical bytes.
// Decoding ignores unknown fields, letting a newer secondary talk to
// an older primary.
//
// Use [Marshal] and [Unmarshal] for whole payloads; [NewEncoder] and
// [NewDecoder] for streams.
package codec
