// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc carries messages between instances over the local Unix
// socket named by the block identifier.
//
// The primary runs a [Listener]: an accept loop that hands each
// connection to its own goroutine. A connection moves through three
// stages (awaiting header, awaiting body, established) and never
// back. The handshake body must decode cleanly, echo the listener's
// own block identifier, and carry a valid trailing checksum;
// violations close the connection silently (the offender simply sees
// its connection disappear, never an error). Once established, every
// chunk the transport delivers is forwarded verbatim as a
// [MessageReceived] event tagged with the sender's instance id;
// the protocol imposes no structure on post-handshake bytes, so
// payload boundaries are whatever the host application makes of them.
// Bytes still buffered when a peer disconnects are flushed as one
// final event before the connection record is dropped.
//
// Every other instance holds a [Connector]: at most one outbound
// connection per process, reused across sends, re-established with a
// Reconnect handshake when it has gone away. Connect and send
// failures are bounded by the caller's timeout and surfaced as
// errors, never retried automatically.
//
// Events flow to the host through a single channel. Each connection's
// goroutine emits its events in the order the bytes arrived, so
// per-connection causal order holds; no order is promised across
// connections. A host that stops draining the channel back-pressures
// the affected connections rather than dropping events.
package ipc
