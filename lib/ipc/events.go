// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import "github.com/solo-foundation/solo/lib/wire"

// Event is a notification surfaced to the host application. The two
// implementations are [InstanceStarted] and [MessageReceived].
type Event interface {
	event()
}

// InstanceStarted fires once per newly handshaken connection that
// qualifies: every new-instance connection, and secondary-instance
// connections when secondary notification is configured. Reconnects
// never fire it.
type InstanceStarted struct {
	// InstanceID is the connecting instance's number.
	InstanceID uint32

	// Type is the handshake's connection type.
	Type wire.ConnectionType
}

func (InstanceStarted) event() {}

// MessageReceived fires once per inbound payload chunk after the
// handshake. Chunking follows the transport's read granularity: two
// back-to-back application messages may arrive as one event or split
// across several.
type MessageReceived struct {
	// InstanceID is the sending instance's number.
	InstanceID uint32

	// Payload is the raw bytes, owned by the receiver.
	Payload []byte
}

func (MessageReceived) event() {}
