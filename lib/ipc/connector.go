// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/solo-foundation/solo/lib/wire"
)

// Connector maintains this process's single outbound connection to
// the primary. The connection is established lazily, reused across
// sends, and re-established with a Reconnect handshake after it goes
// away. All operations are bounded by the caller's timeout; a
// timed-out or failed operation is surfaced as an error and never
// retried automatically; the next send starts over.
//
// Connector is safe for concurrent use; operations are serialized.
type Connector struct {
	socketPath string
	blockName  string
	instanceID uint32
	logger     *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewConnector creates a connector for the given endpoint. instanceID
// is this process's own instance number, echoed in every handshake
// (0 for a launch that was never assigned one). A nil logger defaults
// to slog.Default().
func NewConnector(socketPath, blockName string, instanceID uint32, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		socketPath: socketPath,
		blockName:  blockName,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Connect ensures a live connection to the primary, performing the
// handshake with the given connection type if a new connection is
// needed. Connecting and writing the handshake together are bounded
// by timeout. If a connection already exists, Connect is a no-op and
// the connection type is not re-sent.
func (c *Connector) Connect(timeout time.Duration, connectionType wire.ConnectionType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(time.Now().Add(timeout), connectionType)
}

// Send delivers an opaque payload to the primary, reconnecting first
// if necessary. The deadline covers any reconnect handshake and the
// payload write together. On failure the connection is torn down so
// the next send starts fresh.
func (c *Connector) Send(payload []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// One deadline covers a reconnect handshake and the payload write
	// together, so a send that has to redial cannot double its budget.
	deadline := time.Now().Add(timeout)

	if err := c.connectLocked(deadline, wire.ConnectionReconnect); err != nil {
		return err
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		c.teardownLocked()
		return fmt.Errorf("ipc: arming write deadline: %w", err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		c.teardownLocked()
		return fmt.Errorf("ipc: writing payload to primary: %w", err)
	}
	c.conn.SetWriteDeadline(time.Time{})
	return nil
}

// Close drops the outbound connection if one exists.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	return nil
}

// connectLocked dials and handshakes, finishing both before deadline.
// Requires c.mu held.
func (c *Connector) connectLocked(deadline time.Time, connectionType wire.ConnectionType) error {
	if c.conn != nil {
		return nil
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.Dial("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("ipc: connecting to primary at %s: %w", c.socketPath, err)
	}

	frame := wire.EncodeFrame(wire.Handshake{
		BlockName:  c.blockName,
		Type:       connectionType,
		InstanceID: c.instanceID,
	})

	if err := conn.SetWriteDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("ipc: arming handshake deadline: %w", err)
	}
	if _, err := conn.Write(frame); err != nil {
		conn.Close()
		return fmt.Errorf("ipc: writing handshake: %w", err)
	}
	conn.SetWriteDeadline(time.Time{})

	c.logger.Debug("connected to primary",
		"socket", c.socketPath,
		"type", connectionType.String(),
	)
	c.conn = conn
	return nil
}

// teardownLocked closes and forgets the connection. Requires c.mu
// held.
func (c *Connector) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
