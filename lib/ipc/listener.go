// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/solo-foundation/solo/lib/wire"
)

// readBufferSize is the chunk size for established-connection reads.
// One payload event is emitted per chunk the transport delivers.
const readBufferSize = 64 * 1024

// connectionStage tracks how far a connection's handshake has
// progressed. Stages only ever advance.
type connectionStage int

const (
	stageAwaitingHeader connectionStage = iota
	stageAwaitingBody
	stageEstablished
)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// SocketPath is the filesystem path of the Unix socket. Any stale
	// socket file left by a crashed primary is removed before
	// listening.
	SocketPath string

	// BlockName is this process's block identifier; handshakes that
	// echo anything else are dropped.
	BlockName string

	// NotifySecondary makes secondary-instance handshakes raise
	// InstanceStarted events.
	NotifySecondary bool

	// PerUser restricts the socket to the owning user (mode 0600)
	// instead of world-accessible (0666).
	PerUser bool

	// Events receives InstanceStarted and MessageReceived events.
	Events chan<- Event

	// Logger receives connection lifecycle records. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Listener is the primary's side of the local socket: it accepts
// connections, validates each handshake, and forwards payloads as
// events. Create one with Listen, start it with Serve, stop it with
// Close.
type Listener struct {
	config   ListenerConfig
	logger   *slog.Logger
	listener net.Listener

	// connections tracks in-flight connection goroutines so Close can
	// wait for them to drain.
	connections sync.WaitGroup

	// mu guards active and closed. Peers keep their connection open
	// for reuse, so Close must close every live connection itself or
	// the handler goroutines would block in Read forever.
	mu     sync.Mutex
	active map[net.Conn]struct{}
	closed bool
}

// Listen binds the Unix socket so the endpoint exists before the
// caller publishes its primary status. The accept loop does not run
// until Serve is called.
func Listen(config ListenerConfig) (*Listener, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// A crashed primary leaves its socket file behind; remove it or
	// the bind fails with EADDRINUSE forever.
	if err := os.Remove(config.SocketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ipc: removing stale socket %s: %w", config.SocketPath, err)
	}

	listener, err := net.Listen("unix", config.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("ipc: listening on %s: %w", config.SocketPath, err)
	}

	mode := os.FileMode(0666)
	if config.PerUser {
		mode = 0600
	}
	if err := os.Chmod(config.SocketPath, mode); err != nil {
		listener.Close()
		return nil, fmt.Errorf("ipc: setting socket mode on %s: %w", config.SocketPath, err)
	}

	logger.Info("listening for instance connections", "socket", config.SocketPath)

	return &Listener{
		config:   config,
		logger:   logger,
		listener: listener,
		active:   make(map[net.Conn]struct{}),
	}, nil
}

// Serve accepts connections until the listener is closed. Each
// accepted connection runs in its own goroutine. Serve returns nil
// after Close.
func (l *Listener) Serve() error {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Error("accept failed", "error", err)
			continue
		}

		l.connections.Add(1)
		go func() {
			defer l.connections.Done()
			if !l.track(conn) {
				conn.Close()
				return
			}
			defer l.untrack(conn)
			l.handleConnection(conn)
		}()
	}
}

// track registers an accepted connection so Close can reach it. A
// false return means Close already ran and the connection must not be
// served.
func (l *Listener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.active[conn] = struct{}{}
	return true
}

// untrack closes a connection and forgets it.
func (l *Listener) untrack(conn net.Conn) {
	conn.Close()
	l.mu.Lock()
	delete(l.active, conn)
	l.mu.Unlock()
}

// Close stops accepting, removes the socket file, closes every live
// connection, and waits for the connection goroutines to finish.
// Peers hold their connection open for reuse, so closing them here is
// what unblocks their handlers' reads.
func (l *Listener) Close() error {
	err := l.listener.Close()
	os.Remove(l.config.SocketPath)

	l.mu.Lock()
	l.closed = true
	for conn := range l.active {
		conn.Close()
	}
	l.mu.Unlock()

	l.connections.Wait()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("ipc: closing listener: %w", err)
	}
	return nil
}

// handleConnection drives one connection through the handshake stages
// and then streams its payloads. Any protocol violation closes the
// connection without a response; a misbehaving peer learns nothing
// beyond the disconnect.
func (l *Listener) handleConnection(conn net.Conn) {
	stage := stageAwaitingHeader

	var header [wire.HeaderSize]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		l.logger.Debug("connection dropped before handshake header", "stage", int(stage), "error", err)
		return
	}

	bodyLength, err := wire.DecodeHeader(header[:])
	if err != nil {
		l.logger.Debug("rejecting connection", "reason", err)
		return
	}
	stage = stageAwaitingBody

	body := make([]byte, bodyLength)
	if _, err := io.ReadFull(conn, body); err != nil {
		l.logger.Debug("connection dropped before handshake body", "stage", int(stage), "error", err)
		return
	}

	handshake, err := wire.DecodeBody(body)
	if err != nil {
		l.logger.Debug("rejecting connection", "reason", err)
		return
	}
	if handshake.BlockName != l.config.BlockName {
		l.logger.Debug("rejecting connection", "reason", "block identifier mismatch")
		return
	}
	stage = stageEstablished

	if handshake.Type == wire.ConnectionNewInstance ||
		(handshake.Type == wire.ConnectionSecondaryInstance && l.config.NotifySecondary) {
		l.config.Events <- InstanceStarted{
			InstanceID: handshake.InstanceID,
			Type:       handshake.Type,
		}
	}

	l.logger.Debug("connection established",
		"instance_id", handshake.InstanceID,
		"type", handshake.Type.String(),
	)

	// Established: forward every delivered chunk verbatim. A final
	// partial read before EOF is flushed as its own event, so bytes a
	// peer wrote just before closing are not lost.
	buffer := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buffer)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buffer[:n])
			l.config.Events <- MessageReceived{
				InstanceID: handshake.InstanceID,
				Payload:    payload,
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				l.logger.Debug("connection read failed", "instance_id", handshake.InstanceID, "error", err)
			}
			return
		}
	}
}
