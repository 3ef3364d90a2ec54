// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/solo-foundation/solo/lib/testutil"
	"github.com/solo-foundation/solo/lib/wire"
)

const testBlockName = "jM2ZqwPYz0FImnFIRTVVULW3OvkvQzQdVbEeWzyRPK0"

// startListener binds a listener on a fresh socket and runs its accept
// loop. The listener is torn down when the test completes.
func startListener(t *testing.T, notifySecondary bool) (*Listener, string, chan Event) {
	t.Helper()

	socketPath := filepath.Join(testutil.SocketDir(t), "listener.sock")
	events := make(chan Event, 16)

	listener, err := Listen(ListenerConfig{
		SocketPath:      socketPath,
		BlockName:       testBlockName,
		NotifySecondary: notifySecondary,
		Events:          events,
		Logger:          slog.Default(),
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go listener.Serve()

	return listener, socketPath, events
}

// dialRaw opens a plain connection so tests can write arbitrary bytes,
// including malformed handshakes.
func dialRaw(t *testing.T, socketPath string) net.Conn {
	t.Helper()

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dialing %s: %v", socketPath, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestListenerNewInstanceHandshake(t *testing.T) {
	_, socketPath, events := startListener(t, false)

	conn := dialRaw(t, socketPath)
	frame := wire.EncodeFrame(wire.Handshake{
		BlockName:  testBlockName,
		Type:       wire.ConnectionNewInstance,
		InstanceID: 0,
	})
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("writing handshake: %v", err)
	}

	event := testutil.RequireReceive(t, events, 5*time.Second, "instance-started event")
	started, ok := event.(InstanceStarted)
	if !ok {
		t.Fatalf("expected InstanceStarted, got %T", event)
	}
	if started.Type != wire.ConnectionNewInstance {
		t.Errorf("connection type: got %v, want %v", started.Type, wire.ConnectionNewInstance)
	}
	if started.InstanceID != 0 {
		t.Errorf("instance id: got %d, want 0", started.InstanceID)
	}
}

func TestListenerForwardsPayloads(t *testing.T) {
	_, socketPath, events := startListener(t, false)

	connector := NewConnector(socketPath, testBlockName, 2, slog.Default())
	defer connector.Close()

	if err := connector.Send([]byte("ping"), 5*time.Second); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// A reconnect handshake must not raise an instance-started event,
	// so the first event observed is the payload itself.
	event := testutil.RequireReceive(t, events, 5*time.Second, "payload event")
	message, ok := event.(MessageReceived)
	if !ok {
		t.Fatalf("expected MessageReceived, got %T", event)
	}
	if string(message.Payload) != "ping" {
		t.Errorf("payload: got %q, want %q", message.Payload, "ping")
	}
	if message.InstanceID != 2 {
		t.Errorf("instance id: got %d, want 2", message.InstanceID)
	}
}

func TestListenerSecondaryNotification(t *testing.T) {
	_, socketPath, events := startListener(t, true)

	connector := NewConnector(socketPath, testBlockName, 7, slog.Default())
	defer connector.Close()

	if err := connector.Connect(5*time.Second, wire.ConnectionSecondaryInstance); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	event := testutil.RequireReceive(t, events, 5*time.Second, "secondary instance-started event")
	started, ok := event.(InstanceStarted)
	if !ok {
		t.Fatalf("expected InstanceStarted, got %T", event)
	}
	if started.Type != wire.ConnectionSecondaryInstance {
		t.Errorf("connection type: got %v, want %v", started.Type, wire.ConnectionSecondaryInstance)
	}
	if started.InstanceID != 7 {
		t.Errorf("instance id: got %d, want 7", started.InstanceID)
	}
}

func TestListenerSecondaryNotificationDisabled(t *testing.T) {
	_, socketPath, events := startListener(t, false)

	connector := NewConnector(socketPath, testBlockName, 3, slog.Default())
	defer connector.Close()

	if err := connector.Connect(5*time.Second, wire.ConnectionSecondaryInstance); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	// A payload after the silent handshake proves the connection was
	// accepted; only the notification was suppressed.
	if err := connector.Send([]byte("after"), 5*time.Second); err != nil {
		t.Fatalf("Send: %v", err)
	}

	event := testutil.RequireReceive(t, events, 5*time.Second, "payload after suppressed notification")
	if _, ok := event.(InstanceStarted); ok {
		t.Fatal("secondary handshake raised an instance-started event with notification disabled")
	}
	message, ok := event.(MessageReceived)
	if !ok {
		t.Fatalf("expected MessageReceived, got %T", event)
	}
	if string(message.Payload) != "after" {
		t.Errorf("payload: got %q, want %q", message.Payload, "after")
	}
}

func TestListenerRejectsForeignBlockName(t *testing.T) {
	_, socketPath, events := startListener(t, false)

	conn := dialRaw(t, socketPath)
	frame := wire.EncodeFrame(wire.Handshake{
		BlockName:  "some-other-application-entirely",
		Type:       wire.ConnectionNewInstance,
		InstanceID: 0,
	})
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("writing handshake: %v", err)
	}

	// The listener closes the connection without responding. The
	// peer observes that as EOF on its next read.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buffer := make([]byte, 1)
	if n, err := conn.Read(buffer); err == nil {
		t.Fatalf("expected disconnect, read %d bytes", n)
	}

	select {
	case event := <-events:
		t.Fatalf("rejected connection raised event %#v", event)
	default:
	}
}

func TestListenerRejectsCorruptedChecksum(t *testing.T) {
	_, socketPath, events := startListener(t, false)

	conn := dialRaw(t, socketPath)
	frame := wire.EncodeFrame(wire.Handshake{
		BlockName:  testBlockName,
		Type:       wire.ConnectionNewInstance,
		InstanceID: 0,
	})
	// Flip a bit in the body so the checksum no longer matches.
	frame[wire.HeaderSize] ^= 0x01
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("writing handshake: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buffer := make([]byte, 1)
	if n, err := conn.Read(buffer); err == nil {
		t.Fatalf("expected disconnect, read %d bytes", n)
	}

	select {
	case event := <-events:
		t.Fatalf("corrupted handshake raised event %#v", event)
	default:
	}
}

func TestListenerBytesAfterHandshakeAreDelivered(t *testing.T) {
	_, socketPath, events := startListener(t, false)

	conn := dialRaw(t, socketPath)
	frame := wire.EncodeFrame(wire.Handshake{
		BlockName:  testBlockName,
		Type:       wire.ConnectionNewInstance,
		InstanceID: 5,
	})
	// Handshake and first payload in a single write: the listener must
	// consume exactly the framed handshake and treat the remainder as
	// message bytes.
	combined := append(frame, []byte("immediate")...)
	if _, err := conn.Write(combined); err != nil {
		t.Fatalf("writing combined frame: %v", err)
	}

	event := testutil.RequireReceive(t, events, 5*time.Second, "instance-started event")
	if _, ok := event.(InstanceStarted); !ok {
		t.Fatalf("expected InstanceStarted, got %T", event)
	}

	event = testutil.RequireReceive(t, events, 5*time.Second, "trailing payload event")
	message, ok := event.(MessageReceived)
	if !ok {
		t.Fatalf("expected MessageReceived, got %T", event)
	}
	if string(message.Payload) != "immediate" {
		t.Errorf("payload: got %q, want %q", message.Payload, "immediate")
	}
	if message.InstanceID != 5 {
		t.Errorf("instance id: got %d, want 5", message.InstanceID)
	}
}

func TestListenerCloseWithLiveConnection(t *testing.T) {
	listener, socketPath, events := startListener(t, false)

	// Handshake and leave the connection open, the way a connector
	// holding its connection for reuse would.
	conn := dialRaw(t, socketPath)
	frame := wire.EncodeFrame(wire.Handshake{
		BlockName:  testBlockName,
		Type:       wire.ConnectionNewInstance,
		InstanceID: 0,
	})
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("writing handshake: %v", err)
	}
	testutil.RequireReceive(t, events, 5*time.Second, "instance-started event")

	// Close must shut the live connection down itself; the peer never
	// will.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := listener.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "Close with a live peer connection")

	// The peer observes the shutdown as a disconnect.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buffer := make([]byte, 1)
	if n, err := conn.Read(buffer); err == nil {
		t.Fatalf("expected disconnect after Close, read %d bytes", n)
	}
}

func TestListenerCloseRemovesSocket(t *testing.T) {
	listener, socketPath, _ := startListener(t, false)

	if err := listener.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := net.Dial("unix", socketPath); err == nil {
		t.Fatal("socket still accepting after Close")
	}
}

func TestListenerReplacesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "stale.sock")

	// Simulate a crashed primary: a socket file exists but nothing is
	// listening behind it.
	stale, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("creating stale socket: %v", err)
	}
	// Close the net.Listener through its file so the socket file stays
	// behind, as it would after SIGKILL.
	unixListener := stale.(*net.UnixListener)
	unixListener.SetUnlinkOnClose(false)
	unixListener.Close()

	events := make(chan Event, 16)
	listener, err := Listen(ListenerConfig{
		SocketPath: socketPath,
		BlockName:  testBlockName,
		Events:     events,
	})
	if err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	defer listener.Close()
	go listener.Serve()

	connector := NewConnector(socketPath, testBlockName, 0, slog.Default())
	defer connector.Close()
	if err := connector.Connect(5*time.Second, wire.ConnectionNewInstance); err != nil {
		t.Fatalf("Connect after stale socket replacement: %v", err)
	}
	testutil.RequireReceive(t, events, 5*time.Second, "event after stale socket replacement")
}
