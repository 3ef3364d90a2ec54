// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"os"
	"os/user"
	"testing"
	"time"

	"github.com/solo-foundation/solo/lib/ipc"
	"github.com/solo-foundation/solo/lib/testutil"
	"github.com/solo-foundation/solo/lib/wire"
)

// launch starts one in-process instance of the named application. All
// instances of a test share a runtime directory, standing in for
// processes sharing a machine.
func launch(t *testing.T, runtimeDir, name string, config Config) *App {
	t.Helper()

	config.RuntimeDir = runtimeDir
	app, err := New(Identity{
		Name:         name,
		Version:      "1.0.0",
		Organization: "Solo Foundation",
		Domain:       "solo-foundation.example",
	}, config)
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func TestFirstLaunchBecomesPrimary(t *testing.T) {
	runtimeDir := testutil.SocketDir(t)
	name := testutil.UniqueID("app")

	app := launch(t, runtimeDir, name, Config{})

	if app.Role() != RolePrimary {
		t.Fatalf("role: got %v, want %v", app.Role(), RolePrimary)
	}
	if app.InstanceID() != 0 {
		t.Errorf("instance id: got %d, want 0", app.InstanceID())
	}
	if got := app.PrimaryPID(); got != int64(os.Getpid()) {
		t.Errorf("primary pid: got %d, want %d", got, os.Getpid())
	}
	if current, err := user.Current(); err == nil && current.Username != "" {
		if got := app.PrimaryUser(); got != current.Username {
			t.Errorf("primary user: got %q, want %q", got, current.Username)
		}
	}
}

func TestSecondariesGetDenseInstanceNumbers(t *testing.T) {
	runtimeDir := testutil.SocketDir(t)
	name := testutil.UniqueID("app")
	config := Config{AllowSecondary: true, NotifySecondary: true}

	primary := launch(t, runtimeDir, name, config)
	if primary.Role() != RolePrimary {
		t.Fatalf("first launch role: got %v, want %v", primary.Role(), RolePrimary)
	}

	for wantID := uint32(1); wantID <= 2; wantID++ {
		secondary := launch(t, runtimeDir, name, config)
		if secondary.Role() != RoleSecondary {
			t.Fatalf("launch %d role: got %v, want %v", wantID, secondary.Role(), RoleSecondary)
		}
		if secondary.InstanceID() != wantID {
			t.Errorf("launch %d instance id: got %d, want %d", wantID, secondary.InstanceID(), wantID)
		}

		event := testutil.RequireReceive(t, primary.Events(), 5*time.Second, "launch notification %d", wantID)
		started, ok := event.(ipc.InstanceStarted)
		if !ok {
			t.Fatalf("expected InstanceStarted, got %T", event)
		}
		if started.InstanceID != wantID {
			t.Errorf("notification instance id: got %d, want %d", started.InstanceID, wantID)
		}
		if started.Type != wire.ConnectionSecondaryInstance {
			t.Errorf("notification type: got %v, want %v", started.Type, wire.ConnectionSecondaryInstance)
		}
	}
}

func TestSecondarySendsMessageToPrimary(t *testing.T) {
	runtimeDir := testutil.SocketDir(t)
	name := testutil.UniqueID("app")
	config := Config{AllowSecondary: true}

	primary := launch(t, runtimeDir, name, config)
	secondary := launch(t, runtimeDir, name, config)

	if err := secondary.SendMessage([]byte("ping"), 5*time.Second); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	event := testutil.RequireReceive(t, primary.Events(), 5*time.Second, "message from secondary")
	message, ok := event.(ipc.MessageReceived)
	if !ok {
		t.Fatalf("expected MessageReceived, got %T", event)
	}
	if string(message.Payload) != "ping" {
		t.Errorf("payload: got %q, want %q", message.Payload, "ping")
	}
	if message.InstanceID != secondary.InstanceID() {
		t.Errorf("sender id: got %d, want %d", message.InstanceID, secondary.InstanceID())
	}
}

func TestPrimaryCannotSend(t *testing.T) {
	runtimeDir := testutil.SocketDir(t)
	name := testutil.UniqueID("app")

	primary := launch(t, runtimeDir, name, Config{})

	err := primary.SendMessage([]byte("to whom"), time.Second)
	if err != ErrPrimaryInstance {
		t.Fatalf("SendMessage on primary: got %v, want ErrPrimaryInstance", err)
	}
}

func TestLaunchRejectedWhenSecondariesDisallowed(t *testing.T) {
	runtimeDir := testutil.SocketDir(t)
	name := testutil.UniqueID("app")

	primary := launch(t, runtimeDir, name, Config{})
	rejected := launch(t, runtimeDir, name, Config{})

	if rejected.Role() != RoleRejected {
		t.Fatalf("second launch role: got %v, want %v", rejected.Role(), RoleRejected)
	}
	if rejected.InstanceID() != 0 {
		t.Errorf("rejected instance id: got %d, want 0", rejected.InstanceID())
	}

	// The rejected launch announces itself as a plain new instance.
	event := testutil.RequireReceive(t, primary.Events(), 5*time.Second, "rejected launch notification")
	started, ok := event.(ipc.InstanceStarted)
	if !ok {
		t.Fatalf("expected InstanceStarted, got %T", event)
	}
	if started.Type != wire.ConnectionNewInstance {
		t.Errorf("notification type: got %v, want %v", started.Type, wire.ConnectionNewInstance)
	}

	// It can still hand over its payload before exiting.
	if err := rejected.SendMessage([]byte("--open=file.txt"), 5*time.Second); err != nil {
		t.Fatalf("SendMessage from rejected launch: %v", err)
	}
	event = testutil.RequireReceive(t, primary.Events(), 5*time.Second, "rejected launch payload")
	message, ok := event.(ipc.MessageReceived)
	if !ok {
		t.Fatalf("expected MessageReceived, got %T", event)
	}
	if string(message.Payload) != "--open=file.txt" {
		t.Errorf("payload: got %q, want %q", message.Payload, "--open=file.txt")
	}
}

func TestCloseHandsOverPrimaryRole(t *testing.T) {
	runtimeDir := testutil.SocketDir(t)
	name := testutil.UniqueID("app")
	config := Config{AllowSecondary: true}

	first := launch(t, runtimeDir, name, config)
	secondary := launch(t, runtimeDir, name, config)
	if secondary.InstanceID() != 1 {
		t.Fatalf("secondary instance id: got %d, want 1", secondary.InstanceID())
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	replacement := launch(t, runtimeDir, name, config)
	if replacement.Role() != RolePrimary {
		t.Fatalf("post-handover role: got %v, want %v", replacement.Role(), RolePrimary)
	}

	// Instance numbers already handed out stay burned: the next
	// secondary continues the sequence instead of reusing 1.
	next := launch(t, runtimeDir, name, config)
	if next.Role() != RoleSecondary {
		t.Fatalf("post-handover secondary role: got %v, want %v", next.Role(), RoleSecondary)
	}
	if next.InstanceID() != 2 {
		t.Errorf("post-handover secondary id: got %d, want 2", next.InstanceID())
	}
}

func TestCloseCompletesWithConnectedSecondary(t *testing.T) {
	runtimeDir := testutil.SocketDir(t)
	name := testutil.UniqueID("app")
	config := Config{AllowSecondary: true, NotifySecondary: true}

	primary := launch(t, runtimeDir, name, config)
	secondary := launch(t, runtimeDir, name, config)

	// The announcement handshake leaves the secondary's connection
	// open for reuse; consume its notification so the event channel
	// is quiet before shutdown.
	testutil.RequireReceive(t, primary.Events(), 5*time.Second, "secondary announcement")
	if err := secondary.SendMessage([]byte("still here"), 5*time.Second); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	testutil.RequireReceive(t, primary.Events(), 5*time.Second, "secondary payload")

	// Shutdown must not wait for the secondary to hang up.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := primary.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "primary Close with a connected secondary")

	// The registration is gone, so the next launch takes over.
	replacement := launch(t, runtimeDir, name, config)
	if replacement.Role() != RolePrimary {
		t.Errorf("post-shutdown role: got %v, want %v", replacement.Role(), RolePrimary)
	}
}

func TestDistinctApplicationsDoNotInterfere(t *testing.T) {
	runtimeDir := testutil.SocketDir(t)

	appA := launch(t, runtimeDir, testutil.UniqueID("app"), Config{})
	appB := launch(t, runtimeDir, testutil.UniqueID("app"), Config{})

	if appA.Role() != RolePrimary || appB.Role() != RolePrimary {
		t.Fatalf("roles: got %v and %v, want both %v", appA.Role(), appB.Role(), RolePrimary)
	}
	if appA.BlockID() == appB.BlockID() {
		t.Fatal("distinct applications derived the same block identifier")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	runtimeDir := testutil.SocketDir(t)
	name := testutil.UniqueID("app")

	app := launch(t, runtimeDir, name, Config{})
	if err := app.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
