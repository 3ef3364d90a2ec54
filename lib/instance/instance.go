// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/solo-foundation/solo/lib/blockid"
	"github.com/solo-foundation/solo/lib/clock"
	"github.com/solo-foundation/solo/lib/coord"
	"github.com/solo-foundation/solo/lib/ipc"
	"github.com/solo-foundation/solo/lib/shm"
	"github.com/solo-foundation/solo/lib/wire"
)

// ErrPrimaryInstance is returned by SendMessage on the primary: the
// message channel only runs from later launches toward the primary.
var ErrPrimaryInstance = errors.New("instance: primary instance has no outbound message channel")

// DefaultStartupTimeout bounds the initial connection from a
// secondary or rejected launch to the primary's socket.
const DefaultStartupTimeout = time.Second

// defaultEventBuffer is the capacity of the primary's event channel
// when Config.EventBuffer is zero.
const defaultEventBuffer = 16

// Role re-exports the arbitration outcome for callers that only
// import this package.
type Role = coord.Role

const (
	RolePrimary   = coord.RolePrimary
	RoleSecondary = coord.RoleSecondary
	RoleRejected  = coord.RoleRejected
)

// Identity names the application. Name is required; every other field
// refines the scope of "same application" and may be empty.
type Identity struct {
	// Name is the application name.
	Name string

	// Version distinguishes application versions. Two builds with
	// different versions coordinate independently unless
	// Config.ExcludeAppVersion is set.
	Version string

	// Organization is the publishing organization's name.
	Organization string

	// Domain is the publishing organization's domain.
	Domain string

	// ExecutablePath overrides the running binary's path in the
	// identity digest. Empty means use os.Executable().
	ExecutablePath string
}

// Config adjusts arbitration and messaging behavior. The zero value
// is usable: single-instance only, machine-wide scope, default
// timeouts.
type Config struct {
	// AllowSecondary lets later launches run as secondaries instead of
	// being rejected.
	AllowSecondary bool

	// NotifySecondary makes the primary's event channel report
	// secondary launches, not just rejected ones.
	NotifySecondary bool

	// ExcludeAppVersion drops Identity.Version from the identity
	// digest, so all versions of the application share one primary.
	ExcludeAppVersion bool

	// ExcludeAppPath drops the executable path from the identity
	// digest, so renamed or relocated copies of the binary still
	// coordinate with each other.
	ExcludeAppPath bool

	// PerUser scopes coordination to the invoking OS user: each user
	// gets an independent primary, and the segment and socket are
	// created with owner-only permissions.
	PerUser bool

	// StartupTimeout bounds the initial connection to the primary for
	// secondary and rejected launches. Defaults to
	// DefaultStartupTimeout.
	StartupTimeout time.Duration

	// RuntimeDir holds the segment file and socket. Defaults to
	// /dev/shm when present, else os.TempDir().
	RuntimeDir string

	// EventBuffer is the event channel capacity. Defaults to 16.
	EventBuffer int

	// Logger receives lifecycle records. Defaults to slog.Default().
	Logger *slog.Logger

	// Clock injects time for arbitration. Defaults to clock.Real().
	Clock clock.Clock
}

// App is one process's view of the single-instance coordination for
// its application. Obtain one with New; release it with Close.
type App struct {
	role       coord.Role
	instanceID uint32
	blockName  string
	socketPath string
	logger     *slog.Logger

	timeout time.Duration

	segment   *shm.Segment
	listener  *ipc.Listener
	connector *ipc.Connector
	events    chan ipc.Event

	// serveDone is closed when the primary's accept loop returns.
	serveDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New arbitrates this process's role for the given application
// identity and returns the resulting App. It blocks until the role is
// decided: for the winner that includes binding the local socket, for
// everyone else at most the consistency-wait bound.
func New(identity Identity, config Config) (*App, error) {
	if identity.Name == "" {
		return nil, errors.New("instance: identity requires an application name")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.StartupTimeout
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	eventBuffer := config.EventBuffer
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}

	username := resolveUsername()

	executablePath := identity.ExecutablePath
	if executablePath == "" && !config.ExcludeAppPath {
		path, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("instance: resolving executable path: %w", err)
		}
		executablePath = path
	}

	blockName := blockid.Generate(blockid.Params{
		ApplicationName:    identity.Name,
		OrganizationName:   identity.Organization,
		OrganizationDomain: identity.Domain,
		ApplicationVersion: identity.Version,
		ExecutablePath:     executablePath,
		Username:           username,
	}, blockid.Options{
		ExcludeAppVersion: config.ExcludeAppVersion,
		ExcludeAppPath:    config.ExcludeAppPath,
		PerUser:           config.PerUser,
	})

	runtimeDir := config.RuntimeDir
	if runtimeDir == "" {
		runtimeDir = defaultRuntimeDir()
	}

	mode := os.FileMode(0666)
	if config.PerUser {
		mode = 0600
	}

	segment, err := shm.Open(runtimeDir, blockName, coord.BlockSize, mode)
	if err != nil {
		return nil, fmt.Errorf("instance: opening coordination segment: %w", err)
	}

	app := &App{
		blockName:  blockName,
		socketPath: filepath.Join(runtimeDir, blockName+".sock"),
		logger:     logger,
		timeout:    timeout,
		segment:    segment,
		events:     make(chan ipc.Event, eventBuffer),
	}

	result, err := coord.Arbitrate(segment, coord.Config{
		AllowSecondary: config.AllowSecondary,
		PID:            int64(os.Getpid()),
		Username:       username,
		Clock:          config.Clock,
		Logger:         logger,
	}, func() error {
		return app.startListener(config)
	})
	if err != nil {
		segment.Close()
		return nil, err
	}
	app.role = result.Role
	app.instanceID = result.InstanceID

	switch app.role {
	case coord.RoleSecondary:
		app.connector = ipc.NewConnector(app.socketPath, blockName, app.instanceID, logger)
		if config.NotifySecondary {
			// Announce ourselves so the primary's event channel sees
			// this launch. Failure is not fatal: the primary may be
			// mid-restart, and messages reconnect on their own.
			if err := app.connector.Connect(timeout, wire.ConnectionSecondaryInstance); err != nil {
				logger.Warn("could not announce secondary launch to primary", "error", err)
			}
		}
	case coord.RoleRejected:
		app.connector = ipc.NewConnector(app.socketPath, blockName, 0, logger)
		// A rejected launch's whole job is telling the primary it
		// happened. Still not fatal: the caller may want to exit
		// regardless.
		if err := app.connector.Connect(timeout, wire.ConnectionNewInstance); err != nil {
			logger.Warn("could not announce launch to primary", "error", err)
		}
	}

	logger.Info("instance role decided",
		"application", identity.Name,
		"role", app.role,
		"instance_id", app.instanceID,
		"block", blockName,
	)
	return app, nil
}

// startListener binds the primary's socket and starts its accept
// loop. Called under the segment lock, before the primary flag is
// published.
func (a *App) startListener(config Config) error {
	listener, err := ipc.Listen(ipc.ListenerConfig{
		SocketPath:      a.socketPath,
		BlockName:       a.blockName,
		NotifySecondary: config.NotifySecondary,
		PerUser:         config.PerUser,
		Events:          a.events,
		Logger:          a.logger,
	})
	if err != nil {
		return err
	}
	a.listener = listener
	a.serveDone = make(chan struct{})
	go func() {
		defer close(a.serveDone)
		listener.Serve()
	}()
	return nil
}

// Role returns this process's arbitration outcome.
func (a *App) Role() coord.Role { return a.role }

// InstanceID returns this process's instance number: 0 for the
// primary and for rejected launches, the assigned number for a
// secondary.
func (a *App) InstanceID() uint32 { return a.instanceID }

// BlockID returns the derived block identifier shared by every
// process of this application.
func (a *App) BlockID() string { return a.blockName }

// Events returns the channel that delivers launch notifications and
// inbound messages. Only the primary receives events; for other roles
// the channel exists but stays silent.
func (a *App) Events() <-chan ipc.Event { return a.events }

// PrimaryPID returns the registered primary's process id, or -1 when
// no primary is registered or the block is mid-update.
func (a *App) PrimaryPID() int64 {
	block, consistent, err := coord.ReadBlock(a.segment)
	if err != nil || !consistent || !block.IsPrimary {
		return -1
	}
	return block.PrimaryPID
}

// PrimaryUser returns the username the registered primary recorded,
// or the empty string when no primary is registered.
func (a *App) PrimaryUser() string {
	block, consistent, err := coord.ReadBlock(a.segment)
	if err != nil || !consistent || !block.IsPrimary {
		return ""
	}
	return block.PrimaryUser
}

// SendMessage delivers an opaque payload to the primary, connecting
// or reconnecting as needed within timeout. A non-positive timeout
// uses the configured startup timeout. The primary cannot send;
// it gets ErrPrimaryInstance.
func (a *App) SendMessage(payload []byte, timeout time.Duration) error {
	if a.role == coord.RolePrimary {
		return ErrPrimaryInstance
	}
	if timeout <= 0 {
		timeout = a.timeout
	}
	return a.connector.Send(payload, timeout)
}

// Close releases everything this process holds: the primary's
// registration and socket, a secondary's connection, and the segment
// mapping. Safe to call more than once; later calls return the first
// result.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error

		if a.listener != nil {
			if err := a.listener.Close(); err != nil {
				errs = append(errs, err)
			}
			<-a.serveDone
			// All connection goroutines have drained; nothing writes
			// to the event channel anymore.
			close(a.events)
		}
		if a.role == coord.RolePrimary {
			if err := coord.ClearPrimary(a.segment); err != nil {
				errs = append(errs, err)
			}
		}
		if a.connector != nil {
			if err := a.connector.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := a.segment.Close(); err != nil {
			errs = append(errs, err)
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

// resolveUsername returns the invoking user's name, falling back to
// environment variables when the user database is unavailable (static
// binaries, stripped containers).
func resolveUsername() string {
	if current, err := user.Current(); err == nil && current.Username != "" {
		return current.Username
	}
	for _, key := range []string{"USER", "LOGNAME", "USERNAME"} {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// defaultRuntimeDir prefers tmpfs so coordination state disappears at
// reboot without any cleanup pass.
func defaultRuntimeDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}
