// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package coord

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sys/unix"

	"github.com/solo-foundation/solo/lib/clock"
	"github.com/solo-foundation/solo/lib/shm"
)

// Role is the outcome of arbitration for one process.
type Role int

const (
	// RoleUnknown is the zero value; arbitration never returns it.
	RoleUnknown Role = iota

	// RolePrimary means this process won arbitration: it runs the
	// listener and holds instance id 0.
	RolePrimary

	// RoleSecondary means a primary already exists and this process
	// was assigned a secondary instance number.
	RoleSecondary

	// RoleRejected means a primary already exists and secondary
	// instances are disallowed; the process should hand off to the
	// primary and terminate with a success status.
	RoleRejected
)

// String returns the role name for logs.
func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	case RoleRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Result is the decided role plus the instance id that goes with it:
// 0 for the primary, the assigned number for a secondary, 0 for a
// rejected launch.
type Result struct {
	Role       Role
	InstanceID uint32
}

// DefaultConsistencyTimeout bounds how long a checksum mismatch is
// treated as transient before the block is declared dead and
// reinitialized. It trades a small risk of unseating a live but
// badly stalled writer against an unbounded startup hang.
const DefaultConsistencyTimeout = 5 * time.Second

// Backoff bounds for the consistency-wait retry sleep. The jitter
// desynchronizes processes that raced to create the segment.
const (
	backoffFloor = 8 * time.Millisecond
	backoffSpan  = 11 // milliseconds of jitter above the floor, exclusive
)

// Config carries everything Arbitrate needs besides the segment.
type Config struct {
	// AllowSecondary grants later launches secondary instance numbers
	// instead of rejecting them.
	AllowSecondary bool

	// PID is the calling process's id, recorded in the block when
	// this process becomes primary.
	PID int64

	// Username is recorded in the block when this process becomes
	// primary. May be empty if no username source was available.
	Username string

	// ConsistencyTimeout overrides DefaultConsistencyTimeout when
	// positive. Tests use this; production passes zero.
	ConsistencyTimeout time.Duration

	// Clock injects time for the wait loop. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives arbitration lifecycle records. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Arbitrate runs the startup algorithm against the shared segment and
// returns the process's role. startPrimary is invoked while the
// segment lock is held, before the primary flag is published, so the
// listener is accepting connections by the time any other process can
// learn a primary exists; if it fails, arbitration fails and the
// block is left without a registered primary.
//
// The caller must have opened the segment with size [BlockSize].
func Arbitrate(segment *shm.Segment, config Config, startPrimary func() error) (Result, error) {
	if segment.Size() < BlockSize {
		return Result{}, fmt.Errorf("coord: segment is %d bytes, need %d", segment.Size(), BlockSize)
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.ConsistencyTimeout
	if timeout <= 0 {
		timeout = DefaultConsistencyTimeout
	}

	// The segment creator owns zero-initialization. Everyone else
	// attached to a block some other process has already initialized,
	// or is about to: the consistency wait below absorbs the gap,
	// since uninitialized zero bytes fail the checksum.
	if segment.Created() {
		if err := segment.WithLock(func(data []byte) error {
			EncodeBlock(data, EmptyBlock())
			return nil
		}); err != nil {
			return Result{}, fmt.Errorf("coord: initializing block: %w", err)
		}
	}

	start := clk.Now()
	for {
		var result Result
		decided := false

		err := segment.WithLock(func(data []byte) error {
			block, consistent := DecodeBlock(data)

			if !consistent {
				if clk.Now().Sub(start) < timeout {
					// Another process is mid-update. Back off and
					// re-inspect.
					return nil
				}
				logger.Warn("coordination block checksum unrecovered past timeout, reinitializing",
					"segment", segment.Path(),
					"timeout", timeout,
				)
				block = EmptyBlock()
			}

			if block.IsPrimary && !processAlive(block.PrimaryPID) {
				logger.Warn("registered primary is gone, discarding its registration",
					"segment", segment.Path(),
					"stale_pid", block.PrimaryPID,
				)
				block.IsPrimary = false
				block.PrimaryPID = -1
				block.PrimaryUser = ""
			}

			if !block.IsPrimary {
				if err := startPrimary(); err != nil {
					// Leave the block as-is: no primary was
					// registered, so another process can still win.
					return fmt.Errorf("coord: starting primary: %w", err)
				}
				block.IsPrimary = true
				block.PrimaryPID = config.PID
				block.PrimaryUser = config.Username
				EncodeBlock(data, block)
				result = Result{Role: RolePrimary, InstanceID: 0}
				decided = true
				return nil
			}

			if !config.AllowSecondary {
				result = Result{Role: RoleRejected}
				decided = true
				return nil
			}

			block.SecondaryCount++
			EncodeBlock(data, block)
			result = Result{Role: RoleSecondary, InstanceID: block.SecondaryCount}
			decided = true
			return nil
		})
		if err != nil {
			return Result{}, err
		}
		if decided {
			logger.Info("arbitration decided",
				"role", result.Role,
				"instance_id", result.InstanceID,
			)
			return result, nil
		}

		clk.Sleep(backoffFloor + time.Duration(rand.Intn(backoffSpan))*time.Millisecond)
	}
}

// ReadBlock returns the current record under the segment lock. The
// consistency flag is false while another process is mid-update.
func ReadBlock(segment *shm.Segment) (Block, bool, error) {
	var block Block
	var consistent bool
	err := segment.WithLock(func(data []byte) error {
		block, consistent = DecodeBlock(data)
		return nil
	})
	if err != nil {
		return Block{}, false, fmt.Errorf("coord: reading block: %w", err)
	}
	return block, consistent, nil
}

// ClearPrimary removes this process's primary registration: primary
// flag off, pid -1, username empty, checksum recomputed. The
// secondary counter is preserved so instance numbers stay unique
// across a primary handover within one boot.
func ClearPrimary(segment *shm.Segment) error {
	err := segment.WithLock(func(data []byte) error {
		block, _ := DecodeBlock(data)
		block.IsPrimary = false
		block.PrimaryPID = -1
		block.PrimaryUser = ""
		EncodeBlock(data, block)
		return nil
	})
	if err != nil {
		return fmt.Errorf("coord: clearing primary registration: %w", err)
	}
	return nil
}

// processAlive reports whether a process with the given pid exists on
// this host. Signal 0 probes existence without delivering anything;
// EPERM means the process exists but belongs to another user.
func processAlive(pid int64) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(int(pid), 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
