// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that the
// arbitration loop's waits (the five-second consistency timeout and
// the randomized retry backoff) are testable without real sleeping.
//
// Production code accepts a Clock parameter instead of calling
// time.Now, time.After, or time.Sleep directly. Real() provides the
// standard library behavior; Fake() provides a deterministic clock
// that advances only when Advance is called.
//
// When a goroutine calls Sleep or After on a FakeClock it registers a
// pending waiter. Tests use WaitForWaiters to block until the
// goroutine under test has reached its sleep before calling Advance,
// which removes the race between sleep registration and time
// advancement that plagues tests built on real time.Sleep.
//
// This package has no dependencies on other Solo packages.
package clock
