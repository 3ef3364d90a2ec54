// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package shm provides the shared memory segment underneath the
// coordination block: a fixed-size file on tmpfs, mapped shared into
// every participating process, with an flock-based cross-process
// mutex.
//
// Segment lifecycle follows create-or-attach semantics: the first
// process to open the name with O_EXCL becomes the segment owner
// (Created reports true) and is responsible for initializing the
// contents; every later process attaches to the existing file. The
// file lives in a tmpfs directory (/dev/shm by default), so the OS
// reclaims it at reboot; the segment never persists state across
// boots. The kernel releases a crashed holder's flock automatically,
// so a process dying inside the critical section cannot wedge the
// lock (it can leave a half-written record, which the coordination
// block's checksum detects).
//
// All access to segment memory goes through [Segment.WithLock], the
// scoped acquisition helper: it takes the exclusive lock, runs the
// caller's function against the mapped bytes, and releases the lock
// on every exit path. No caller ever reads or writes the mapping
// outside the lock.
//
// This package has no dependencies on other Solo packages.
package shm
