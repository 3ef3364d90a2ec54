// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package coord implements the coordination block and the arbitration
// loop, the heart of single-instance enforcement.
//
// The coordination block is a byte-exact 146-byte record in shared
// memory: primary flag, last-assigned secondary number, the primary's
// pid and username, and a trailing CRC-16 over everything before it.
// The checksum is an optimistic-concurrency guard: whenever no
// process holds the cross-process lock, the stored checksum matches a
// recomputation. A newly locking process that observes a mismatch
// knows another process died mid-update or is about to finish one,
// and retries with a randomized 8–18 ms backoff; a mismatch that
// persists past the consistency timeout (5 s) means the previous
// writer is gone for good, and the observer reinitializes the block.
//
// [Arbitrate] runs the startup algorithm every process performs: it
// initializes a freshly created segment, waits out transient
// inconsistency, and then, still holding the lock, either claims
// the primary role (invoking the caller's start callback so the
// listener exists before the flag is published), takes the next
// secondary number, or reports that the caller must yield to the
// existing primary. At most one process ever observes the block with
// no primary registered, because the decision happens entirely under
// the segment lock.
//
// A block that names a primary whose pid no longer exists is treated
// the same as a corrupt one: the dead primary's registration is
// discarded and the observing process claims the role. A crashed
// primary leaves its registration behind in the segment file, so
// liveness of the recorded pid is part of the block's validity.
package coord
