// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package instance is Solo's top-level API: it decides at startup
// whether this process is the application's primary instance or a
// later launch, and gives the two sides a local message channel.
//
// A process calls [New] with its application [Identity] and a
// [Config]. New derives the application's block identifier, attaches
// to the shared coordination block, and arbitrates:
//
//   - The winner becomes the primary. It owns the local socket, and
//     its [App.Events] channel delivers a notification for every later
//     launch plus every message those launches send.
//   - With Config.AllowSecondary set, later launches become
//     secondaries with dense instance numbers (1, 2, ...) and can call
//     [App.SendMessage] to reach the primary.
//   - Without it, later launches come back [RoleRejected]: they may
//     still send one message (typically their command line) before
//     exiting with a success status.
//
// All decisions are crash-safe. The cross-process lock is released by
// the kernel if its holder dies, and a primary that vanished without
// deregistering is detected by a liveness probe and unseated by the
// next launch.
//
// Call [App.Close] when done. A primary's Close deregisters it so the
// next launch can win arbitration without waiting for a reboot.
package instance
