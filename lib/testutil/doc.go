// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Solo packages.
//
// [SocketDir] creates a short-pathed temporary directory in /tmp for
// Unix domain sockets. Unix sockets have a 108-byte path limit
// (sun_path in sockaddr_un), and t.TempDir() can produce paths that
// blow past it once a 43-character block identifier plus ".sock" is
// appended. The directory is removed when the test completes.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with a time.After fallback) so individual
// tests do not need direct time.After calls when waiting on event
// channels.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation (application names, payload markers) without
// reaching for time.Now().
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no dependencies on other Solo packages.
package testutil
