// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package blockid derives the block identifier: the stable,
// collision-resistant name shared by every process launched from the
// same application. The identifier names both the shared memory
// segment and the local socket endpoint, so two processes coordinate
// if and only if they compute the same identifier.
//
// The identifier is a keyed BLAKE3 digest of the application identity
// (name, organization, domain) plus, depending on options, the
// application version, the executable path, and the invoking user's
// name. Each field is length-prefixed before hashing so that adjacent
// fields cannot alias ("ab"+"c" never hashes like "a"+"bc"). The
// 256-bit digest is rendered with base64url encoding, which keeps the
// token free of path separators and safe to use as a file name.
//
// Generation is pure: identical inputs always produce the identical
// token, and no I/O happens here. Callers resolve identity sources
// (executable path, username) before calling [Generate]; unavailable
// sources are passed as empty strings.
//
// This package has no dependencies on other Solo packages.
package blockid
