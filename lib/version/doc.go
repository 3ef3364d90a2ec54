// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the Solo build version.
//
// The release version is stamped at build time:
//
//	go build -ldflags "-X github.com/solo-foundation/solo/lib/version.Version=1.2.0"
//
// Unstamped builds fall back to the VCS revision recorded by the Go
// toolchain, or "devel" when even that is absent.
package version
