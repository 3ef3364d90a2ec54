// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"testing"
)

// SocketDir creates a temporary directory directly under /tmp,
// suitable for Unix domain sockets and segment files. The 108-byte
// sun_path limit rules out deeply nested test temp directories once a
// block identifier and ".sock" suffix are appended. The directory is
// removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()

	directory, err := os.MkdirTemp("/tmp", "solo-test-")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(directory) })
	return directory
}
