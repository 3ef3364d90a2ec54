// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package version

import "testing"

func TestStringPrefersStampedVersion(t *testing.T) {
	saved := Version
	defer func() { Version = saved }()

	Version = "9.9.9"
	if got := String(); got != "9.9.9" {
		t.Errorf("String: got %q, want %q", got, "9.9.9")
	}
}

func TestStringNeverEmpty(t *testing.T) {
	saved := Version
	defer func() { Version = saved }()

	Version = ""
	if got := String(); got == "" {
		t.Error("String returned an empty version")
	}
}
