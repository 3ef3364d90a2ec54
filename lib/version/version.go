// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package version

import "runtime/debug"

// Version is the release version, stamped via -ldflags. Empty in
// unstamped builds.
var Version string

// String returns the best available version description.
func String() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		var revision string
		var dirty bool
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				dirty = setting.Value == "true"
			}
		}
		if revision != "" {
			if len(revision) > 12 {
				revision = revision[:12]
			}
			if dirty {
				return "devel+" + revision + "-dirty"
			}
			return "devel+" + revision
		}
	}
	return "devel"
}
