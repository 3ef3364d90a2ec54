// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads Solo application configuration from YAML.
//
// Applications embedding the instance package typically hardcode
// their identity; tools and services that want it operator-tunable
// load a file like:
//
//	application:
//	  name: solo-demo
//	  version: 1.0.0
//	  organization: Solo Foundation
//	  domain: solo-foundation.example
//	instance:
//	  allow_secondary: true
//	  notify_secondary: true
//	  startup_timeout: 2s
//	log:
//	  level: debug
//	  format: json
//
// Unknown keys are rejected so typos fail loudly at startup instead
// of silently reverting a setting to its default.
package config
