// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

// solo-demo exercises the instance package from the command line.
//
// The first copy becomes the primary: it stays in the foreground and
// logs every later launch and every message those launches send,
// until interrupted. Every further copy hands its command line to the
// primary as a CBOR payload and exits successfully, which is the
// behavior a single-instance desktop application wants from a second
// invocation.
//
//	solo-demo --allow-secondary --notify-secondary &
//	solo-demo open report.txt
//
// Identity and behavior can also come from a YAML file via --config;
// command-line flags override the file.
package main
