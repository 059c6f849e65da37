// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command framework for the slipway binary:
// a command tree with lazy pflag flag sets, structured help output,
// typo suggestions for unknown commands and flags, and exit-code
// plumbing for handlers that manage their own output.
package cli
