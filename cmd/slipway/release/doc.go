// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package release implements the "slipway release" command group:
// propose, publish, and status. The commands are thin wiring around
// lib/release; everything testable lives there.
package release
