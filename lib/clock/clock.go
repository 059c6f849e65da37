// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time operations for testability. Production
// code injects Real(); tests inject Fake() with deterministic time
// control.
//
// Slipway touches the clock in exactly two places: the forge client's
// rate-limit backoff and App installation token rotation. Both accept a
// Clock instead of calling the time package directly, so tests can
// drive them without real sleeps.
package clock

import "time"

// Clock provides the time operations slipway needs. Production code
// injects Real(); tests inject Fake() for deterministic control.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. Equivalent to time.After. If d <= 0, the
	// channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep pauses the current goroutine for at least duration d.
	Sleep(d time.Duration)
}
