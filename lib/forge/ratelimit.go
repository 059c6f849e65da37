// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/slipway-project/slipway/lib/clock"
)

// rateLimitTracker tracks API rate limit state from response headers.
// Before each request it blocks preemptively when the quota is known
// to be exhausted, sleeping until the reset window.
type rateLimitTracker struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	known     bool // true after the first response with rate limit headers
	clock     clock.Clock
}

func newRateLimitTracker(clock clock.Clock) *rateLimitTracker {
	return &rateLimitTracker{clock: clock}
}

// update records rate limit state from response headers.
func (tracker *rateLimitTracker) update(header http.Header) {
	remainingValue := header.Get("X-RateLimit-Remaining")
	resetValue := header.Get("X-RateLimit-Reset")
	if remainingValue == "" || resetValue == "" {
		return
	}

	remaining, err := strconv.Atoi(remainingValue)
	if err != nil {
		return
	}
	resetUnix, err := strconv.ParseInt(resetValue, 10, 64)
	if err != nil {
		return
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	tracker.remaining = remaining
	tracker.reset = time.Unix(resetUnix, 0)
	tracker.known = true
}

// wait blocks until the rate limit window resets if the quota is known
// to be exhausted. Returns immediately otherwise. Returns an error
// only when the context is cancelled while waiting.
func (tracker *rateLimitTracker) wait(ctx context.Context) error {
	tracker.mu.Lock()
	if !tracker.known || tracker.remaining > 0 {
		tracker.mu.Unlock()
		return nil
	}
	sleepDuration := tracker.reset.Sub(tracker.clock.Now())
	tracker.mu.Unlock()

	if sleepDuration <= 0 {
		return nil
	}

	select {
	case <-tracker.clock.After(sleepDuration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfter computes the backoff from a rate-limited response:
// Retry-After seconds (secondary limits) first, then the
// X-RateLimit-Reset timestamp. Zero when no backoff information is
// present.
func (tracker *rateLimitTracker) retryAfter(header http.Header) time.Duration {
	if retryValue := header.Get("Retry-After"); retryValue != "" {
		if seconds, err := strconv.Atoi(retryValue); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if resetValue := header.Get("X-RateLimit-Reset"); resetValue != "" {
		if resetUnix, err := strconv.ParseInt(resetValue, 10, 64); err == nil {
			duration := time.Unix(resetUnix, 0).Sub(tracker.clock.Now())
			if duration > 0 {
				return duration
			}
		}
	}
	return 0
}
