// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package forge is a typed client for the source-control host's REST
// API, covering the two surfaces the release pipeline needs: opening
// release pull requests and publishing release objects with notes.
//
// A Client is bound to a single repository at construction — slipway
// releases exactly one workspace per invocation, so owner and name are
// configuration, not per-call arguments. Authentication is a personal
// access token or an App installation (RS256 JWT exchanged for
// auto-rotating installation tokens). Rate limiting
// (X-RateLimit-* headers with one backoff retry) and structured error
// mapping follow the host's documented behavior.
//
// All requests are made over HTTPS. The client refuses non-HTTPS base
// URLs.
package forge
