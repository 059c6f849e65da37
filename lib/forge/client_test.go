// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/slipway-project/slipway/lib/clock"
)

// newTestClient creates a Client backed by the given httptest server,
// using token auth. The server must be a TLS server — the client
// refuses plain HTTP.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Owner:      "slipway-project",
		Repo:       "dag-codec",
		BaseURL:    server.URL,
		Token:      "test-token",
		HTTPClient: server.Client(),
		Clock:      clock.Real(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientHTTPSEnforcement(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{
		Owner:   "o",
		Repo:    "r",
		BaseURL: "http://api.github.com",
		Token:   "test",
	})
	if err == nil {
		t.Fatal("expected error for HTTP URL")
	}
}

func TestNewClientRequiresRepository(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Token: "test"})
	if err == nil {
		t.Fatal("expected error for missing Owner/Repo")
	}
}

func TestNewClientMutuallyExclusiveAuth(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{
		Owner:          "o",
		Repo:           "r",
		Token:          "test",
		AppID:          1,
		PrivateKey:     []byte("pem"),
		InstallationID: 1,
	})
	if err == nil {
		t.Fatal("expected error for both auth modes")
	}
}

func TestNewClientNoAuth(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Owner: "o", Repo: "r"})
	if err == nil {
		t.Fatal("expected error for no auth")
	}
}

func TestClientRequestHeaders(t *testing.T) {
	t.Parallel()

	var gotAuth, gotAccept, gotVersion string
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotAuth = request.Header.Get("Authorization")
		gotAccept = request.Header.Get("Accept")
		gotVersion = request.Header.Get("X-GitHub-Api-Version")
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{"id":1,"tag_name":"v1.0.0"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.GetReleaseByTag(context.Background(), "v1.0.0"); err != nil {
		t.Fatalf("GetReleaseByTag: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-token")
	}
	if gotAccept != "application/vnd.github+json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotVersion != apiVersion {
		t.Errorf("X-GitHub-Api-Version = %q, want %q", gotVersion, apiVersion)
	}
}

func TestClientAPIErrorMapping(t *testing.T) {
	t.Parallel()

	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusNotFound)
		writer.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.GetReleaseByTag(context.Background(), "v9.9.9")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
}

func TestClientValidationErrorMapping(t *testing.T) {
	t.Parallel()

	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnprocessableEntity)
		writer.Write([]byte(`{"message":"Validation Failed","errors":[{"resource":"PullRequest","field":"head","code":"invalid"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.CreatePullRequest(context.Background(), CreatePullRequestRequest{
		Title: "t", Head: "release/v1.0.0", Base: "main",
	})
	if err == nil {
		t.Fatal("expected error for 422")
	}
	if !IsValidationFailed(err) {
		t.Errorf("IsValidationFailed(%v) = false, want true", err)
	}
}

func TestClientRateLimitRetry(t *testing.T) {
	t.Parallel()

	fakeClock := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	attempts := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		attempts++
		if attempts == 1 {
			writer.Header().Set("Retry-After", "30")
			writer.WriteHeader(http.StatusTooManyRequests)
			writer.Write([]byte(`{"message":"API rate limit exceeded"}`))
			return
		}
		writer.Write([]byte(`{"id":1,"tag_name":"v1.0.0"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Owner:      "slipway-project",
		Repo:       "dag-codec",
		BaseURL:    server.URL,
		Token:      "test-token",
		HTTPClient: server.Client(),
		Clock:      fakeClock,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	// Drive the fake clock forward once the client blocks in backoff.
	go func() {
		for fakeClock.PendingWaiters() == 0 {
			time.Sleep(time.Millisecond)
		}
		fakeClock.Advance(time.Minute)
	}()

	release, err := client.GetReleaseByTag(context.Background(), "v1.0.0")
	if err != nil {
		t.Fatalf("GetReleaseByTag after retry: %v", err)
	}
	if release.TagName != "v1.0.0" {
		t.Errorf("TagName = %q", release.TagName)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (one retry, no more)", attempts)
	}
}

func TestClientPersistentRateLimitSurfaces(t *testing.T) {
	t.Parallel()

	fakeClock := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	attempts := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		attempts++
		writer.Header().Set("Retry-After", "30")
		writer.WriteHeader(http.StatusTooManyRequests)
		writer.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Owner:      "o",
		Repo:       "r",
		BaseURL:    server.URL,
		Token:      "test-token",
		HTTPClient: server.Client(),
		Clock:      fakeClock,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	go func() {
		for fakeClock.PendingWaiters() == 0 {
			time.Sleep(time.Millisecond)
		}
		fakeClock.Advance(time.Minute)
	}()

	_, err = client.GetReleaseByTag(context.Background(), "v1.0.0")
	if err == nil {
		t.Fatal("expected error for persistent rate limiting")
	}
	if !IsRateLimited(err) {
		t.Errorf("IsRateLimited(%v) = false, want true", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want exactly 2 (single retry)", attempts)
	}
}

func TestRateLimitTrackerUpdateAndWait(t *testing.T) {
	t.Parallel()

	fakeClock := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	tracker := newRateLimitTracker(fakeClock)

	// Unknown state: wait returns immediately.
	if err := tracker.wait(context.Background()); err != nil {
		t.Fatalf("wait on unknown state: %v", err)
	}

	header := http.Header{}
	header.Set("X-RateLimit-Remaining", "0")
	header.Set("X-RateLimit-Reset", strconv.FormatInt(fakeClock.Now().Add(time.Hour).Unix(), 10))
	tracker.update(header)

	// Exhausted: wait must respect context cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tracker.wait(ctx); err == nil {
		t.Fatal("expected context error while waiting on exhausted quota")
	}
}
