// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slipway-project/slipway/lib/clock"
)

// apiVersion pins the REST API version header so behavior stays
// consistent as the host evolves the API.
const apiVersion = "2022-11-28"

// defaultBaseURL is the public GitHub API root.
const defaultBaseURL = "https://api.github.com"

// maxResponseBytes bounds how much of a response body is read. Release
// objects and pull requests are small; anything larger is a protocol
// error, not data.
const maxResponseBytes = 4 << 20

// Config holds configuration for creating a Client.
//
// Exactly one authentication mode must be configured:
//   - token authentication: set Token
//   - App authentication: set AppID, PrivateKey, and InstallationID
type Config struct {
	// Owner and Repo identify the repository the client operates on.
	// Both are required.
	Owner string
	Repo  string

	// BaseURL is the API root. Defaults to the public GitHub API.
	// Must use HTTPS.
	BaseURL string

	// Token is a personal access token or fine-grained token.
	// Mutually exclusive with the App fields.
	Token string

	// AppID, PrivateKey (PEM-encoded RSA), and InstallationID
	// configure App authentication.
	AppID          int64
	PrivateKey     []byte
	InstallationID int64

	// HTTPClient is used for all requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Clock provides time operations. Defaults to clock.Real();
	// inject clock.Fake() in tests.
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Client is a typed REST client bound to one repository.
type Client struct {
	baseURL    string
	owner      string
	repo       string
	httpClient *http.Client
	auth       authenticator
	rateLimit  *rateLimitTracker
	clock      clock.Clock
	logger     *slog.Logger
}

// NewClient creates a client from the given configuration. Returns an
// error if the configuration is invalid (missing repository, bad auth
// config, non-HTTPS URL, unparseable private key).
func NewClient(config Config) (*Client, error) {
	if config.Owner == "" || config.Repo == "" {
		return nil, fmt.Errorf("forge: Owner and Repo are required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("forge: API client requires HTTPS (got %q)", baseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hasApp := config.AppID != 0 || len(config.PrivateKey) > 0 || config.InstallationID != 0
	hasToken := config.Token != ""
	if hasApp && hasToken {
		return nil, fmt.Errorf("forge: cannot configure both App auth and token auth")
	}
	if !hasApp && !hasToken {
		return nil, fmt.Errorf("forge: no authentication configured (set Token or AppID+PrivateKey+InstallationID)")
	}

	var auth authenticator
	if hasApp {
		if config.AppID == 0 || len(config.PrivateKey) == 0 || config.InstallationID == 0 {
			return nil, fmt.Errorf("forge: App auth requires AppID, PrivateKey, and InstallationID")
		}
		appAuth, err := newAppAuth(config.AppID, config.InstallationID, config.PrivateKey, clk)
		if err != nil {
			return nil, err
		}
		appAuth.httpClient = httpClient
		appAuth.baseURL = baseURL
		auth = appAuth
	} else {
		auth = newTokenAuth(config.Token)
	}

	return &Client{
		baseURL:    baseURL,
		owner:      config.Owner,
		repo:       config.Repo,
		httpClient: httpClient,
		auth:       auth,
		rateLimit:  newRateLimitTracker(clk),
		clock:      clk,
		logger:     logger,
	}, nil
}

// repoPath builds a path under the bound repository:
// /repos/<owner>/<repo><suffix>.
func (client *Client) repoPath(format string, args ...any) string {
	return fmt.Sprintf("/repos/%s/%s", client.owner, client.repo) + fmt.Sprintf(format, args...)
}

// do executes an authenticated API request and returns the response
// body. Handles rate-limit waiting and a single backoff retry. On
// non-2xx responses, returns an *APIError.
func (client *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	return client.doWithRetry(ctx, method, path, requestBody, false)
}

func (client *Client) doWithRetry(ctx context.Context, method, path string, requestBody any, isRetry bool) ([]byte, error) {
	if err := client.rateLimit.wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("forge: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, client.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("forge: creating request: %w", err)
	}

	authHeader, err := client.auth.AuthorizationHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("forge: authentication: %w", err)
	}
	request.Header.Set("Authorization", authHeader)
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", apiVersion)
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("forge: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	client.rateLimit.update(response.Header)

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("forge: reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return body, nil
	}

	// One backoff retry on rate limiting, never more — persistent
	// limiting should surface to the operator.
	if !isRetry && (response.StatusCode == 429 ||
		(response.StatusCode == 403 && isRateLimitMessage(string(body)))) {
		retryDuration := client.rateLimit.retryAfter(response.Header)
		if retryDuration > 0 {
			client.logger.Info("rate limited, backing off",
				"duration", retryDuration, "method", method, "path", path)
			select {
			case <-client.clock.After(retryDuration):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return client.doWithRetry(ctx, method, path, requestBody, true)
		}
	}

	return nil, parseAPIError(response.StatusCode, body)
}

// get decodes a GET response into result.
func (client *Client) get(ctx context.Context, path string, result any) error {
	body, err := client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, result)
}

// post decodes a POST response into result (pass nil to discard).
func (client *Client) post(ctx context.Context, path string, requestBody, result any) error {
	body, err := client.do(ctx, http.MethodPost, path, requestBody)
	if err != nil {
		return err
	}
	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}
