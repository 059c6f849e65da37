// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/slipway-project/slipway/lib/clock"
)

// authenticator provides Authorization header values for API requests.
// Implementations handle token lifecycle: static for personal access
// tokens, auto-rotating for App installation tokens.
type authenticator interface {
	AuthorizationHeader(ctx context.Context) (string, error)
}

// tokenRotationMargin is how far before expiry an installation token
// is rotated. Installation tokens have a 1-hour TTL; rotating 5
// minutes early avoids a token expiring mid-request.
const tokenRotationMargin = 5 * time.Minute

// tokenAuth is a static Bearer token authenticator.
type tokenAuth struct {
	header string
}

func newTokenAuth(token string) *tokenAuth {
	return &tokenAuth{header: "Bearer " + token}
}

func (auth *tokenAuth) AuthorizationHeader(_ context.Context) (string, error) {
	return auth.header, nil
}

// appAuth authenticates as an App installation: it signs RS256 JWTs
// with the App's private key, exchanges them for short-lived
// installation tokens, and rotates before expiry. Release bots run as
// App installations so their credentials are scoped to the one
// repository they release.
type appAuth struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	clock          clock.Clock

	// httpClient and baseURL are set by the Client after construction;
	// the token exchange shares the client's HTTP transport.
	httpClient *http.Client
	baseURL    string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newAppAuth(appID, installationID int64, privateKeyPEM []byte, clock clock.Clock) (*appAuth, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, fmt.Errorf("forge: failed to decode PEM block from private key")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// PKCS8 fallback: the host documents PKCS1 but common key
		// generation tools produce PKCS8.
		keyInterface, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, fmt.Errorf("forge: parsing private key: %w (also tried PKCS8: %v)", err, pkcs8Err)
		}
		var ok bool
		privateKey, ok = keyInterface.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("forge: private key is not RSA")
		}
	}

	return &appAuth{
		appID:          appID,
		installationID: installationID,
		privateKey:     privateKey,
		clock:          clock,
	}, nil
}

func (auth *appAuth) AuthorizationHeader(ctx context.Context) (string, error) {
	auth.mu.Lock()
	defer auth.mu.Unlock()

	if auth.token != "" && auth.clock.Now().Before(auth.expiresAt.Add(-tokenRotationMargin)) {
		return "Bearer " + auth.token, nil
	}

	token, expiresAt, err := auth.rotate(ctx)
	if err != nil {
		return "", err
	}
	auth.token = token
	auth.expiresAt = expiresAt
	return "Bearer " + token, nil
}

// rotate signs a fresh JWT and exchanges it for an installation token.
// Must be called with auth.mu held.
func (auth *appAuth) rotate(ctx context.Context) (string, time.Time, error) {
	jwt, err := auth.signJWT()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("forge: signing JWT: %w", err)
	}

	url := auth.baseURL + "/app/installations/" + strconv.FormatInt(auth.installationID, 10) + "/access_tokens"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("forge: creating token exchange request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+jwt)
	request.Header.Set("Accept", "application/vnd.github+json")

	response, err := auth.httpClient.Do(request)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("forge: token exchange request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
		return "", time.Time{}, fmt.Errorf("forge: token exchange returned HTTP %d: %s", response.StatusCode, body)
	}

	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return "", time.Time{}, fmt.Errorf("forge: decoding token exchange response: %w", err)
	}
	if result.Token == "" {
		return "", time.Time{}, fmt.Errorf("forge: token exchange returned empty token")
	}
	return result.Token, result.ExpiresAt, nil
}

// signJWT creates the RS256-signed App JWT: 10-minute expiry, issued
// 60 seconds in the past for clock skew. Stdlib crypto is sufficient
// for this one constrained shape — no JWT library needed.
func (auth *appAuth) signJWT() (string, error) {
	now := auth.clock.Now()

	header := base64URLEncode([]byte(`{"alg":"RS256","typ":"JWT"}`))

	claims := struct {
		IssuedAt  int64  `json:"iat"`
		ExpiresAt int64  `json:"exp"`
		Issuer    string `json:"iss"`
	}{
		IssuedAt:  now.Add(-60 * time.Second).Unix(),
		ExpiresAt: now.Add(10 * time.Minute).Unix(),
		Issuer:    strconv.FormatInt(auth.appID, 10),
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshaling claims: %w", err)
	}
	payload := base64URLEncode(claimsJSON)

	signingInput := header + "." + payload
	hash := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, auth.privateKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	return signingInput + "." + base64URLEncode(signature), nil
}

// base64URLEncode encodes data as base64url without padding, per RFC
// 7515.
func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
