// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError represents a non-2xx response from the host's REST API.
// The host returns structured JSON error bodies with a message and
// optional field-level validation errors.
type APIError struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Message is the top-level error description.
	Message string

	// Errors contains field-level validation failures, present on 422
	// responses.
	Errors []ValidationError
}

// ValidationError describes a validation failure on a resource field.
type ValidationError struct {
	Resource string `json:"resource"`
	Code     string `json:"code"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (err *APIError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "forge: HTTP %d: %s", err.StatusCode, err.Message)
	for _, validationError := range err.Errors {
		detail := validationError.Message
		if detail == "" {
			detail = validationError.Code
		}
		fmt.Fprintf(&builder, "; %s.%s: %s", validationError.Resource, validationError.Field, detail)
	}
	return builder.String()
}

// IsNotFound reports whether err is a 404 response. The publish
// workflow's no-op guard reads "release not found" as "not yet
// published".
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 404
}

// IsRateLimited reports whether err is a rate limit response: 429 for
// secondary limits, 403 with a recognizable message for primary.
func IsRateLimited(err error) bool {
	var apiError *APIError
	if !errors.As(err, &apiError) {
		return false
	}
	return apiError.StatusCode == 429 ||
		(apiError.StatusCode == 403 && isRateLimitMessage(apiError.Message))
}

// IsValidationFailed reports whether err is a 422 response. Creating a
// pull request whose head branch already has one fails this way.
func IsValidationFailed(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 422
}

// isRateLimitMessage distinguishes a rate-limit 403 from a permission
// 403 by the phrases the host uses.
func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "abuse detection")
}

// parseAPIError builds an *APIError from a status code and response
// body, falling back to the raw body when it isn't the structured
// error shape.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Message string            `json:"message"`
		Errors  []ValidationError `json:"errors"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Message = wireError.Message
		apiError.Errors = wireError.Errors
	} else {
		apiError.Message = string(body)
	}
	return apiError
}
