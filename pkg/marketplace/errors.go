package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthExpired indicates the refresh token was rejected; the caller
	// must redo the authorization-code exchange before this connection can
	// fetch again.
	ErrAuthExpired = errors.New("marketplace: authorization expired, re-authentication required")
	// ErrNotAuthenticated indicates no token has been obtained yet.
	ErrNotAuthenticated = errors.New("marketplace: not authenticated")
)

// ConfigError reports missing or invalid credentials at connection
// construction time. It is fatal: the configuration must be fixed before
// retrying.
type ConfigError struct {
	Kind   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("marketplace %s: %s", e.Kind, e.Reason)
}

// APIError is a non-2xx marketplace response. Statuses 400, 401 and 403 are
// never retried; everything else is treated as transient.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("marketplace: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("marketplace: http status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the error is worth another attempt.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return false
	}
	return true
}

// ParseError reports a malformed payload. Individual records or pages that
// fail to parse are skipped and logged, never aborting the batch.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("marketplace %s: parse: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsRetryable classifies an error for the retry policy. Network errors, 5xx
// responses and malformed responses are retryable; 400/401/403, expired
// authorization and context cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrNotAuthenticated) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}
	return true
}
