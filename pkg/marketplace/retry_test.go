package marketplace

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	var sleeps []time.Duration
	policy := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       func(d time.Duration) { sleeps = append(sleeps, d) },
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// Linear backoff: base×1 after the first failure, base×2 after the second.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)
}

func TestRetryStopsOnNonRetryableStatus(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Sleep:       func(time.Duration) { t.Fatal("must not sleep after a non-retryable error") },
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return &APIError{StatusCode: http.StatusUnauthorized}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestRetryJoinsAttemptErrors(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 0, Sleep: func(time.Duration) {}}

	first := errors.New("first failure")
	second := errors.New("second failure")
	third := errors.New("third failure")
	failures := []error{first, second, third}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		defer func() { calls++ }()
		return failures[calls]
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// Every attempt's error must survive in the chain.
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.ErrorIs(t, err, third)
	assert.Contains(t, err.Error(), "attempt 1")
	assert.Contains(t, err.Error(), "attempt 3")
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	policy := RetryPolicy{}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain network error", errors.New("connection reset"), true},
		{"server error", &APIError{StatusCode: http.StatusInternalServerError}, true},
		{"rate limited", &APIError{StatusCode: http.StatusTooManyRequests}, true},
		{"bad request", &APIError{StatusCode: http.StatusBadRequest}, false},
		{"unauthorized", &APIError{StatusCode: http.StatusUnauthorized}, false},
		{"forbidden", &APIError{StatusCode: http.StatusForbidden}, false},
		{"auth expired", ErrAuthExpired, false},
		{"not authenticated", ErrNotAuthenticated, false},
		{"config error", &ConfigError{Kind: "rakuten", Reason: "missing key"}, false},
		{"context canceled", context.Canceled, false},
		{"parse error", &ParseError{Source: "x", Err: errors.New("bad json")}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}
