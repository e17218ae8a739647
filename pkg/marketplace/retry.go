package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// RetryPolicy describes how individual HTTP calls are retried: up to
// MaxAttempts tries with a linear delay of BaseDelay × attempt number between
// them. Sleep is injectable for deterministic tests; nil means time.Sleep.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(time.Duration)
}

// DefaultRetryPolicy mirrors the marketplace API guidance of three attempts
// with a one second base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay}
}

// Do executes fn until it succeeds, a non-retryable error occurs, or the
// attempt budget is exhausted. Every attempt's error is preserved in the
// returned error chain so diagnostics from earlier attempts survive;
// errors.Is/As still match each underlying error.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var attemptErrs []error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		attemptErrs = append(attemptErrs, fmt.Errorf("attempt %d: %w", attempt, err))

		if !IsRetryable(err) || attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			attemptErrs = append(attemptErrs, ctx.Err())
			break
		}
		sleep(p.BaseDelay * time.Duration(attempt))
	}

	if len(attemptErrs) == 1 {
		return attemptErrs[0]
	}
	return errors.Join(attemptErrs...)
}
