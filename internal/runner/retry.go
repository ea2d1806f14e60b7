package runner

import (
	"context"
	"errors"
	"io"
	"time"
)

// RetryPolicy configures retry behavior for an Executor.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, only spawn errors retry
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// IsSpawnError reports whether err is, or wraps, a *SpawnError.
func IsSpawnError(err error) bool {
	var se *SpawnError
	return errors.As(err, &se)
}

// retryExecutor wraps an Executor with retry logic.
type retryExecutor struct {
	inner  Executor
	policy RetryPolicy
}

// WithRetry wraps an Executor so failures matching the policy are retried.
// Test failures (non-zero exit, nil error) are never retried.
func WithRetry(ex Executor, policy RetryPolicy) Executor {
	if policy.MaxAttempts <= 1 {
		return ex // no retries needed
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = IsSpawnError
	}
	return &retryExecutor{
		inner:  ex,
		policy: policy,
	}
}

func (r *retryExecutor) Execute(ctx context.Context, job Job, w io.Writer) (int, error) {
	var (
		code    int
		lastErr error
	)
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}

		code, lastErr = r.inner.Execute(ctx, job, w)
		if lastErr == nil {
			return code, nil
		}

		// Don't delay after the last attempt.
		if attempt < r.policy.MaxAttempts {
			if !r.policy.ShouldRetry(lastErr) {
				return code, lastErr
			}
			var delay time.Duration
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(attempt, lastErr)
			} else {
				delay = r.policy.Delay
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return -1, ctx.Err()
				}
			}
		}
	}
	return code, lastErr
}
