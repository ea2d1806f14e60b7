package runner_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/perfsuite/internal/runner"
)

type flakySpawner struct {
	attempts  *int64
	failUntil int64
}

func (f *flakySpawner) Execute(ctx context.Context, job runner.Job, w io.Writer) (int, error) {
	attempt := atomic.AddInt64(f.attempts, 1)
	if attempt <= f.failUntil {
		return -1, &runner.SpawnError{File: job.File, Err: errors.New("text file busy")}
	}
	return 0, nil
}

// TestRetryRespectsMaxAttempts verifies retry count is honored.
func TestRetryRespectsMaxAttempts(t *testing.T) {
	var attempts int64
	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		DelayFunc: func(attempt int, err error) time.Duration {
			return time.Duration(attempt) * time.Millisecond // linear backoff for test determinism
		},
	}

	r := runner.New(runner.Options{
		Files:       []string{"a.js"},
		Concurrency: 1,
		Executor:    runner.WithRetry(&flakySpawner{attempts: &attempts, failUntil: 3}, policy),
	})
	res := r.Run(context.Background())

	if res.Passed != 1 || res.ExitCode != 0 {
		t.Errorf("expected pass, got %+v", res)
	}
	// Should succeed on 4th attempt (3 retries after initial failure).
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
}

func TestRetryExceedsMaxAttempts(t *testing.T) {
	var attempts int64
	policy := runner.RetryPolicy{
		MaxAttempts: 3,
		DelayFunc:   func(attempt int, err error) time.Duration { return time.Millisecond },
	}

	r := runner.New(runner.Options{
		Files:       []string{"a.js"},
		Concurrency: 1,
		Executor:    runner.WithRetry(&flakySpawner{attempts: &attempts, failUntil: 100}, policy),
	})
	res := r.Run(context.Background())

	if res.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", res.Failed)
	}
	if !runner.IsSpawnError(res.Tasks[0].Err) {
		t.Errorf("expected spawn error, got %v", res.Tasks[0].Err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (max), got %d", attempts)
	}
}

func TestRetryShouldRetryStopsEarly(t *testing.T) {
	var attempts int64
	ex := runner.ExecutorFunc(func(ctx context.Context, job runner.Job, w io.Writer) (int, error) {
		atomic.AddInt64(&attempts, 1)
		return -1, errors.New("permanent failure")
	})
	wrapped := runner.WithRetry(ex, runner.RetryPolicy{MaxAttempts: 5})
	if _, err := wrapped.Execute(context.Background(), runner.Job{File: "a.js"}, io.Discard); err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt got %d", attempts)
	}
}

func TestRetryNeverRetriesTestFailures(t *testing.T) {
	var attempts int64
	ex := runner.ExecutorFunc(func(ctx context.Context, job runner.Job, w io.Writer) (int, error) {
		atomic.AddInt64(&attempts, 1)
		return 99, nil
	})
	code, err := runner.WithRetry(ex, runner.RetryPolicy{MaxAttempts: 3}).Execute(context.Background(), runner.Job{}, io.Discard)
	if code != 99 || err != nil {
		t.Errorf("Execute() = %d, %v, want 99, nil", code, err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt got %d", attempts)
	}
}
