package runner

import (
	"context"
	"io"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultOutputTail is how many trailing output bytes a failed task logs.
const DefaultOutputTail = 500

// Job identifies one engine invocation.
type Job struct {
	File        string
	Client      string
	Environment string
}

// Executor runs a single job to completion. Output is written to w.
// A non-zero exit code with a nil error is an ordinary test failure.
type Executor interface {
	Execute(ctx context.Context, job Job, w io.Writer) (exitCode int, err error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job Job, w io.Writer) (int, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, job Job, w io.Writer) (int, error) {
	return f(ctx, job, w)
}

// Observer is notified of task transitions. Calls happen on the scheduler
// goroutine, one at a time, so implementations must not block for long.
type Observer interface {
	TaskStarted(t Task)
	TaskFinished(t Task)
}

// Options configure the Runner.
type Options struct {
	Files       []string      // test files, in start order
	Concurrency int           // maximum tasks running at once (default runtime.NumCPU())
	Executor    Executor      // required
	Client      string        // passed to every job
	Environment string        // passed to every job
	TaskTimeout time.Duration // per-task limit (0 means none)
	StartRate   float64       // task starts per second (0 means unlimited)
	OutputTail  int           // bytes of output kept per task (default 500)

	Logger    *zap.Logger
	Tracer    trace.Tracer
	Observers []Observer

	LimiterFactory func(perSecond float64) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.NumCPU()
	}
	if o.TaskTimeout < 0 {
		o.TaskTimeout = 0
	}
	if o.StartRate < 0 {
		o.StartRate = 0
	}
	if o.OutputTail <= 0 {
		o.OutputTail = DefaultOutputTail
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(perSecond float64) *rate.Limiter {
			if perSecond <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}
