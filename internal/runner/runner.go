package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/torosent/perfsuite/internal/tracing"
)

// Result captures the orchestration summary.
type Result struct {
	Tasks    []Task // completion order
	Total    int
	Passed   int
	Failed   int
	Duration time.Duration
	ExitCode int // 0 iff every task passed
}

// Runner executes test files with bounded concurrency.
type Runner struct {
	opt     Options
	limiter interface{ Wait(context.Context) error }
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, limiter: opt.LimiterFactory(opt.StartRate)}
}

type taskExit struct {
	index    int
	exitCode int
	err      error
	output   string
	started  time.Time
	finished time.Time
}

// Run blocks until every file has reached a terminal state.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	log := r.opt.Logger

	tasks := make([]Task, len(r.opt.Files))
	for i, f := range r.opt.Files {
		tasks[i] = Task{File: f, State: StatePending}
	}

	if r.opt.Executor == nil {
		err := errors.New("runner: no executor configured")
		for i := range tasks {
			tasks[i].State = StateFailed
			tasks[i].Err = err
		}
		return r.finalize(tasks, start)
	}

	// Scheduler: this goroutine alone owns next, running and tasks.
	done := make(chan taskExit)
	completed := make([]Task, 0, len(tasks))
	next, running := 0, 0

	for {
		for running < r.opt.Concurrency && next < len(tasks) {
			if err := ctx.Err(); err != nil {
				break
			}
			i := next
			next++
			running++
			tasks[i].State = StateRunning
			tasks[i].Started = time.Now()
			log.Info("task started", zap.String("file", tasks[i].File), zap.Int("running", running))
			r.notifyStarted(tasks[i])
			go r.execute(ctx, i, tasks[i].File, done)
		}

		if running == 0 {
			break
		}

		exit := <-done
		running--
		t := &tasks[exit.index]
		t.Started = exit.started
		t.Finished = exit.finished
		t.ExitCode = exit.exitCode
		t.Err = exit.err
		t.Output = exit.output
		if exit.exitCode == 0 && exit.err == nil {
			t.State = StatePassed
			log.Info("task passed", zap.String("file", t.File), zap.Duration("duration", t.Duration()))
		} else {
			t.State = StateFailed
			log.Error("task failed",
				zap.String("file", t.File),
				zap.Int("exit_code", t.ExitCode),
				zap.Error(t.Err),
				zap.Duration("duration", t.Duration()),
				zap.String("output", t.Output),
			)
		}
		completed = append(completed, *t)
		r.notifyFinished(*t)
	}

	// Anything still pending was never started because ctx ended.
	for i := next; i < len(tasks); i++ {
		tasks[i].State = StateFailed
		tasks[i].Err = fmt.Errorf("not started: %w", ctx.Err())
		tasks[i].ExitCode = -1
		completed = append(completed, tasks[i])
		r.notifyFinished(tasks[i])
	}

	return r.finalize(completed, start)
}

func (r *Runner) execute(ctx context.Context, index int, file string, done chan<- taskExit) {
	exit := taskExit{index: index}
	defer func() {
		exit.finished = time.Now()
		done <- exit
	}()

	if err := r.limiter.Wait(ctx); err != nil {
		exit.started = time.Now()
		exit.exitCode = -1
		exit.err = fmt.Errorf("waiting to start: %w", err)
		return
	}
	exit.started = time.Now()

	taskCtx := ctx
	if r.opt.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, r.opt.TaskTimeout)
		defer cancel()
	}

	taskCtx, span := tracing.StartTaskSpan(taskCtx, r.opt.Tracer, file)
	out := newTailBuffer(r.opt.OutputTail)
	job := Job{File: file, Client: r.opt.Client, Environment: r.opt.Environment}

	code, err := r.opt.Executor.Execute(taskCtx, job, out)
	if r.opt.TaskTimeout > 0 && errors.Is(taskCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("timed out after %s: %w", r.opt.TaskTimeout, context.DeadlineExceeded)
	}
	if err != nil && code == 0 {
		code = -1
	}

	spanErr := err
	if spanErr == nil && code != 0 {
		spanErr = fmt.Errorf("exit code %d", code)
	}
	tracing.EndSpan(span, spanErr, attribute.Int("process.exit_code", code))

	exit.exitCode = code
	exit.err = err
	exit.output = out.String()
}

func (r *Runner) finalize(tasks []Task, start time.Time) Result {
	res := Result{Tasks: tasks, Total: len(tasks), Duration: time.Since(start)}
	for _, t := range tasks {
		if t.State == StatePassed {
			res.Passed++
		} else {
			res.Failed++
		}
	}
	if res.Failed > 0 {
		res.ExitCode = 1
	}
	r.opt.Logger.Info("run finished",
		zap.Int("total", res.Total),
		zap.Int("passed", res.Passed),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (r *Runner) notifyStarted(t Task) {
	for _, o := range r.opt.Observers {
		o.TaskStarted(t)
	}
}

func (r *Runner) notifyFinished(t Task) {
	for _, o := range r.opt.Observers {
		o.TaskFinished(t)
	}
}
