package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torosent/perfsuite/internal/config"
	"github.com/torosent/perfsuite/internal/dashboard"
	"github.com/torosent/perfsuite/internal/output"
	"github.com/torosent/perfsuite/internal/runner"
	"github.com/torosent/perfsuite/internal/telemetry"
)

const (
	spawnRetryDelay = 500 * time.Millisecond
	pushTimeout     = 10 * time.Second
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every matching test file through the load engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return a.runTests(cmd.Context())
		},
	}
	config.RegisterRunFlags(cmd.Flags())
	return cmd
}

func (a *app) runTests(parent context.Context) error {
	cfg := a.cfg.Run

	files, err := runner.Discover(cfg.Patterns...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no test files match %v", cfg.Patterns)
	}

	var executor runner.Executor = &runner.ExecExecutor{
		Binary:     cfg.Binary,
		Args:       cfg.Args,
		ResultsDir: cfg.ResultsDir,
		Env:        config.EnvList(cfg.Env),
		Propagate:  a.tracing.ShouldPropagate(),
	}
	if cfg.SpawnRetries > 0 {
		executor = runner.WithRetry(executor, runner.RetryPolicy{
			MaxAttempts: cfg.SpawnRetries + 1,
			Delay:       spawnRetryDelay,
		})
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector := telemetry.NewCollector()
	observers := []runner.Observer{collector}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(dashboard.RunConfig{
			Client:      a.cfg.Client,
			Environment: a.cfg.Environment,
			Files:       len(files),
			Concurrency: cfg.Concurrency,
			StartRate:   cfg.StartRate,
			TaskTimeout: cfg.TaskTimeout,
			Binary:      cfg.Binary,
			ConfigFile:  a.cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
		observers = append(observers, dash)
	}

	logger := a.logger
	if dash != nil {
		// The dashboard owns the terminal while it runs.
		logger = zap.NewNop()
	}
	result := a.orchestrate(ctx, logger, files, executor, observers)
	// The terminal must be restored before the summary is printed.
	if dash != nil {
		dash.Stop()
	}
	return a.finishRun(collector, result)
}

func (a *app) orchestrate(ctx context.Context, logger *zap.Logger, files []string, executor runner.Executor, observers []runner.Observer) runner.Result {
	cfg := a.cfg.Run
	logger.Info("run starting",
		zap.Int("files", len(files)),
		zap.Int("concurrency", cfg.Concurrency),
		zap.String("client", a.cfg.Client),
		zap.String("env", a.cfg.Environment),
	)

	r := runner.New(runner.Options{
		Files:       files,
		Concurrency: cfg.Concurrency,
		Executor:    executor,
		Client:      a.cfg.Client,
		Environment: a.cfg.Environment,
		TaskTimeout: cfg.TaskTimeout,
		StartRate:   cfg.StartRate,
		OutputTail:  cfg.OutputTail,
		Logger:      logger,
		Tracer:      a.tracing.Tracer(),
		Observers:   observers,
	})
	return r.Run(ctx)
}

func (a *app) finishRun(collector *telemetry.Collector, result runner.Result) error {
	if url := a.cfg.Metrics.PushURL; url != "" {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := collector.Push(ctx, url, a.cfg.Metrics.Job, map[string]string{
			"client":      a.cfg.Client,
			"environment": a.cfg.Environment,
		})
		cancel()
		if err != nil {
			a.logger.Warn("metrics push failed", zap.Error(err))
		}
	}

	output.PrintRunResult(a.stdout, result)

	if result.ExitCode != 0 {
		return exitError{code: 1, msg: fmt.Sprintf("%d of %d test files failed", result.Failed, result.Total)}
	}
	return nil
}
