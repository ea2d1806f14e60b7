package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torosent/perfsuite/internal/config"
	"github.com/torosent/perfsuite/internal/history"
	"github.com/torosent/perfsuite/internal/logging"
	"github.com/torosent/perfsuite/internal/tracing"
)

// exitError ends the process with code after printing msg, if any.
type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.msg
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			if exit.msg != "" {
				fmt.Fprintf(os.Stderr, "Error: %s\n", exit.msg)
			}
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	root := newRootCommand(os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	return nil
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "perfsuite",
		Short:         "Orchestrate load-engine runs, summarize results and compare them against history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	config.RegisterGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCommand(),
		newSummarizeCommand(),
		newCompareCommand(),
		newHistoryCommand(),
	)
	return root
}

// app is the state shared by every subcommand once config is loaded.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	tracing *tracing.Provider
	stdout  io.Writer
	stderr  io.Writer
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.NewLoader().Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	provider, err := tracing.Init(cmd.Context(), cfg.Tracing, tracing.SuiteAttributes(cfg.Client, cfg.Environment)...)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if cfg.ConfigFile != "" {
		logger.Debug("config loaded", zap.String("path", cfg.ConfigFile))
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		tracing: provider,
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
	}, nil
}

func (a *app) close() {
	ctx := context.Background()
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.Warn("tracing shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// store opens the configured history backend.
func (a *app) store(ctx context.Context) (history.Store, error) {
	h := a.cfg.History
	switch h.Backend {
	case config.HistoryBackendS3:
		return history.NewS3Store(ctx, history.S3Options{
			Bucket:   h.S3.Bucket,
			Prefix:   h.S3.Prefix,
			Region:   h.S3.Region,
			Endpoint: h.S3.Endpoint,
		})
	default:
		return history.NewFSStore(h.Dir), nil
	}
}
