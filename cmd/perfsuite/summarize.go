package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/torosent/perfsuite/internal/config"
	"github.com/torosent/perfsuite/internal/event"
	"github.com/torosent/perfsuite/internal/influx"
	"github.com/torosent/perfsuite/internal/metrics"
	"github.com/torosent/perfsuite/internal/output"
	"github.com/torosent/perfsuite/internal/record"
	"github.com/torosent/perfsuite/internal/threshold"
	"github.com/torosent/perfsuite/internal/tracing"
)

const progressInterval = time.Second

type summarizeOptions struct {
	file     string
	noSave   bool
	progress bool
	json     bool
}

func newSummarizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <file>",
		Short: "Summarize an NDJSON results file into a run record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			flags := cmd.Flags()
			opts := summarizeOptions{file: args[0]}
			opts.noSave, _ = flags.GetBool("no-save")
			opts.progress, _ = flags.GetBool("progress")
			opts.json, _ = flags.GetBool("json")
			return a.summarize(cmd.Context(), opts)
		},
	}
	config.RegisterSummarizeFlags(cmd.Flags())
	return cmd
}

func (a *app) summarize(parent context.Context, opts summarizeOptions) (err error) {
	// Join the orchestrator's trace when it invoked us.
	ctx := tracing.ExtractEnv(parent, os.Environ())
	ctx, span := tracing.StartStageSpan(ctx, a.tracing.Tracer(), "summarize",
		attribute.String("perfsuite.file", opts.file))
	defer func() { tracing.EndSpan(span, err) }()

	thresholds, err := threshold.ParseMultiple(a.cfg.Thresholds)
	if err != nil {
		return err
	}

	agg := metrics.NewAggregator()
	if err := a.ingest(opts, agg); err != nil {
		return err
	}

	testName := a.cfg.TestName
	if testName == "" {
		testName = testNameFromFile(opts.file)
	}
	rec := record.Build(agg, record.Meta{
		Client:      a.cfg.Client,
		TestName:    testName,
		Environment: a.cfg.Environment,
	})

	results := threshold.NewEvaluator(thresholds).Evaluate(rec)
	rec.Thresholds = threshold.Outcomes(results)

	if !opts.noSave {
		store, err := a.store(ctx)
		if err != nil {
			return err
		}
		name, err := store.Save(ctx, rec)
		if err != nil {
			return err
		}
		a.logger.Info("run record saved",
			zap.String("name", name),
			zap.String("client", rec.Client),
			zap.String("test", rec.TestName),
		)
	}

	if a.cfg.Influx.Enabled() {
		a.exportInflux(ctx, rec)
	}

	if opts.json {
		if err := output.PrintJSON(a.stdout, rec); err != nil {
			return err
		}
	} else {
		output.PrintRecord(a.stdout, rec)
		output.PrintThresholds(a.stdout, results)
	}

	if !threshold.AllPassed(results) {
		return exitError{code: 1, msg: "one or more thresholds failed"}
	}
	return nil
}

func (a *app) ingest(opts summarizeOptions, agg *metrics.Aggregator) error {
	f, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	if opts.progress {
		progress := output.NewProgressReporter(agg, progressInterval, a.stderr)
		progress.Start()
		defer progress.Stop()
	}

	sc := event.NewScanner(f)
	for sc.Next() {
		ev := sc.Event()
		if u, ok := ev.(event.Unrecognized); ok {
			a.logger.Debug("skipping line", zap.Int64("line", sc.Lines()), zap.String("reason", u.Reason))
		}
		agg.Ingest(ev)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read results %s: %w", opts.file, err)
	}

	a.logger.Info("results parsed",
		zap.String("file", opts.file),
		zap.Int64("lines", sc.Lines()),
		zap.Int64("skipped", sc.Skipped()),
	)
	for _, m := range agg.Metrics() {
		a.logger.Debug("metric",
			zap.String("name", m.Name),
			zap.String("type", string(m.Type)),
			zap.String("contains", m.Contains),
			zap.Int("samples", m.Samples),
		)
	}
	return nil
}

func (a *app) exportInflux(ctx context.Context, rec record.RunRecord) {
	cfg := a.cfg.Influx
	exporter, err := influx.NewExporter(influx.Config{
		Host:        cfg.Host,
		Token:       cfg.Token,
		Database:    cfg.Database,
		Measurement: cfg.Measurement,
	})
	if err != nil {
		a.logger.Warn("influx export skipped", zap.Error(err))
		return
	}
	defer exporter.Close()

	n, err := exporter.Export(ctx, rec)
	if err != nil {
		a.logger.Warn("influx export failed", zap.Int("written", n), zap.Error(err))
		return
	}
	a.logger.Info("influx export complete", zap.Int("points", n))
}

// testNameFromFile strips the directory and extension, so
// results/web_checkout.ndjson becomes web_checkout.
func testNameFromFile(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
