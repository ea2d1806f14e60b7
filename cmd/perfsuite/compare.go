package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/torosent/perfsuite/internal/compare"
	"github.com/torosent/perfsuite/internal/config"
	"github.com/torosent/perfsuite/internal/history"
	"github.com/torosent/perfsuite/internal/output"
	"github.com/torosent/perfsuite/internal/tracing"
)

func newCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the newest run record against its baselines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			explicit, _ := cmd.Flags().GetStringSlice("baselines")
			return a.compare(cmd.Context(), explicit)
		},
	}
	config.RegisterCompareFlags(cmd.Flags())
	return cmd
}

func (a *app) compare(parent context.Context, explicit []string) (err error) {
	client, test := a.cfg.Client, a.cfg.TestName
	ctx, span := tracing.StartStageSpan(parent, a.tracing.Tracer(), "compare",
		attribute.String("perfsuite.client", client),
		attribute.String("perfsuite.test", test),
	)
	defer func() { tracing.EndSpan(span, err) }()

	format, err := output.ParseFormat(a.cfg.Compare.Format)
	if err != nil {
		return err
	}

	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	names, err := store.List(ctx, client, test)
	if err != nil {
		return err
	}
	currentName, ok := history.Latest(names)
	if !ok {
		return fmt.Errorf("no run records for client %q test %q", client, test)
	}

	current, err := store.Load(ctx, client, test, currentName)
	if err != nil {
		return err
	}
	baselineNames := history.SelectBaselines(names, currentName, a.cfg.History.Depth, explicit)
	baselines, err := history.LoadAll(ctx, store, client, test, baselineNames)
	if err != nil {
		return err
	}
	a.logger.Debug("comparing",
		zap.String("current", currentName),
		zap.Strings("baselines", baselineNames),
	)

	opts := compare.DefaultOptions()
	opts.MinChange = a.cfg.Compare.MinChange
	opts.Significant = a.cfg.Compare.Significant
	opts.Critical = a.cfg.Compare.Critical
	opts.TrendBand = a.cfg.Compare.TrendBand
	report := compare.New(opts).Compare(current, baselines)

	if err := output.WriteComparison(a.stdout, report, format); err != nil {
		return err
	}

	if report.Degraded {
		return exitError{code: 1, msg: "critical performance degradation detected"}
	}
	return nil
}
