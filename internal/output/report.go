package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/perfsuite/internal/compare"
	"github.com/torosent/perfsuite/internal/metrics"
	"github.com/torosent/perfsuite/internal/record"
	"github.com/torosent/perfsuite/internal/stats"
	"github.com/torosent/perfsuite/internal/threshold"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml in any case. An empty value is text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// PrintRecord outputs a human-readable summary of one run.
func PrintRecord(w io.Writer, rec record.RunRecord) {
	fmt.Fprintln(w, "\n--- Run Summary ---")
	fmt.Fprintf(w, "Run ID:            %s\n", rec.RunID)
	fmt.Fprintf(w, "Client:            %s\n", orDash(rec.Client))
	fmt.Fprintf(w, "Test:              %s\n", orDash(rec.TestName))
	if rec.Environment != "" {
		fmt.Fprintf(w, "Environment:       %s\n", rec.Environment)
	}
	fmt.Fprintf(w, "Started:           %s\n", rec.TestInfo.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:          %s\n", time.Duration(rec.TestInfo.DurationMs*float64(time.Millisecond)).Round(time.Millisecond))
	fmt.Fprintf(w, "Iterations:        %d\n", rec.TestInfo.Iterations)
	fmt.Fprintf(w, "Max VUs:           %d\n", rec.TestInfo.MaxVUs)
	if rps, ok := rec.Throughput(); ok {
		fmt.Fprintf(w, "Requests/sec:      %.2f\n", rps)
	}
	if er, ok := rec.ErrorRate(); ok {
		fmt.Fprintf(w, "Error rate:        %.2f%%\n", er)
	}

	if d, ok := rec.Metrics[metrics.DurationMetric]; ok {
		fmt.Fprintln(w, "\nResponse Time (ms):")
		writeSnapshot(w, d, "  ")
	}

	if rec.Summary.Total > 0 {
		fmt.Fprintln(w, "\nChecks:")
		fmt.Fprintf(w, "  Passed:          %d/%d (%.2f%%)\n", rec.Summary.Passed, rec.Summary.Total, rec.Summary.PassRate()*100)
		for _, row := range metrics.FlattenChecks(rec.Checks) {
			mark := "✓"
			if row.Failed > 0 {
				mark = "✗"
			}
			fmt.Fprintf(w, "  %s %s: passed=%d failed=%d\n", mark, row.Name, row.Passed, row.Failed)
		}
	}

	if len(rec.GroupedMetrics) > 0 {
		fmt.Fprintln(w, "\nEndpoint Breakdown:")
		for _, group := range sortedKeys(rec.GroupedMetrics) {
			fmt.Fprintf(w, "  %s\n", groupLabel(group))
			endpoints := rec.GroupedMetrics[group]
			for _, name := range sortedKeys(endpoints) {
				d, ok := endpoints[name][metrics.DurationMetric]
				if !ok {
					continue
				}
				fmt.Fprintf(w, "    - %s: count=%d, avg=%.2fms, p95=%.2fms, max=%.2fms\n",
					name, d.Count, d.Avg, d.P95, d.Max)
			}
		}
	}

	if len(rec.Metrics) > 0 {
		fmt.Fprintln(w, "\nMetrics:")
		for _, name := range sortedKeys(rec.Metrics) {
			s := rec.Metrics[name]
			fmt.Fprintf(w, "  %s: count=%d, avg=%s, min=%s, max=%s, p95=%s\n",
				name, s.Count, num(s.Avg), num(s.Min), num(s.Max), num(s.P95))
		}
	}
}

// PrintThresholds lists each threshold result and the overall outcome.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
	if threshold.AllPassed(results) {
		fmt.Fprintln(w, "  All thresholds passed")
	} else {
		fmt.Fprintln(w, "  Some thresholds failed")
	}
}

// PrintJSON outputs v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintYAML outputs v as YAML.
func PrintYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// WriteComparison renders a comparison report in the given format.
func WriteComparison(w io.Writer, report compare.Report, format Format) error {
	switch format {
	case FormatJSON:
		return PrintJSON(w, report)
	case FormatYAML:
		return PrintYAML(w, report)
	default:
		PrintComparison(w, report)
		return nil
	}
}

// PrintComparison outputs a human-readable comparison report.
func PrintComparison(w io.Writer, report compare.Report) {
	fmt.Fprintln(w, "\n--- Comparison ---")
	fmt.Fprintf(w, "Client:            %s\n", orDash(report.Client))
	fmt.Fprintf(w, "Test:              %s\n", orDash(report.TestName))
	fmt.Fprintf(w, "Current run:       %s\n", report.CurrentRunID)
	if report.Note != "" {
		fmt.Fprintf(w, "\n%s\n", report.Note)
		return
	}
	fmt.Fprintf(w, "Baseline run:      %s (%d baselines)\n", report.BaselineRunID, report.Baselines)

	fmt.Fprintln(w, "\nMetrics:")
	if len(report.Results) == 0 {
		fmt.Fprintln(w, "  None")
	}
	for _, r := range report.Results {
		fmt.Fprintf(w, "  %s %-22s %12s -> %-12s %+7.2f%%  %s\n",
			classificationMark(r), r.Label, num(r.Baseline), num(r.Current), r.PercentChange, classificationLabel(r))
	}

	if len(report.Trends) > 0 {
		fmt.Fprintln(w, "\nTrends:")
		for _, t := range report.Trends {
			if t.Direction == compare.TrendInsufficientData {
				fmt.Fprintf(w, "  %-24s %s\n", t.Label, "insufficient data")
				continue
			}
			fmt.Fprintf(w, "  %-24s %-10s %+7.2f%% over %d runs\n", t.Label, t.Direction, t.PercentChange, t.Points)
		}
	}

	writeTop(w, "Top Improvements", report.TopImprovements)
	writeTop(w, "Top Degradations", report.TopDegradations)

	if report.Degraded {
		fmt.Fprintln(w, "\nResult: critical degradation detected")
	} else {
		fmt.Fprintln(w, "\nResult: no critical degradation")
	}
}

func writeTop(w io.Writer, title string, results []compare.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for i, r := range results {
		fmt.Fprintf(w, "  %d. %s %+.2f%%\n", i+1, r.Label, r.PercentChange)
	}
}

func classificationMark(r compare.Result) string {
	switch r.Classification {
	case compare.Improvement:
		return "↑"
	case compare.Degradation:
		return "↓"
	default:
		return "="
	}
}

func classificationLabel(r compare.Result) string {
	if r.Critical {
		return string(r.Classification) + " (critical)"
	}
	return string(r.Classification)
}

// PrintHistory lists stored record names, oldest first.
func PrintHistory(w io.Writer, client, test string, names []string) {
	fmt.Fprintf(w, "History for %s/%s:\n", orDash(client), orDash(test))
	if len(names) == 0 {
		fmt.Fprintln(w, "  None")
		return
	}
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

func writeSnapshot(w io.Writer, s stats.Snapshot, indent string) {
	fmt.Fprintf(w, "%sMin:             %.2f\n", indent, s.Min)
	fmt.Fprintf(w, "%sMax:             %.2f\n", indent, s.Max)
	fmt.Fprintf(w, "%sAvg:             %.2f\n", indent, s.Avg)
	fmt.Fprintf(w, "%sMed:             %.2f\n", indent, s.Median)
	fmt.Fprintf(w, "%sP90:             %.2f\n", indent, s.P90)
	fmt.Fprintf(w, "%sP95:             %.2f\n", indent, s.P95)
	fmt.Fprintf(w, "%sP99:             %.2f\n", indent, s.P99)
}

func groupLabel(group string) string {
	if group == "" {
		return "(no group)"
	}
	return group
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func num(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
