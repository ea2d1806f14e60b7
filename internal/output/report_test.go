package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/perfsuite/internal/compare"
	"github.com/torosent/perfsuite/internal/metrics"
	"github.com/torosent/perfsuite/internal/record"
	"github.com/torosent/perfsuite/internal/stats"
	"github.com/torosent/perfsuite/internal/threshold"
)

func sampleRecord() record.RunRecord {
	return record.RunRecord{
		RunID:    "01HZYRUN",
		Client:   "web",
		TestName: "checkout",
		TestInfo: record.TestInfo{
			Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			DurationMs: 10000,
			Iterations: 50,
			MaxVUs:     10,
		},
		Summary: metrics.CheckSummary{Total: 4, Passed: 3, Failed: 1},
		Checks: map[string]metrics.CheckCounts{
			"status is 200": {Passed: 3, Failed: 1},
		},
		Metrics: map[string]stats.Snapshot{
			metrics.DurationMetric: {Min: 10, Max: 90, Avg: 42.5, Median: 40, P90: 80, P95: 85, P99: 89, Count: 100},
			metrics.RequestsMetric: {Count: 100},
		},
		GroupedMetrics: record.Grouped{
			"": {"GET /cart": {metrics.DurationMetric: {Avg: 42.5, P95: 85, Max: 90, Count: 100}}},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"TEXT", FormatText, false},
		{"json", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"html", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintRecord(t *testing.T) {
	var buf bytes.Buffer
	PrintRecord(&buf, sampleRecord())
	out := buf.String()

	for _, want := range []string{
		"--- Run Summary ---",
		"Run ID:            01HZYRUN",
		"Requests/sec:      10.00",
		"Avg:             42.50",
		"Passed:          3/4 (75.00%)",
		"✗ status is 200: passed=3 failed=1",
		"(no group)",
		"- GET /cart: count=100",
		"http_reqs: count=100",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintRecord() missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Environment:") {
		t.Error("empty environment should be omitted")
	}
}

func TestPrintThresholds(t *testing.T) {
	ths, err := threshold.ParseMultiple([]string{"http_req_duration:p95 < 100", "http_req_duration:max < 50"})
	if err != nil {
		t.Fatal(err)
	}
	results := threshold.NewEvaluator(ths).Evaluate(sampleRecord())

	var buf bytes.Buffer
	PrintThresholds(&buf, results)
	out := buf.String()
	if !strings.Contains(out, "✓ http_req_duration:p95 < 100") {
		t.Errorf("missing passing threshold in:\n%s", out)
	}
	if !strings.Contains(out, "✗ http_req_duration:max < 50") {
		t.Errorf("missing failing threshold in:\n%s", out)
	}
	if !strings.Contains(out, "Some thresholds failed") {
		t.Errorf("missing overall outcome in:\n%s", out)
	}

	buf.Reset()
	PrintThresholds(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("PrintThresholds(nil) wrote %q", buf.String())
	}
}

func sampleReport() compare.Report {
	return compare.Report{
		Client:        "web",
		TestName:      "checkout",
		CurrentRunID:  "cur",
		BaselineRunID: "base",
		Baselines:     2,
		Results: []compare.Result{
			{Metric: "response_time_avg", Label: "Avg Response Time", Baseline: 312.5, Current: 245.3, PercentChange: -21.5, Classification: compare.Improvement, LowerIsBetter: true},
			{Metric: "throughput", Label: "Throughput", Baseline: 100, Current: 70, PercentChange: -30, Classification: compare.Degradation, Critical: true},
		},
		Trends: []compare.Trend{
			{Metric: "throughput", Label: "Throughput", Direction: compare.TrendDegrading, Points: 3, PercentChange: -25},
			{Metric: "iterations", Label: "Iterations", Direction: compare.TrendInsufficientData, Points: 1},
		},
		Degraded: true,
	}
}

func TestPrintComparison(t *testing.T) {
	var buf bytes.Buffer
	PrintComparison(&buf, sampleReport())
	out := buf.String()
	for _, want := range []string{
		"Baseline run:      base (2 baselines)",
		"↑ Avg Response Time",
		"-21.50%",
		"degradation (critical)",
		"insufficient data",
		"critical degradation detected",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintComparison() missing %q in:\n%s", want, out)
		}
	}
}

func TestPrintComparisonNote(t *testing.T) {
	var buf bytes.Buffer
	PrintComparison(&buf, compare.Report{CurrentRunID: "cur", Note: "no baseline runs available"})
	out := buf.String()
	if !strings.Contains(out, "no baseline runs available") {
		t.Errorf("missing note in:\n%s", out)
	}
	if strings.Contains(out, "Metrics:") {
		t.Errorf("note-only report should not list metrics:\n%s", out)
	}
}

func TestWriteComparisonFormats(t *testing.T) {
	report := sampleReport()

	var jsonBuf bytes.Buffer
	if err := WriteComparison(&jsonBuf, report, FormatJSON); err != nil {
		t.Fatalf("WriteComparison(json) error = %v", err)
	}
	var decoded compare.Report
	if err := json.Unmarshal(jsonBuf.Bytes(), &decoded); err != nil {
		t.Fatalf("json output invalid: %v", err)
	}
	if !decoded.Degraded || len(decoded.Results) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}

	var yamlBuf bytes.Buffer
	if err := WriteComparison(&yamlBuf, report, FormatYAML); err != nil {
		t.Fatalf("WriteComparison(yaml) error = %v", err)
	}
	var generic map[string]interface{}
	if err := yaml.Unmarshal(yamlBuf.Bytes(), &generic); err != nil {
		t.Fatalf("yaml output invalid: %v", err)
	}
	if generic["currentRunId"] != "cur" {
		t.Errorf("yaml currentRunId = %v", generic["currentRunId"])
	}

	var textBuf bytes.Buffer
	if err := WriteComparison(&textBuf, report, FormatText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(textBuf.String(), "--- Comparison ---") {
		t.Errorf("text output = %q", textBuf.String())
	}
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	PrintHistory(&buf, "web", "checkout", []string{"a.json", "b.json"})
	if !strings.Contains(buf.String(), "History for web/checkout:") || !strings.Contains(buf.String(), "  b.json") {
		t.Errorf("PrintHistory() = %q", buf.String())
	}
	buf.Reset()
	PrintHistory(&buf, "", "", nil)
	if !strings.Contains(buf.String(), "None") {
		t.Errorf("PrintHistory(empty) = %q", buf.String())
	}
}

func TestNum(t *testing.T) {
	tests := map[float64]string{0: "0", 100: "100", 10.5: "10.5", 1.234: "1.23"}
	for in, want := range tests {
		if got := num(in); got != want {
			t.Errorf("num(%v) = %q, want %q", in, got, want)
		}
	}
}
