// Package record defines the persisted summary of one test run.
package record

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/perfsuite/internal/metrics"
	"github.com/torosent/perfsuite/internal/stats"
)

// TestInfo describes the run itself.
type TestInfo struct {
	Name       string    `json:"name" yaml:"name"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	DurationMs float64   `json:"durationMs" yaml:"durationMs"`
	MaxVUs     int       `json:"maxVUs" yaml:"maxVUs"`
	Iterations int       `json:"iterations" yaml:"iterations"`
}

// ThresholdOutcome is the stored result of one threshold expression.
type ThresholdOutcome struct {
	Expression string  `json:"expression" yaml:"expression"`
	Actual     float64 `json:"actual" yaml:"actual"`
	Pass       bool    `json:"pass" yaml:"pass"`
}

// Grouped is group -> endpoint -> metric -> snapshot.
type Grouped map[string]map[string]map[string]stats.Snapshot

// RunRecord is created once when a run is summarized and never changed after
// it has been saved.
type RunRecord struct {
	RunID          string                         `json:"runId" yaml:"runId"`
	Timestamp      time.Time                      `json:"timestamp" yaml:"timestamp"`
	Client         string                         `json:"client" yaml:"client"`
	TestName       string                         `json:"testName" yaml:"testName"`
	Environment    string                         `json:"environment,omitempty" yaml:"environment,omitempty"`
	TestInfo       TestInfo                       `json:"testInfo" yaml:"testInfo"`
	Summary        metrics.CheckSummary           `json:"summary" yaml:"summary"`
	Checks         map[string]metrics.CheckCounts `json:"checks" yaml:"checks"`
	Metrics        map[string]stats.Snapshot      `json:"metrics" yaml:"metrics"`
	GroupedMetrics Grouped                        `json:"groupedMetrics" yaml:"groupedMetrics"`
	Thresholds     []ThresholdOutcome             `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// Meta carries the identity of a run that is not part of the sample stream.
type Meta struct {
	Client      string
	TestName    string
	Environment string
	Now         time.Time // defaults to time.Now()
	RunID       string    // defaults to a fresh ULID
}

// Build freezes the aggregator state into a RunRecord.
func Build(agg *metrics.Aggregator, meta Meta) RunRecord {
	now := meta.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	runID := meta.RunID
	if runID == "" {
		runID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	}

	snapshots := agg.SnapshotAll()
	rec := RunRecord{
		RunID:          runID,
		Timestamp:      now,
		Client:         meta.Client,
		TestName:       meta.TestName,
		Environment:    meta.Environment,
		Summary:        agg.CheckSummary(),
		Checks:         agg.Checks(),
		Metrics:        snapshots,
		GroupedMetrics: agg.SnapshotGrouped(),
	}

	info := TestInfo{Name: meta.TestName, Timestamp: now}
	if first, last := agg.TimeSpan(); !first.IsZero() {
		info.Timestamp = first.UTC()
		info.DurationMs = float64(last.Sub(first)) / float64(time.Millisecond)
	}
	if s, ok := snapshots[metrics.IterationsMetric]; ok {
		info.Iterations = s.Count
	}
	if s, ok := snapshots[metrics.VUsMaxMetric]; ok {
		info.MaxVUs = int(s.Max)
	} else if s, ok := snapshots[metrics.VUsMetric]; ok {
		info.MaxVUs = int(s.Max)
	}
	rec.TestInfo = info

	return rec
}

// Throughput returns requests per second, or false when it cannot be derived.
func (r RunRecord) Throughput() (float64, bool) {
	reqs, ok := r.Metrics[metrics.RequestsMetric]
	if !ok || r.TestInfo.DurationMs <= 0 {
		return 0, false
	}
	return float64(reqs.Count) / (r.TestInfo.DurationMs / 1000), true
}

// ErrorRate returns the failed-request percentage, or false without data.
func (r RunRecord) ErrorRate() (float64, bool) {
	failed, ok := r.Metrics[metrics.FailedMetric]
	if !ok {
		return 0, false
	}
	return failed.Avg * 100, true
}

// CheckPassRate returns the check pass percentage, or false when no checks ran.
func (r RunRecord) CheckPassRate() (float64, bool) {
	if r.Summary.Total == 0 {
		return 0, false
	}
	return r.Summary.PassRate() * 100, true
}

// Encode writes the record as indented JSON.
func Encode(w io.Writer, rec RunRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// Decode reads a record written by Encode.
func Decode(r io.Reader) (RunRecord, error) {
	var rec RunRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return RunRecord{}, fmt.Errorf("decode run record: %w", err)
	}
	if rec.Metrics == nil {
		rec.Metrics = map[string]stats.Snapshot{}
	}
	return rec, nil
}
