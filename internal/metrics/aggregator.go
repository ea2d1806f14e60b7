package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/perfsuite/internal/event"
	"github.com/torosent/perfsuite/internal/stats"
)

// Well-known metric names emitted by the engine.
const (
	DurationMetric   = "http_req_duration"
	RequestsMetric   = "http_reqs"
	FailedMetric     = "http_req_failed"
	ChecksMetric     = "checks"
	IterationsMetric = "iterations"
	VUsMetric        = "vus"
	VUsMaxMetric     = "vus_max"
)

const (
	groupedPrefix   = "http_req"
	excludedPrefix  = "data_"
	unknownEndpoint = "unknown"
	unknownCheck    = "unknown"
)

// Series is the ordered list of values recorded for one metric.
type Series struct {
	Name     string
	Type     event.MetricType
	Contains string
	Values   []float64
	Tags     map[string]string // tags of the first sample
}

// MetricInfo describes one known metric.
type MetricInfo struct {
	Name     string
	Type     event.MetricType
	Contains string
	Samples  int
}

// GroupKey identifies an endpoint bucket.
type GroupKey struct {
	Group    string
	Endpoint string
}

// CheckCounts holds pass/fail totals for a single check.
type CheckCounts struct {
	Passed int64 `json:"passed" yaml:"passed"`
	Failed int64 `json:"failed" yaml:"failed"`
}

// CheckSummary totals every check in a run.
type CheckSummary struct {
	Total  int64 `json:"total" yaml:"total"`
	Passed int64 `json:"passed" yaml:"passed"`
	Failed int64 `json:"failed" yaml:"failed"`
}

// PassRate returns passed/total, or 0 when no checks ran.
func (s CheckSummary) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total)
}

// LiveStats is a cheap progress view of an in-flight aggregation.
type LiveStats struct {
	Samples       int64
	Requests      int64
	Skipped       int64
	DurationP95Ms float64
}

// Aggregator accumulates samples per metric and per endpoint.
type Aggregator struct {
	mu       sync.Mutex
	series   map[string]*Series
	grouped  map[GroupKey]map[string][]float64
	checks   map[string]*CheckCounts
	live     *hdrhistogram.Histogram
	samples  int64
	requests int64
	skipped  int64
	first    time.Time
	last     time.Time
}

func NewAggregator() *Aggregator {
	// Track request durations from 1µs up to 1h with 3 significant figures.
	return &Aggregator{
		series:  make(map[string]*Series),
		grouped: make(map[GroupKey]map[string][]float64),
		checks:  make(map[string]*CheckCounts),
		live:    hdrhistogram.New(1, 3_600_000_000, 3),
	}
}

// Ingest applies one event. Unrecognized events only bump the skipped counter.
func (a *Aggregator) Ingest(ev event.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e := ev.(type) {
	case event.MetricDefinition:
		a.define(e)
	case event.Sample:
		a.record(e)
	case event.Unrecognized:
		a.skipped++
	}
}

func (a *Aggregator) define(def event.MetricDefinition) {
	typ := def.Type
	if typ == "" {
		typ = event.MetricTypeTrend
	}
	s, ok := a.series[def.Name]
	if !ok {
		s = &Series{Name: def.Name}
		a.series[def.Name] = s
	}
	s.Type = typ
	s.Contains = def.Contains
}

func (a *Aggregator) record(sample event.Sample) {
	s := a.seriesFor(sample.Metric, sample.Tags)
	s.Values = append(s.Values, sample.Value)
	a.samples++

	if !sample.Time.IsZero() {
		if a.first.IsZero() || sample.Time.Before(a.first) {
			a.first = sample.Time
		}
		if sample.Time.After(a.last) {
			a.last = sample.Time
		}
	}

	if strings.HasPrefix(sample.Metric, groupedPrefix) {
		key := groupKey(sample.Tags)
		bucket, ok := a.grouped[key]
		if !ok {
			bucket = make(map[string][]float64)
			a.grouped[key] = bucket
		}
		bucket[sample.Metric] = append(bucket[sample.Metric], sample.Value)
	}

	switch sample.Metric {
	case ChecksMetric:
		name := sample.Tags["check"]
		if name == "" {
			name = unknownCheck
		}
		counts, ok := a.checks[name]
		if !ok {
			counts = &CheckCounts{}
			a.checks[name] = counts
		}
		if sample.Value == 1 {
			counts.Passed++
		} else {
			counts.Failed++
		}
	case RequestsMetric:
		a.requests++
	case DurationMetric:
		us := int64(sample.Value * 1000)
		if us < a.live.LowestTrackableValue() {
			us = a.live.LowestTrackableValue()
		}
		if us > a.live.HighestTrackableValue() {
			us = a.live.HighestTrackableValue()
		}
		_ = a.live.RecordValue(us)
	}
}

func (a *Aggregator) seriesFor(name string, tags map[string]string) *Series {
	s, ok := a.series[name]
	if !ok {
		s = &Series{Name: name, Type: event.MetricTypeTrend}
		a.series[name] = s
	}
	if s.Tags == nil && len(tags) > 0 {
		s.Tags = copyTags(tags)
	}
	return s
}

func groupKey(tags map[string]string) GroupKey {
	endpoint := tags["name"]
	if endpoint == "" {
		endpoint = tags["url"]
	}
	if endpoint == "" {
		endpoint = unknownEndpoint
	}
	return GroupKey{Group: tags["group"], Endpoint: endpoint}
}

func copyTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// SnapshotAll summarizes every non-empty series except "data_*" metrics.
func (a *Aggregator) SnapshotAll() map[string]stats.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]stats.Snapshot, len(a.series))
	for name, s := range a.series {
		if strings.HasPrefix(name, excludedPrefix) {
			continue
		}
		if snap, ok := stats.Compute(s.Values); ok {
			out[name] = snap
		}
	}
	return out
}

// SnapshotGrouped summarizes the endpoint buckets as group -> endpoint -> metric.
func (a *Aggregator) SnapshotGrouped() map[string]map[string]map[string]stats.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]map[string]map[string]stats.Snapshot)
	for key, bucket := range a.grouped {
		for name, values := range bucket {
			snap, ok := stats.Compute(values)
			if !ok {
				continue
			}
			endpoints, ok := out[key.Group]
			if !ok {
				endpoints = make(map[string]map[string]stats.Snapshot)
				out[key.Group] = endpoints
			}
			metrics, ok := endpoints[key.Endpoint]
			if !ok {
				metrics = make(map[string]stats.Snapshot)
				endpoints[key.Endpoint] = metrics
			}
			metrics[name] = snap
		}
	}
	return out
}

// Checks returns a copy of the per-check counters.
func (a *Aggregator) Checks() map[string]CheckCounts {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]CheckCounts, len(a.checks))
	for name, c := range a.checks {
		out[name] = *c
	}
	return out
}

// CheckSummary totals all check counters.
func (a *Aggregator) CheckSummary() CheckSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	var sum CheckSummary
	for _, c := range a.checks {
		sum.Passed += c.Passed
		sum.Failed += c.Failed
	}
	sum.Total = sum.Passed + sum.Failed
	return sum
}

// Metrics describes every known metric in lexical order, including
// declared metrics that never received a sample. Type is "trend" until a
// definition says otherwise.
func (a *Aggregator) Metrics() []MetricInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]MetricInfo, 0, len(a.series))
	for _, s := range a.series {
		out = append(out, MetricInfo{
			Name:     s.Name,
			Type:     s.Type,
			Contains: s.Contains,
			Samples:  len(s.Values),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TimeSpan returns the earliest and latest sample timestamps seen.
// Both are zero when no sample carried a time.
func (a *Aggregator) TimeSpan() (time.Time, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.first, a.last
}

// Live returns the current progress view.
func (a *Aggregator) Live() LiveStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	ls := LiveStats{
		Samples:  a.samples,
		Requests: a.requests,
		Skipped:  a.skipped,
	}
	if a.live.TotalCount() > 0 {
		ls.DurationP95Ms = float64(a.live.ValueAtQuantile(95)) / 1000
	}
	return ls
}
