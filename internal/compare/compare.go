// Package compare classifies how a run differs from its baselines.
package compare

import (
	"fmt"
	"math"
	"sort"

	"github.com/torosent/perfsuite/internal/record"
)

// Classification of a single-baseline change.
type Classification string

const (
	Improvement Classification = "improvement"
	Degradation Classification = "degradation"
	Stable      Classification = "stable"
)

// epsilon keeps a change of exactly MinChange above the reporting floor.
const epsilon = 1e-9

// Options holds the percent thresholds used for classification.
type Options struct {
	MinChange   float64 // changes below this are not reported
	Significant float64 // changes below this are stable
	Critical    float64 // degradations at or above this fail the comparison
	TrendBand   float64 // window-mean changes within this band are stable
	TopK        int
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		MinChange:   1.0,
		Significant: 5.0,
		Critical:    20.0,
		TrendBand:   5.0,
		TopK:        3,
	}
}

func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.MinChange <= 0 {
		o.MinChange = d.MinChange
	}
	if o.Significant <= 0 {
		o.Significant = d.Significant
	}
	if o.Critical <= 0 {
		o.Critical = d.Critical
	}
	if o.TrendBand <= 0 {
		o.TrendBand = d.TrendBand
	}
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	return o
}

// Result is the comparison of one tracked metric against the newest baseline.
type Result struct {
	Metric         string         `json:"metric" yaml:"metric"`
	Label          string         `json:"label" yaml:"label"`
	Current        float64        `json:"current" yaml:"current"`
	Baseline       float64        `json:"baseline" yaml:"baseline"`
	BaselineRunID  string         `json:"baselineRunId" yaml:"baselineRunId"`
	PercentChange  float64        `json:"percentChange" yaml:"percentChange"`
	Classification Classification `json:"classification" yaml:"classification"`
	LowerIsBetter  bool           `json:"lowerIsBetter" yaml:"lowerIsBetter"`
	Critical       bool           `json:"critical,omitempty" yaml:"critical,omitempty"`
}

// Report is the full outcome of Compare.
type Report struct {
	Client          string   `json:"client" yaml:"client"`
	TestName        string   `json:"testName" yaml:"testName"`
	CurrentRunID    string   `json:"currentRunId" yaml:"currentRunId"`
	BaselineRunID   string   `json:"baselineRunId,omitempty" yaml:"baselineRunId,omitempty"`
	Baselines       int      `json:"baselines" yaml:"baselines"`
	Results         []Result `json:"results" yaml:"results"`
	Trends          []Trend  `json:"trends,omitempty" yaml:"trends,omitempty"`
	TopImprovements []Result `json:"topImprovements,omitempty" yaml:"topImprovements,omitempty"`
	TopDegradations []Result `json:"topDegradations,omitempty" yaml:"topDegradations,omitempty"`
	Degraded        bool     `json:"degraded" yaml:"degraded"`
	Note            string   `json:"note,omitempty" yaml:"note,omitempty"`
}

// Comparator compares run records.
type Comparator struct {
	opts    Options
	metrics []Metric
}

// New returns a comparator over TrackedMetrics.
func New(opts Options) *Comparator {
	return &Comparator{opts: opts.normalize(), metrics: TrackedMetrics}
}

// Options returns the effective thresholds.
func (c *Comparator) Options() Options {
	return c.opts
}

// PercentChange returns (current-base)/base*100, or 0 when base is 0.
func PercentChange(base, current float64) float64 {
	if base == 0 {
		return 0
	}
	return (current - base) / base * 100
}

// Classify maps a percent change to a classification. ok is false when the
// change is below the reporting floor.
func (c *Comparator) Classify(pc float64, lowerIsBetter bool) (cls Classification, critical, ok bool) {
	abs := math.Abs(pc)
	if abs < c.opts.MinChange-epsilon {
		return "", false, false
	}
	if abs < c.opts.Significant {
		return Stable, false, true
	}
	if (pc < 0) == lowerIsBetter {
		return Improvement, false, true
	}
	return Degradation, abs >= c.opts.Critical, true
}

// Compare reports current against baselines, which must be oldest-first.
// Single-metric results use the newest baseline. Trends use all of them.
func (c *Comparator) Compare(current record.RunRecord, baselines []record.RunRecord) Report {
	rep := Report{
		Client:       current.Client,
		TestName:     current.TestName,
		CurrentRunID: current.RunID,
		Baselines:    len(baselines),
		Results:      []Result{},
	}
	if len(baselines) == 0 {
		rep.Note = fmt.Sprintf("no baselines for %s/%s; nothing to compare", current.Client, current.TestName)
		return rep
	}

	newest := baselines[len(baselines)-1]
	rep.BaselineRunID = newest.RunID

	for _, m := range c.metrics {
		cur, okCur := m.Extract(current)
		base, okBase := m.Extract(newest)
		if okCur && okBase {
			pc := PercentChange(base, cur)
			if cls, critical, ok := c.Classify(pc, m.LowerIsBetter); ok {
				rep.Results = append(rep.Results, Result{
					Metric:         m.Key,
					Label:          m.Label,
					Current:        cur,
					Baseline:       base,
					BaselineRunID:  newest.RunID,
					PercentChange:  pc,
					Classification: cls,
					LowerIsBetter:  m.LowerIsBetter,
					Critical:       critical,
				})
				if critical {
					rep.Degraded = true
				}
			}
		}

		series := make([]float64, 0, len(baselines)+1)
		for _, b := range baselines {
			if v, ok := m.Extract(b); ok {
				series = append(series, v)
			}
		}
		if okCur {
			series = append(series, cur)
		}
		tr := c.ClassifyTrend(series, m.LowerIsBetter)
		tr.Metric = m.Key
		tr.Label = m.Label
		rep.Trends = append(rep.Trends, tr)
	}

	rep.TopImprovements, rep.TopDegradations = TopChanges(rep.Results, c.opts.TopK)
	return rep
}

// TopChanges returns up to k improvements and k degradations, largest
// absolute change first. Ties keep their input order.
func TopChanges(results []Result, k int) (improvements, degradations []Result) {
	for _, r := range results {
		switch r.Classification {
		case Improvement:
			improvements = append(improvements, r)
		case Degradation:
			degradations = append(degradations, r)
		}
	}
	byMagnitude := func(rs []Result) []Result {
		sort.SliceStable(rs, func(i, j int) bool {
			return math.Abs(rs[i].PercentChange) > math.Abs(rs[j].PercentChange)
		})
		if len(rs) > k {
			rs = rs[:k]
		}
		return rs
	}
	return byMagnitude(improvements), byMagnitude(degradations)
}
