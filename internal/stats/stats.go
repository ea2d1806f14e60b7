// Package stats computes summary statistics over a series of samples.
//
// Percentiles use the nearest-rank method without interpolation: the value at
// index floor(n*p) of the sorted series, clamped to the last element. The
// median is the element at index floor(n/2), which is the upper median for
// even counts.
package stats

import (
	"math"
	"sort"
)

// Snapshot is the summary of one metric series.
type Snapshot struct {
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Avg    float64 `json:"avg" yaml:"avg"`
	Median float64 `json:"median" yaml:"median"`
	P90    float64 `json:"p90" yaml:"p90"`
	P95    float64 `json:"p95" yaml:"p95"`
	P99    float64 `json:"p99" yaml:"p99"`
	Count  int     `json:"count" yaml:"count"`
}

// Compute summarizes values. It returns false for an empty series.
// The input slice is never modified.
func Compute(values []float64) (Snapshot, bool) {
	n := len(values)
	if n == 0 {
		return Snapshot{}, false
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return Snapshot{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Avg:    sum / float64(n),
		Median: sorted[n/2],
		P90:    Percentile(sorted, 0.90),
		P95:    Percentile(sorted, 0.95),
		P99:    Percentile(sorted, 0.99),
		Count:  n,
	}, true
}

// Percentile returns the nearest-rank percentile p (0..1) of an already
// sorted series. It returns 0 for an empty series.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(float64(n) * p))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Value returns the named aggregate of the snapshot. Names are min, max, avg,
// med (or median), p90, p95, p99 and count.
func (s Snapshot) Value(aggregate string) (float64, bool) {
	switch aggregate {
	case "min":
		return s.Min, true
	case "max":
		return s.Max, true
	case "avg", "mean":
		return s.Avg, true
	case "med", "median", "p50":
		return s.Median, true
	case "p90":
		return s.P90, true
	case "p95":
		return s.P95, true
	case "p99":
		return s.P99, true
	case "count":
		return float64(s.Count), true
	default:
		return 0, false
	}
}
