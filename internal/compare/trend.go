package compare

import "math"

// Direction of a multi-run trend.
type Direction string

const (
	TrendImproving        Direction = "improving"
	TrendDegrading        Direction = "degrading"
	TrendStable           Direction = "stable"
	TrendInsufficientData Direction = "insufficient_data"
)

// maxRecentWindow caps how many of the newest points form the recent window.
const maxRecentWindow = 3

// Trend summarizes a metric over the baselines plus the current run.
type Trend struct {
	Metric        string    `json:"metric" yaml:"metric"`
	Label         string    `json:"label" yaml:"label"`
	Direction     Direction `json:"direction" yaml:"direction"`
	Points        int       `json:"points" yaml:"points"`
	RecentMean    float64   `json:"recentMean" yaml:"recentMean"`
	OlderMean     float64   `json:"olderMean" yaml:"olderMean"`
	PercentChange float64   `json:"percentChange" yaml:"percentChange"`
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// ClassifyTrend compares the mean of the newest points against the mean of
// the rest. series is oldest-first.
func (c *Comparator) ClassifyTrend(series []float64, lowerIsBetter bool) Trend {
	n := len(series)
	tr := Trend{Points: n, Direction: TrendInsufficientData}
	if n < 2 {
		return tr
	}

	recentN := min(maxRecentWindow, n-1)
	tr.OlderMean = mean(series[:n-recentN])
	tr.RecentMean = mean(series[n-recentN:])
	tr.Direction = TrendStable
	if tr.OlderMean == 0 {
		return tr
	}

	tr.PercentChange = PercentChange(tr.OlderMean, tr.RecentMean)
	if math.Abs(tr.PercentChange) <= c.opts.TrendBand {
		return tr
	}
	if (tr.PercentChange < 0) == lowerIsBetter {
		tr.Direction = TrendImproving
	} else {
		tr.Direction = TrendDegrading
	}
	return tr
}
