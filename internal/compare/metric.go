package compare

import (
	"github.com/torosent/perfsuite/internal/metrics"
	"github.com/torosent/perfsuite/internal/record"
)

// Metric is one figure tracked across runs.
type Metric struct {
	Key           string
	Label         string
	LowerIsBetter bool
	Extract       func(record.RunRecord) (float64, bool)
}

func snapshotField(name string, pick func(avg, p95 float64) float64) func(record.RunRecord) (float64, bool) {
	return func(r record.RunRecord) (float64, bool) {
		s, ok := r.Metrics[name]
		if !ok {
			return 0, false
		}
		return pick(s.Avg, s.P95), true
	}
}

// TrackedMetrics lists the figures every comparison reports on, in report order.
var TrackedMetrics = []Metric{
	{
		Key:           "response_time_avg",
		Label:         "Avg response time (ms)",
		LowerIsBetter: true,
		Extract:       snapshotField(metrics.DurationMetric, func(avg, _ float64) float64 { return avg }),
	},
	{
		Key:           "response_time_p95",
		Label:         "P95 response time (ms)",
		LowerIsBetter: true,
		Extract:       snapshotField(metrics.DurationMetric, func(_, p95 float64) float64 { return p95 }),
	},
	{
		Key:     "throughput",
		Label:   "Throughput (req/s)",
		Extract: record.RunRecord.Throughput,
	},
	{
		Key:           "error_rate",
		Label:         "Error rate (%)",
		LowerIsBetter: true,
		Extract:       record.RunRecord.ErrorRate,
	},
	{
		Key:     "check_pass_rate",
		Label:   "Check pass rate (%)",
		Extract: record.RunRecord.CheckPassRate,
	},
	{
		Key:   "iterations",
		Label: "Iterations",
		Extract: func(r record.RunRecord) (float64, bool) {
			return float64(r.TestInfo.Iterations), r.TestInfo.Iterations > 0
		},
	},
	{
		Key:   "max_vus",
		Label: "Max VUs",
		Extract: func(r record.RunRecord) (float64, bool) {
			return float64(r.TestInfo.MaxVUs), r.TestInfo.MaxVUs > 0
		},
	},
}
