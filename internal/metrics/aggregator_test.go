package metrics_test

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/torosent/perfsuite/internal/event"
	"github.com/torosent/perfsuite/internal/metrics"
)

func sample(metric string, value float64, tags map[string]string) event.Sample {
	if tags == nil {
		tags = map[string]string{}
	}
	return event.Sample{Metric: metric, Value: value, Tags: tags}
}

func TestAggregatorGroupedEndpointStats(t *testing.T) {
	agg := metrics.NewAggregator()
	for v := 100.0; v <= 190; v += 10 {
		agg.Ingest(sample("http_req_duration", v, map[string]string{"group": "", "name": "/api"}))
	}

	grouped := agg.SnapshotGrouped()
	snap, ok := grouped[""]["/api"]["http_req_duration"]
	if !ok {
		t.Fatalf("SnapshotGrouped() missing bucket, got %v", grouped)
	}
	if snap.Min != 100 || snap.Max != 190 || snap.Avg != 145 {
		t.Errorf("min/max/avg = %v/%v/%v, want 100/190/145", snap.Min, snap.Max, snap.Avg)
	}
	if snap.P95 != 190 {
		t.Errorf("P95 = %v, want 190 (nearest-rank index 9)", snap.P95)
	}
	if snap.Count != 10 {
		t.Errorf("Count = %d, want 10", snap.Count)
	}
}

func TestAggregatorGroupKeyDefaults(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Ingest(sample("http_req_waiting", 5, map[string]string{"url": "https://example.com/a"}))
	agg.Ingest(sample("http_req_waiting", 6, map[string]string{"group": "::checkout"}))
	agg.Ingest(sample("http_req_waiting", 7, map[string]string{"name": "named", "url": "ignored"}))

	grouped := agg.SnapshotGrouped()
	if _, ok := grouped[""]["https://example.com/a"]["http_req_waiting"]; !ok {
		t.Error("expected url fallback bucket")
	}
	if _, ok := grouped["::checkout"]["unknown"]["http_req_waiting"]; !ok {
		t.Error("expected unknown endpoint bucket")
	}
	if _, ok := grouped[""]["named"]["http_req_waiting"]; !ok {
		t.Error("expected name to win over url")
	}
}

func TestAggregatorOnlyGroupsHTTPReqMetrics(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Ingest(sample("iteration_duration", 10, map[string]string{"name": "/api"}))
	agg.Ingest(sample("vus", 2, map[string]string{"name": "/api"}))

	if got := agg.SnapshotGrouped(); len(got) != 0 {
		t.Errorf("SnapshotGrouped() = %v, want empty", got)
	}
	if _, ok := agg.SnapshotAll()["iteration_duration"]; !ok {
		t.Error("SnapshotAll() missing iteration_duration")
	}
}

func TestAggregatorPointBeforeDefinition(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Ingest(sample("vus", 1, nil))

	if got := agg.Metrics(); len(got) != 1 || got[0].Type != event.MetricTypeTrend {
		t.Errorf("Metrics() before definition = %+v, want one trend", got)
	}

	agg.Ingest(event.MetricDefinition{Name: "vus", Type: event.MetricTypeGauge, Contains: "default"})
	agg.Ingest(sample("vus", 3, nil))

	want := []metrics.MetricInfo{{Name: "vus", Type: event.MetricTypeGauge, Contains: "default", Samples: 2}}
	if got := agg.Metrics(); !reflect.DeepEqual(got, want) {
		t.Errorf("Metrics() after definition = %+v, want %+v", got, want)
	}
	snap := agg.SnapshotAll()["vus"]
	if snap.Count != 2 || snap.Max != 3 {
		t.Errorf("vus snapshot = %+v, want count 2 max 3", snap)
	}
}

func TestAggregatorDefinitionWithoutSamples(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Ingest(event.MetricDefinition{Name: "grpc_req_duration", Type: event.MetricTypeTrend})

	if _, ok := agg.SnapshotAll()["grpc_req_duration"]; ok {
		t.Error("empty series must not produce a snapshot")
	}
	want := []metrics.MetricInfo{{Name: "grpc_req_duration", Type: event.MetricTypeTrend}}
	if got := agg.Metrics(); !reflect.DeepEqual(got, want) {
		t.Errorf("Metrics() = %+v, want %+v", got, want)
	}
}

func TestAggregatorChecks(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Ingest(sample("checks", 1, map[string]string{"check": "status is 200"}))
	agg.Ingest(sample("checks", 1, map[string]string{"check": "status is 200"}))
	agg.Ingest(sample("checks", 0, map[string]string{"check": "status is 200"}))
	agg.Ingest(sample("checks", 0.5, map[string]string{"check": "body ok"}))
	agg.Ingest(sample("checks", 1, nil))

	want := map[string]metrics.CheckCounts{
		"status is 200": {Passed: 2, Failed: 1},
		"body ok":       {Passed: 0, Failed: 1},
		"unknown":       {Passed: 1, Failed: 0},
	}
	if got := agg.Checks(); !reflect.DeepEqual(got, want) {
		t.Errorf("Checks() = %v, want %v", got, want)
	}

	sum := agg.CheckSummary()
	if sum.Total != 5 || sum.Passed != 3 || sum.Failed != 2 {
		t.Errorf("CheckSummary() = %+v", sum)
	}
	if rate := sum.PassRate(); rate != 0.6 {
		t.Errorf("PassRate() = %v, want 0.6", rate)
	}
}

func TestAggregatorExcludesDataMetrics(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Ingest(sample("data_sent", 512, nil))
	agg.Ingest(sample("data_received", 2048, nil))
	agg.Ingest(sample("iterations", 1, nil))

	all := agg.SnapshotAll()
	if _, ok := all["data_sent"]; ok {
		t.Error("data_sent must be excluded")
	}
	if _, ok := all["data_received"]; ok {
		t.Error("data_received must be excluded")
	}
	if _, ok := all["iterations"]; !ok {
		t.Error("iterations must be present")
	}
}

func TestAggregatorUnrecognizedIsCountedOnly(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Ingest(event.Unrecognized{Reason: "invalid json"})
	agg.Ingest(event.Unrecognized{Reason: "non-numeric value"})

	if got := agg.SnapshotAll(); len(got) != 0 {
		t.Errorf("SnapshotAll() = %v, want empty", got)
	}
	if live := agg.Live(); live.Skipped != 2 || live.Samples != 0 {
		t.Errorf("Live() = %+v", live)
	}
}

func TestAggregatorTimeSpan(t *testing.T) {
	agg := metrics.NewAggregator()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{5 * time.Second, 0, 30 * time.Second} {
		s := sample("vus", 1, nil)
		s.Time = base.Add(offset)
		agg.Ingest(s)
	}
	agg.Ingest(sample("vus", 1, nil)) // no timestamp

	first, last := agg.TimeSpan()
	if !first.Equal(base) || !last.Equal(base.Add(30*time.Second)) {
		t.Errorf("TimeSpan() = %v, %v", first, last)
	}
}

func TestAggregatorLiveEstimate(t *testing.T) {
	agg := metrics.NewAggregator()
	for i := 1; i <= 100; i++ {
		agg.Ingest(sample("http_req_duration", float64(i), nil))
		agg.Ingest(sample("http_reqs", 1, nil))
	}

	live := agg.Live()
	if live.Samples != 200 || live.Requests != 100 {
		t.Errorf("Live() counts = %+v", live)
	}
	// HDR estimate with 3 significant figures stays within 1% of the exact value.
	if live.DurationP95Ms < 94 || live.DurationP95Ms > 96 {
		t.Errorf("DurationP95Ms = %v, want ~95", live.DurationP95Ms)
	}
}

func TestAggregatorConcurrentReaders(t *testing.T) {
	agg := metrics.NewAggregator()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = agg.Live()
		}
	}()
	for i := 0; i < 500; i++ {
		agg.Ingest(sample("http_req_duration", float64(i), map[string]string{"name": "/x"}))
	}
	wg.Wait()

	if got := agg.SnapshotAll()["http_req_duration"].Count; got != 500 {
		t.Errorf("Count = %d, want 500", got)
	}
}

func TestAggregatorLateDefinitionKeepsGroupedStats(t *testing.T) {
	agg := metrics.NewAggregator()
	tags := map[string]string{"name": "/api"}
	agg.Ingest(sample("http_req_failed", 0, tags))
	agg.Ingest(event.MetricDefinition{Name: "http_req_failed", Type: event.MetricTypeRate, Contains: "default"})
	agg.Ingest(sample("http_req_failed", 1, tags))
	agg.Ingest(event.MetricDefinition{Name: "http_req_duration", Type: event.MetricTypeTrend, Contains: "time"})

	snap := agg.SnapshotGrouped()[""]["/api"]["http_req_failed"]
	if snap.Count != 2 || snap.Avg != 0.5 {
		t.Errorf("grouped http_req_failed = %+v, want count 2 avg 0.5", snap)
	}

	want := []metrics.MetricInfo{
		{Name: "http_req_duration", Type: event.MetricTypeTrend, Contains: "time"},
		{Name: "http_req_failed", Type: event.MetricTypeRate, Contains: "default", Samples: 2},
	}
	if got := agg.Metrics(); !reflect.DeepEqual(got, want) {
		t.Errorf("Metrics() = %+v, want %+v", got, want)
	}
}
