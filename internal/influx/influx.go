// Package influx exports the snapshots of a run record to InfluxDB 3.
package influx

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/InfluxCommunity/influxdb3-go/influxdb3"

	"github.com/torosent/perfsuite/internal/record"
	"github.com/torosent/perfsuite/internal/stats"
)

// DefaultMeasurement holds one point per metric snapshot.
const DefaultMeasurement = "perf_metric"

const writeBatchSize = 5000

// Row is one snapshot ready to be written as a point.
type Row struct {
	Tags   map[string]string
	Fields map[string]any
	Time   time.Time
}

// Rows flattens rec into rows: first the overall metrics, then every
// group/endpoint/metric snapshot. Order is deterministic.
func Rows(rec record.RunRecord) []Row {
	base := map[string]string{
		"client":      rec.Client,
		"test":        rec.TestName,
		"environment": rec.Environment,
		"run_id":      rec.RunID,
	}
	ts := rec.Timestamp

	var rows []Row
	for _, name := range sortedKeys(rec.Metrics) {
		rows = append(rows, newRow(base, name, "", "", rec.Metrics[name], ts))
	}
	for _, group := range sortedKeys(rec.GroupedMetrics) {
		endpoints := rec.GroupedMetrics[group]
		for _, endpoint := range sortedKeys(endpoints) {
			snaps := endpoints[endpoint]
			for _, name := range sortedKeys(snaps) {
				rows = append(rows, newRow(base, name, group, endpoint, snaps[name], ts))
			}
		}
	}
	return rows
}

func newRow(base map[string]string, metric, group, endpoint string, s stats.Snapshot, ts time.Time) Row {
	tags := make(map[string]string, len(base)+3)
	for k, v := range base {
		if v != "" {
			tags[k] = v
		}
	}
	tags["metric"] = metric
	if group != "" {
		tags["group"] = group
	}
	if endpoint != "" {
		tags["endpoint"] = endpoint
	}
	return Row{
		Tags: tags,
		Fields: map[string]any{
			"min":    s.Min,
			"max":    s.Max,
			"avg":    s.Avg,
			"median": s.Median,
			"p90":    s.P90,
			"p95":    s.P95,
			"p99":    s.P99,
			"count":  int64(s.Count),
		},
		Time: ts,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PointWriter is the subset of *influxdb3.Client used by Exporter.
type PointWriter interface {
	WritePoints(ctx context.Context, points []*influxdb3.Point, options ...influxdb3.WriteOption) error
}

// Config selects the target database.
type Config struct {
	Host        string
	Token       string
	Database    string
	Measurement string
}

// Exporter writes run records as points.
type Exporter struct {
	Writer      PointWriter
	Measurement string
	close       func() error
}

// NewExporter connects to the configured InfluxDB 3 host.
func NewExporter(cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("influx: host is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("influx: database is required")
	}
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.Host,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("influx client: %w", err)
	}
	return &Exporter{Writer: client, Measurement: cfg.Measurement, close: client.Close}, nil
}

// Close releases the underlying client.
func (e *Exporter) Close() error {
	if e == nil || e.close == nil {
		return nil
	}
	return e.close()
}

// Export writes every row of rec in batches. It returns the number of
// points written.
func (e *Exporter) Export(ctx context.Context, rec record.RunRecord) (int, error) {
	measurement := e.Measurement
	if measurement == "" {
		measurement = DefaultMeasurement
	}

	rows := Rows(rec)
	written := 0
	points := make([]*influxdb3.Point, 0, min(len(rows), writeBatchSize))
	flush := func() error {
		if len(points) == 0 {
			return nil
		}
		if err := e.Writer.WritePoints(ctx, points); err != nil {
			return fmt.Errorf("write %d points: %w", len(points), err)
		}
		written += len(points)
		points = points[:0]
		return nil
	}

	for _, row := range rows {
		points = append(points, influxdb3.NewPoint(measurement, row.Tags, row.Fields, row.Time))
		if len(points) >= writeBatchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}
