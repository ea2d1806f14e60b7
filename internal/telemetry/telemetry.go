// Package telemetry exposes orchestrator task metrics through Prometheus
// and optionally pushes them to a Pushgateway when a run ends.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/torosent/perfsuite/internal/runner"
)

const namespace = "perfsuite"

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "perfsuite"

// Collector records task lifecycle metrics. It implements runner.Observer.
type Collector struct {
	registry *prometheus.Registry

	started  prometheus.Counter
	finished *prometheus.CounterVec
	running  prometheus.Gauge
	duration *prometheus.HistogramVec
}

// NewCollector registers the task metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_started_total",
			Help:      "Test files handed to the engine.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Test files that finished, by status.",
		}, []string{"status"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_running",
			Help:      "Engine processes currently running.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of each engine process.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"status"}),
	}
	c.registry.MustRegister(c.started, c.finished, c.running, c.duration)
	return c
}

// Registry returns the registry holding the task metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) TaskStarted(runner.Task) {
	c.started.Inc()
	c.running.Inc()
}

func (c *Collector) TaskFinished(t runner.Task) {
	status := t.State.String()
	// Tasks cancelled before starting never incremented the gauge.
	if !t.Started.IsZero() {
		c.running.Dec()
	}
	c.finished.WithLabelValues(status).Inc()
	if d := t.Duration(); d > 0 {
		c.duration.WithLabelValues(status).Observe(d.Seconds())
	}
}

// Push sends the current metrics to the Pushgateway at url. Grouping labels
// are added for client and environment when set.
func (c *Collector) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	if strings.TrimSpace(job) == "" {
		job = DefaultJob
	}
	pusher := push.New(url, job).Gatherer(c.registry)
	for name, value := range grouping {
		if value != "" {
			pusher = pusher.Grouping(name, value)
		}
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
