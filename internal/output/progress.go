package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/perfsuite/internal/metrics"
)

// LiveSource is anything that can report in-flight aggregation progress.
type LiveSource interface {
	Live() metrics.LiveStats
}

// ProgressReporter displays real-time progress while a results file is summarized.
type ProgressReporter struct {
	source   LiveSource
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(source LiveSource, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		source:   source,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and prints a final line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprint(p.writer, ProgressLine(p.source.Live(), time.Since(p.start)))
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, ProgressLine(p.source.Live(), time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

// ProgressLine formats one carriage-return-prefixed status line.
func ProgressLine(ls metrics.LiveStats, elapsed time.Duration) string {
	line := fmt.Sprintf("\rSamples: %d | Requests: %d | Skipped: %d", ls.Samples, ls.Requests, ls.Skipped)
	if secs := elapsed.Seconds(); secs > 0 {
		line += fmt.Sprintf(" | Lines/s: %.0f", float64(ls.Samples+ls.Skipped)/secs)
	}
	if ls.DurationP95Ms > 0 {
		line += fmt.Sprintf(" | ~P95: %.1fms", ls.DurationP95Ms)
	}
	return line
}
