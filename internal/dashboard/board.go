package dashboard

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/torosent/perfsuite/internal/runner"
)

// board is the task state shown by the dashboard. It is fed by observer
// callbacks and read by the render loop.
type board struct {
	mu       sync.Mutex
	total    int
	running  map[string]runner.Task
	finished []runner.Task
	passed   int
	failed   int
}

func newBoard(total int) *board {
	return &board{total: total, running: make(map[string]runner.Task)}
}

func (b *board) started(t runner.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running[t.File] = t
}

func (b *board) finish(t runner.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.running, t.File)
	b.finished = append(b.finished, t)
	if t.State == runner.StatePassed {
		b.passed++
	} else {
		b.failed++
	}
}

// view is an immutable copy of the board for one frame.
type view struct {
	Total    int
	Pending  int
	Running  []runner.Task // sorted by start time
	Finished []runner.Task // completion order
	Passed   int
	Failed   int
}

func (b *board) snapshot() view {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := view{
		Total:    b.total,
		Running:  make([]runner.Task, 0, len(b.running)),
		Finished: append([]runner.Task(nil), b.finished...),
		Passed:   b.passed,
		Failed:   b.failed,
	}
	for _, t := range b.running {
		v.Running = append(v.Running, t)
	}
	sort.Slice(v.Running, func(i, j int) bool {
		if v.Running[i].Started.Equal(v.Running[j].Started) {
			return v.Running[i].File < v.Running[j].File
		}
		return v.Running[i].Started.Before(v.Running[j].Started)
	})
	v.Pending = v.Total - len(v.Running) - len(v.Finished)
	if v.Pending < 0 {
		v.Pending = 0
	}
	return v
}

// Percent is the share of finished tasks.
func (v view) Percent() int {
	if v.Total <= 0 {
		return 0
	}
	p := len(v.Finished) * 100 / v.Total
	if p > 100 {
		p = 100
	}
	return p
}

func formatRunningRows(tasks []runner.Task, now time.Time) []string {
	if len(tasks) == 0 {
		return []string{"[Idle](fg:green)"}
	}
	rows := make([]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, fmt.Sprintf("▶ %s (%s)", filepath.Base(t.File), now.Sub(t.Started).Round(time.Second)))
	}
	return rows
}

// formatFinishedRows lists the newest completions first, at most limit rows.
func formatFinishedRows(tasks []runner.Task, limit int) []string {
	if len(tasks) == 0 {
		return []string{"Awaiting results"}
	}
	rows := make([]string, 0, min(len(tasks), limit))
	for i := len(tasks) - 1; i >= 0 && len(rows) < limit; i-- {
		t := tasks[i]
		if t.State == runner.StatePassed {
			rows = append(rows, fmt.Sprintf("[✓ %s](fg:green) %s", filepath.Base(t.File), t.Duration().Round(time.Millisecond)))
			continue
		}
		rows = append(rows, fmt.Sprintf("[✗ %s](fg:red) exit=%d %s", filepath.Base(t.File), t.ExitCode, t.Duration().Round(time.Millisecond)))
	}
	return rows
}

// lastFailure returns the output tail of the newest failed task.
func lastFailure(tasks []runner.Task) string {
	for i := len(tasks) - 1; i >= 0; i-- {
		t := tasks[i]
		if t.State != runner.StateFailed {
			continue
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s (exit %d)", filepath.Base(t.File), t.ExitCode)
		if t.Err != nil {
			fmt.Fprintf(&sb, ": %v", t.Err)
		}
		if out := strings.TrimSpace(t.Output); out != "" {
			sb.WriteString("\n")
			sb.WriteString(out)
		}
		return sb.String()
	}
	return "No failures"
}
