package runner

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// State is the lifecycle position of a task.
type State int

const (
	StatePending State = iota
	StateRunning
	StatePassed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StatePassed || s == StateFailed
}

// Task is one test file moving through the orchestrator.
type Task struct {
	File     string
	State    State
	Output   string // trailing output, at most Options.OutputTail bytes
	ExitCode int
	Err      error
	Started  time.Time
	Finished time.Time
}

// Duration is Finished-Started for terminal tasks, zero otherwise.
func (t Task) Duration() time.Duration {
	if t.Started.IsZero() || t.Finished.IsZero() {
		return 0
	}
	return t.Finished.Sub(t.Started)
}

// SpawnError means the engine process could not be started at all.
type SpawnError struct {
	File string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.File, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > b.max {
		b.buf = b.buf[:0]
		p = p[len(p)-b.max-1:]
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		// The tail never starts inside a multi-byte rune.
		for over < len(b.buf) && !utf8.RuneStart(b.buf[over]) {
			over++
		}
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
