// Package history persists run records and selects comparison baselines.
//
// Records live under <client>/<test>/ and are named
// <UTC yyyymmddThhmmssZ>_<runId>.json, so lexical order is chronological.
package history

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/torosent/perfsuite/internal/record"
)

// ErrNotFound is returned by Load when no record has the requested name.
var ErrNotFound = errors.New("history: record not found")

const (
	recordExt    = ".json"
	stampLayout  = "20060102T150405Z"
	DefaultDepth = 5
)

// Store saves and loads run records for a client and test pair.
type Store interface {
	Save(ctx context.Context, rec record.RunRecord) (string, error)
	// List returns record names oldest-first.
	List(ctx context.Context, client, test string) ([]string, error)
	Load(ctx context.Context, client, test, name string) (record.RunRecord, error)
}

var unsafeSegment = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// segment makes a client or test name safe to use as one path element.
func segment(s string) string {
	s = unsafeSegment.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "default"
	}
	return s
}

// RecordName returns the file name a record is stored under.
func RecordName(rec record.RunRecord) string {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.UTC().Format(stampLayout) + "_" + rec.RunID + recordExt
}

func isRecordName(name string) bool {
	return strings.HasSuffix(name, recordExt) && !strings.HasPrefix(name, ".")
}

func checkName(name string) error {
	if name == "" || path.Base(name) != name || !isRecordName(name) {
		return fmt.Errorf("invalid record name %q", name)
	}
	return nil
}

func sortNames(names []string) []string {
	sort.Strings(names)
	return names
}

// SelectBaselines picks the records to compare the current one against.
// Explicit names win and keep their given order. Otherwise the newest depth
// names other than current are returned oldest-first.
func SelectBaselines(names []string, current string, depth int, explicit []string) []string {
	if len(explicit) > 0 {
		out := make([]string, 0, len(explicit))
		for _, e := range explicit {
			if e = strings.TrimSpace(e); e != "" {
				out = append(out, e)
			}
		}
		return out
	}
	if depth <= 0 {
		depth = DefaultDepth
	}

	candidates := make([]string, 0, len(names))
	for _, n := range names {
		if n != current {
			candidates = append(candidates, n)
		}
	}
	candidates = sortNames(candidates)
	if len(candidates) > depth {
		candidates = candidates[len(candidates)-depth:]
	}
	return candidates
}

// Latest returns the newest name, or false when names is empty.
func Latest(names []string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	sorted := sortNames(append([]string(nil), names...))
	return sorted[len(sorted)-1], true
}

// LoadAll loads every named record in order.
func LoadAll(ctx context.Context, s Store, client, test string, names []string) ([]record.RunRecord, error) {
	out := make([]record.RunRecord, 0, len(names))
	for _, n := range names {
		rec, err := s.Load(ctx, client, test, n)
		if err != nil {
			return nil, fmt.Errorf("load baseline %s: %w", n, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
