package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/torosent/perfsuite/internal/record"
	"github.com/torosent/perfsuite/internal/stats"
)

func sampleRecord(id string, ts time.Time) record.RunRecord {
	return record.RunRecord{
		RunID:     id,
		Timestamp: ts,
		Client:    "web",
		TestName:  "checkout",
		Metrics: map[string]stats.Snapshot{
			"http_req_duration": {Min: 1, Max: 9, Avg: 5, Median: 5, P90: 8, P95: 9, P99: 9, Count: 9},
		},
	}
}

func TestFSStoreSaveListLoad(t *testing.T) {
	ctx := context.Background()
	store := NewFSStore(t.TempDir())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Saved out of order on purpose.
	for _, i := range []int{2, 0, 1} {
		rec := sampleRecord(string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour))
		if _, err := store.Save(ctx, rec); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	names, err := store.List(ctx, "web", "checkout")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{
		"20260101T000000Z_a.json",
		"20260101T010000Z_b.json",
		"20260101T020000Z_c.json",
	}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	got, err := store.Load(ctx, "web", "checkout", names[1])
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.RunID != "b" || got.Metrics["http_req_duration"].P95 != 9 {
		t.Errorf("Load() = %+v", got)
	}
}

func TestFSStoreIgnoresLockAndTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFSStore(dir)
	if _, err := store.Save(ctx, sampleRecord("a", time.Now())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	testDir := filepath.Join(dir, "web", "checkout")
	if _, err := os.Stat(filepath.Join(testDir, lockFile)); err != nil {
		t.Fatalf("expected lock file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(testDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := store.List(ctx, "web", "checkout")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 1 {
		t.Errorf("List() = %v, want one record", names)
	}
}

func TestFSStoreMissingHistory(t *testing.T) {
	store := NewFSStore(t.TempDir())
	names, err := store.List(context.Background(), "nobody", "nothing")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("List() = %v, want empty", names)
	}

	_, err = store.Load(context.Background(), "nobody", "nothing", "20260101T000000Z_x.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestFSStoreRejectsPathNames(t *testing.T) {
	store := NewFSStore(t.TempDir())
	for _, name := range []string{"../x.json", "a/b.json", "", "record.txt"} {
		if _, err := store.Load(context.Background(), "web", "checkout", name); err == nil {
			t.Errorf("Load(%q) expected error", name)
		}
	}
}

func TestFSStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store := NewFSStore(t.TempDir())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := sampleRecord(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
			if _, err := store.Save(ctx, rec); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	names, err := store.List(ctx, "web", "checkout")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 8 {
		t.Errorf("List() returned %d records, want 8", len(names))
	}
}
