package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/torosent/perfsuite/internal/record"
)

const lockFile = ".lock"

// FSStore keeps records on the local filesystem.
type FSStore struct {
	Dir string
}

// NewFSStore returns a store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{Dir: dir}
}

func (s *FSStore) testDir(client, test string) string {
	return filepath.Join(s.Dir, segment(client), segment(test))
}

// Save writes rec atomically while holding the per-test lock.
func (s *FSStore) Save(ctx context.Context, rec record.RunRecord) (string, error) {
	dir := s.testDir(rec.Client, rec.TestName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create history dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFile))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("lock history dir: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := RecordName(rec)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := record.Encode(tmp, rec); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("publish record: %w", err)
	}
	return name, nil
}

// List returns record names oldest-first. A missing directory is empty history.
func (s *FSStore) List(ctx context.Context, client, test string) ([]string, error) {
	entries, err := os.ReadDir(s.testDir(client, test))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list history: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && isRecordName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return sortNames(names), nil
}

// Load reads one record by name.
func (s *FSStore) Load(ctx context.Context, client, test, name string) (record.RunRecord, error) {
	if err := checkName(name); err != nil {
		return record.RunRecord{}, err
	}
	f, err := os.Open(filepath.Join(s.testDir(client, test), name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return record.RunRecord{}, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return record.RunRecord{}, fmt.Errorf("open record: %w", err)
	}
	defer f.Close()
	return record.Decode(f)
}
