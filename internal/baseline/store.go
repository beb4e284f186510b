package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrNoBaseline is returned by Latest when no run has been recorded yet.
var ErrNoBaseline = errors.New("baseline: no recorded runs")

// defaultKeep bounds the stored history. Older records fall off the end.
const defaultKeep = 20

// Store reads and writes the baseline file. All access takes an exclusive
// lock on a sidecar .lock file, so the data file itself can be replaced
// atomically.
type Store struct {
	path  string
	keep  int
	retry time.Duration
}

// NewStore returns a store over the baseline file at path.
func NewStore(path string) *Store {
	return &Store{
		path:  path,
		keep:  defaultKeep,
		retry: 50 * time.Millisecond,
	}
}

type baselineFile struct {
	Runs []Record `json:"runs"`
}

// Save prepends rec to the stored history, trimming it to the retention
// cap. The directory is created if needed.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("baseline: creating %s: %w", dir, err)
		}
	}
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	runs, err := s.read()
	if err != nil {
		return err
	}
	runs = append([]Record{rec}, runs...)
	if len(runs) > s.keep {
		runs = runs[:s.keep]
	}
	return s.write(runs)
}

// Latest returns the most recently saved record.
func (s *Store) Latest(ctx context.Context) (Record, error) {
	runs, err := s.History(ctx)
	if err != nil {
		return Record{}, err
	}
	if len(runs) == 0 {
		return Record{}, ErrNoBaseline
	}
	return runs[0], nil
}

// History returns all stored records, newest first. A missing file is an
// empty history, not an error.
func (s *Store) History(ctx context.Context) ([]Record, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.read()
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	fl := flock.New(s.path + ".lock")
	locked, err := fl.TryLockContext(ctx, s.retry)
	if err != nil {
		return nil, fmt.Errorf("baseline: locking %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("baseline: could not lock %s", fl.Path())
	}
	return func() { _ = fl.Unlock() }, nil
}

func (s *Store) read() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("baseline: reading %s: %w", s.path, err)
	}
	var f baselineFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("baseline: parsing %s: %w", s.path, err)
	}
	return f.Runs, nil
}

func (s *Store) write(runs []Record) error {
	data, err := json.MarshalIndent(baselineFile{Runs: runs}, "", "  ")
	if err != nil {
		return fmt.Errorf("baseline: encoding: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("baseline: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("baseline: replacing %s: %w", s.path, err)
	}
	return nil
}
