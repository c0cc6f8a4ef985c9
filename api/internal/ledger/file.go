package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CSVStore keeps the ledger in a single CSV file. Every mutation holds the
// store lock across load, uniqueness check and rewrite, so two appends in
// this process cannot both pass for the same key. Separate processes
// sharing one file are not coordinated.
type CSVStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path, now: time.Now}
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Load(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *CSVStore) Save(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(records)
}

func (s *CSVStore) HasSubmitted(ctx context.Context, group, module string) (bool, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return contains(records, Key{Module: module, Group: group}), nil
}

func (s *CSVStore) Append(ctx context.Context, module, group string, includedFigures bool) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Timestamp:       s.now().UTC(),
		Module:          module,
		GroupNumber:     group,
		IncludedFigures: includedFigures,
	}
	if contains(records, rec.Key()) {
		return Record{}, fmt.Errorf("%w: %s", ErrDuplicate, rec.Key())
	}
	if err := s.save(append(records, rec)); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *CSVStore) DeleteByIndex(ctx context.Context, i int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	if i < 0 || i >= len(records) {
		return Record{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(records))
	}
	removed := records[i]
	records = append(records[:i], records[i+1:]...)
	return removed, s.save(records)
}

func (s *CSVStore) DeleteRecord(ctx context.Context, rec Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return false, err
	}
	for i, r := range records {
		if r.Same(rec) {
			return true, s.save(append(records[:i], records[i+1:]...))
		}
	}
	return false, nil
}

func (s *CSVStore) DeleteByKey(ctx context.Context, group, module string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return 0, err
	}
	kept, n := filterOut(records, group, module)
	if n == 0 {
		return 0, nil
	}
	return n, s.save(kept)
}

func (s *CSVStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(nil)
}

func (s *CSVStore) load() ([]Record, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", s.path, err)
	}
	records, err := Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", s.path, err)
	}
	return records, nil
}

// save rewrites the whole file: temp file in the same directory, then rename.
func (s *CSVStore) save(records []Record) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("make dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp: %w", err)
	}
	_ = tmp.Chmod(0o644)
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
