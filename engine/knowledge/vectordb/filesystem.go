package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/janus-koncepts/wabot/engine/core"
)

// JSONFile holds the records of a json-format index.
const JSONFile = "index.json"

// fileStore keeps every record in memory and snapshots them to a JSON file.
type fileStore struct {
	mu        sync.RWMutex
	path      string
	dimension int
	readOnly  bool
	order     []string
	records   map[string]Record
}

func newFileStore(cfg *Config) (Store, error) {
	fs := &fileStore{
		path:      filepath.Join(filepath.Clean(cfg.Dir), JSONFile),
		dimension: cfg.Dimension,
		readOnly:  cfg.ReadOnly,
		records:   make(map[string]Record),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (s *fileStore) Upsert(_ context.Context, records []Record) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		rec := records[i]
		if s.dimension == 0 {
			s.dimension = len(rec.Embedding)
		}
		if err := checkDimension(rec.ID, len(rec.Embedding), s.dimension); err != nil {
			return err
		}
		if _, ok := s.records[rec.ID]; !ok {
			s.order = append(s.order, rec.ID)
		}
		s.records[rec.ID] = Record{
			ID:        rec.ID,
			Text:      rec.Text,
			Embedding: append([]float32(nil), rec.Embedding...),
			Metadata:  core.CloneMap(rec.Metadata),
		}
	}
	return s.persistLocked()
}

func (s *fileStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := checkDimension("", len(query), s.dimension); err != nil {
		return nil, err
	}
	return rank(s.snapshotLocked(), query, opts), nil
}

func (s *fileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *fileStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *fileStore) Close(context.Context) error {
	return nil
}

func (s *fileStore) snapshotLocked() []Record {
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

func (s *fileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if s.readOnly {
			return fmt.Errorf("%w: missing %s", ErrIndexNotFound, s.path)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("vectordb: read %q: %w", s.path, err)
	}
	var payload fileStorePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("vectordb: decode %q: %w", s.path, err)
	}
	if payload.Dimension > 0 && s.dimension > 0 && s.dimension != payload.Dimension {
		return fmt.Errorf(
			"vectordb: stored dimension %d does not match expected %d for %q",
			payload.Dimension,
			s.dimension,
			s.path,
		)
	}
	if payload.Dimension > 0 {
		s.dimension = payload.Dimension
	}
	for i := range payload.Records {
		rec := payload.Records[i]
		if err := checkDimension(rec.ID, len(rec.Embedding), s.dimension); err != nil {
			return fmt.Errorf("vectordb: %q: %w", s.path, err)
		}
		if _, ok := s.records[rec.ID]; !ok {
			s.order = append(s.order, rec.ID)
		}
		s.records[rec.ID] = rec
	}
	return nil
}

func (s *fileStore) persistLocked() error {
	payload := fileStorePayload{
		Dimension: s.dimension,
		Records:   s.snapshotLocked(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("vectordb: encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("vectordb: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("vectordb: commit snapshot: %w", err)
	}
	return nil
}

type fileStorePayload struct {
	Dimension int      `json:"dimension"`
	Records   []Record `json:"records"`
}
