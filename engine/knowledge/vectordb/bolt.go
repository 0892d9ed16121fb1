package vectordb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/janus-koncepts/wabot/engine/core"
)

// BoltFile holds the records of a bolt-format index.
const BoltFile = "index.db"

var (
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")
	keyDimension  = []byte("dimension")
)

// boltStore persists records in a bbolt database and serves searches from an
// in-memory copy loaded at open.
type boltStore struct {
	mu        sync.RWMutex
	db        *bbolt.DB
	dimension int
	readOnly  bool
	records   []Record
	positions map[string]int
}

func newBoltStore(cfg *Config) (Store, error) {
	path := filepath.Join(filepath.Clean(cfg.Dir), BoltFile)
	if cfg.ReadOnly {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: missing %s", ErrIndexNotFound, path)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second, ReadOnly: cfg.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("vectordb: open %q: %w", path, err)
	}
	store := &boltStore{
		db:        db,
		dimension: cfg.Dimension,
		readOnly:  cfg.ReadOnly,
		positions: make(map[string]int),
	}
	if !cfg.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
				return err
			}
			_, err := tx.CreateBucketIfNotExists(bucketMeta)
			return err
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("vectordb: init buckets: %w", err)
		}
	}
	if err := store.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *boltStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if meta := tx.Bucket(bucketMeta); meta != nil {
			if raw := meta.Get(keyDimension); len(raw) == 8 {
				stored := int(binary.BigEndian.Uint64(raw))
				if s.dimension > 0 && stored > 0 && stored != s.dimension {
					return fmt.Errorf("vectordb: stored dimension %d does not match expected %d", stored, s.dimension)
				}
				if stored > 0 {
					s.dimension = stored
				}
			}
		}
		bucket := tx.Bucket(bucketRecords)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_ []byte, value []byte) error {
			var rec Record
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("vectordb: decode record: %w", err)
			}
			if err := checkDimension(rec.ID, len(rec.Embedding), s.dimension); err != nil {
				return err
			}
			s.put(rec)
			return nil
		})
	})
}

func (s *boltStore) put(rec Record) {
	if pos, ok := s.positions[rec.ID]; ok {
		s.records[pos] = rec
		return
	}
	s.positions[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
}

func (s *boltStore) Upsert(_ context.Context, records []Record) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dimension := s.dimension
	cloned := make([]Record, 0, len(records))
	for i := range records {
		rec := records[i]
		if dimension == 0 {
			dimension = len(rec.Embedding)
		}
		if err := checkDimension(rec.ID, len(rec.Embedding), dimension); err != nil {
			return err
		}
		cloned = append(cloned, Record{
			ID:        rec.ID,
			Text:      rec.Text,
			Embedding: append([]float32(nil), rec.Embedding...),
			Metadata:  core.CloneMap(rec.Metadata),
		})
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		for i := range cloned {
			data, err := json.Marshal(cloned[i])
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(cloned[i].ID), data); err != nil {
				return err
			}
		}
		raw := make([]byte, 8)
		binary.BigEndian.PutUint64(raw, uint64(dimension))
		return tx.Bucket(bucketMeta).Put(keyDimension, raw)
	})
	if err != nil {
		return fmt.Errorf("vectordb: write records: %w", err)
	}
	s.dimension = dimension
	for i := range cloned {
		s.put(cloned[i])
	}
	return nil
}

func (s *boltStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := checkDimension("", len(query), s.dimension); err != nil {
		return nil, err
	}
	return rank(s.records, query, opts), nil
}

func (s *boltStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *boltStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *boltStore) Close(context.Context) error {
	return s.db.Close()
}
