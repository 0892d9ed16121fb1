package vectordb

import (
	"context"
	"errors"

	"github.com/janus-koncepts/wabot/engine/knowledge"
)

var (
	// ErrIndexNotFound reports that no persisted index exists at the requested directory.
	ErrIndexNotFound = errors.New("vectordb: index not found")
	// ErrReadOnly is returned when writing to an index opened for retrieval.
	ErrReadOnly = errors.New("vectordb: index is read-only")
)

// Record represents a chunk persisted to the vector index.
type Record struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SearchOptions controls similarity search execution.
// A nil MinScore keeps every record, including negative scores.
type SearchOptions struct {
	TopK     int
	MinScore *float64
}

// Keeps reports whether score passes the optional threshold.
func (o SearchOptions) Keeps(score float64) bool {
	return o.MinScore == nil || score >= *o.MinScore
}

// Match captures a similarity search result.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// Store exposes the minimal contract for indexing and retrieval.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error)
	Count() int
	Dimension() int
	Close(ctx context.Context) error
}

// Config locates an index directory and selects its on-disk format.
type Config struct {
	Dir    string
	Format knowledge.IndexFormat
	// Dimension is inferred from the first record when zero.
	Dimension int
	ReadOnly  bool
}
