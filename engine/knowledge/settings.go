package knowledge

import (
	"errors"
	"fmt"
	"strings"
)

// IndexFormat selects the on-disk layout of a persisted vector index.
type IndexFormat string

const (
	FormatJSON IndexFormat = "json"
	FormatBolt IndexFormat = "bolt"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultTopK         = 4
)

// Settings describes the single knowledge base served by the bot.
type Settings struct {
	DocumentPath string
	IndexDir     string
	Format       IndexFormat
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	Prompt       string
}

func DefaultSettings() Settings {
	return Settings{
		IndexDir:     "vector_index",
		Format:       FormatJSON,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		TopK:         DefaultTopK,
	}
}

// Validate rejects settings the pipeline cannot honor.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.IndexDir) == "" {
		return errors.New("knowledge: index directory is required")
	}
	switch s.Format {
	case FormatJSON, FormatBolt:
	default:
		return fmt.Errorf("knowledge: unsupported index format %q", s.Format)
	}
	if s.ChunkSize <= 0 {
		return errors.New("knowledge: chunk size must be greater than zero")
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("knowledge: chunk overlap %d must be in [0, %d)", s.ChunkOverlap, s.ChunkSize)
	}
	if s.TopK <= 0 {
		return errors.New("knowledge: top_k must be greater than zero")
	}
	return nil
}
