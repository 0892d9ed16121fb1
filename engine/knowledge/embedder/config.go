package embedder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/janus-koncepts/wabot/engine/core"
)

// Embedder is the langchaingo embedding contract used across the knowledge pipeline.
type Embedder = embeddings.Embedder

var (
	errMissingProvider  = errors.New("embedder provider is required")
	errMissingModel     = errors.New("embedder model is required")
	errInvalidBatchSize = errors.New("embedder batch size must be greater than zero")
)

// Config describes an embedding backend.
type Config struct {
	Provider      core.ProviderName
	Model         string
	APIKey        string
	BaseURL       string
	Dimension     int
	BatchSize     int
	StripNewLines bool
}

func (c *Config) Validate() error {
	switch {
	case c == nil:
		return errors.New("embedder config is required")
	case strings.TrimSpace(string(c.Provider)) == "":
		return errMissingProvider
	case strings.TrimSpace(c.Model) == "":
		return fmt.Errorf("embedder provider %q: %w", c.Provider, errMissingModel)
	case c.BatchSize <= 0:
		return fmt.Errorf("embedder %q: %w", c.Model, errInvalidBatchSize)
	}
	return nil
}
