package embedder

import (
	"context"
	"crypto/sha256"
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/janus-koncepts/wabot/engine/core"
)

// Adapter adds model-scoped errors, output count checks and an optional LRU of
// query vectors on top of a langchaingo embedder. Document vectors bypass the cache.
type Adapter struct {
	cfg  Config
	impl Embedder

	mu      sync.Mutex
	queries *lru.Cache[[sha256.Size]byte, []float32]
}

// New builds the provider client named by cfg and wraps it.
func New(ctx context.Context, cfg *Config) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	impl, err := newProviderEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(cfg, impl)
}

func Wrap(cfg *Config, impl Embedder) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if impl == nil {
		return nil, fmt.Errorf("embedder %q: implementation is required", cfg.Model)
	}
	return &Adapter{cfg: *cfg, impl: impl}, nil
}

func (a *Adapter) Provider() core.ProviderName { return a.cfg.Provider }

func (a *Adapter) Model() string { return a.cfg.Model }

func (a *Adapter) BatchSize() int { return a.cfg.BatchSize }

// EnableCache keeps up to size query vectors keyed by the SHA-256 of the text.
func (a *Adapter) EnableCache(size int) error {
	if size <= 0 {
		return a.wrap(fmt.Errorf("cache size must be greater than zero, got %d", size))
	}
	cache, err := lru.New[[sha256.Size]byte, []float32](size)
	if err != nil {
		return a.wrap(err)
	}
	a.mu.Lock()
	a.queries = cache
	a.mu.Unlock()
	return nil
}

func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := a.impl.EmbedDocuments(ctx, texts)
	switch {
	case err != nil:
		return nil, a.wrap(err)
	case len(vectors) != len(texts):
		return nil, a.wrap(fmt.Errorf("received %d embeddings for %d texts", len(vectors), len(texts)))
	}
	return vectors, nil
}

func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := sha256.Sum256([]byte(text))
	a.mu.Lock()
	cache := a.queries
	a.mu.Unlock()
	if cache != nil {
		if hit, ok := cache.Get(key); ok {
			return slices.Clone(hit), nil
		}
	}
	vector, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, a.wrap(err)
	}
	if cache != nil && len(vector) > 0 {
		cache.Add(key, slices.Clone(vector))
	}
	return vector, nil
}

func (a *Adapter) wrap(err error) error {
	return fmt.Errorf("embedder %q: %w", a.cfg.Model, err)
}
