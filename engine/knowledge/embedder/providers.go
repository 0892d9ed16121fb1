package embedder

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/janus-koncepts/wabot/engine/core"
)

// newProviderClient returns the langchaingo client that serves embeddings for cfg.Provider.
func newProviderClient(ctx context.Context, cfg *Config) (embeddings.EmbedderClient, error) {
	switch {
	case cfg.Provider.IsOpenAICompatible():
		opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if url := firstNonEmpty(cfg.BaseURL, cfg.Provider.DefaultBaseURL()); url != "" {
			opts = append(opts, openai.WithBaseURL(url))
		}
		return openai.New(opts...)
	case cfg.Provider == core.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	case cfg.Provider == core.ProviderGoogle:
		opts := []googleai.Option{googleai.WithDefaultEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, googleai.WithAPIKey(cfg.APIKey))
		}
		return googleai.New(ctx, opts...)
	}
	return nil, fmt.Errorf("provider %q is not supported", cfg.Provider)
}

func newProviderEmbedder(ctx context.Context, cfg *Config) (embeddings.Embedder, error) {
	if cfg.Provider == core.ProviderMock {
		return NewHashEmbedder(cfg.Dimension), nil
	}
	client, err := newProviderClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: %w", cfg.Model, err)
	}
	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(cfg.StripNewLines),
	)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: %s client: %w", cfg.Model, cfg.Provider, err)
	}
	return emb, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
