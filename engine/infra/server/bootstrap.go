package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/janus-koncepts/wabot/engine/core"
	"github.com/janus-koncepts/wabot/engine/knowledge"
	"github.com/janus-koncepts/wabot/engine/knowledge/embedder"
	"github.com/janus-koncepts/wabot/engine/knowledge/indexer"
	"github.com/janus-koncepts/wabot/engine/knowledge/loader"
	"github.com/janus-koncepts/wabot/engine/knowledge/qa"
	"github.com/janus-koncepts/wabot/engine/knowledge/retriever"
	"github.com/janus-koncepts/wabot/engine/llm"
	"github.com/janus-koncepts/wabot/engine/whatsapp"
	"github.com/janus-koncepts/wabot/pkg/config"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

const indexRetryBase = 500 * time.Millisecond

// Knowledge is the assembled question-answering side of the service.
// Answerer is never nil; when assembly fails it is a disabled answerer and
// Index is nil.
type Knowledge struct {
	Answerer qa.Answerer
	Index    *indexer.Result
}

// Close releases the opened index store.
func (k *Knowledge) Close(ctx context.Context) error {
	if k == nil || k.Index == nil || k.Index.Store == nil {
		return nil
	}
	return k.Index.Store.Close(ctx)
}

// KnowledgeSettings maps configuration onto the knowledge pipeline settings.
func KnowledgeSettings(cfg *config.Config) knowledge.Settings {
	k := cfg.Knowledge
	return knowledge.Settings{
		DocumentPath: k.DocumentPath,
		IndexDir:     k.IndexDir,
		Format:       knowledge.IndexFormat(k.IndexFormat),
		ChunkSize:    k.ChunkSize,
		ChunkOverlap: k.ChunkOverlap,
		TopK:         k.TopK,
		Prompt:       k.Prompt,
	}
}

// LLMProviderConfig resolves the chat model settings.
func LLMProviderConfig(cfg *config.Config) (*core.ProviderConfig, error) {
	provider, err := core.ParseProvider(cfg.LLM.Provider)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	pc := core.NewProviderConfig(provider, cfg.LLM.Model, cfg.LLM.APIKey.Value())
	pc.APIURL = cfg.LLM.BaseURL
	pc.Temperature = cfg.LLM.Temperature
	return pc, nil
}

// EmbedderConfig resolves the embedding settings. Credentials fall back to the
// LLM values when the embedder shares the same OpenAI-compatible endpoint.
func EmbedderConfig(cfg *config.Config) (*embedder.Config, error) {
	provider, err := core.ParseProvider(cfg.Embedder.Provider)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	ec := &embedder.Config{
		Provider:      provider,
		Model:         cfg.Embedder.Model,
		APIKey:        cfg.Embedder.APIKey.Value(),
		BaseURL:       cfg.Embedder.BaseURL,
		Dimension:     cfg.Embedder.Dimension,
		BatchSize:     cfg.Embedder.BatchSize,
		StripNewLines: true,
	}
	if ec.APIKey == "" {
		ec.APIKey = cfg.LLM.APIKey.Value()
	}
	if ec.BaseURL == "" && provider.IsOpenAICompatible() {
		ec.BaseURL = cfg.LLM.BaseURL
	}
	return ec, nil
}

// NewEmbedder builds the embedding adapter with its query cache enabled.
func NewEmbedder(ctx context.Context, cfg *config.Config) (*embedder.Adapter, error) {
	ec, err := EmbedderConfig(cfg)
	if err != nil {
		return nil, err
	}
	emb, err := embedder.New(ctx, ec)
	if err != nil {
		return nil, err
	}
	if cfg.Embedder.CacheSize > 0 {
		if err := emb.EnableCache(cfg.Embedder.CacheSize); err != nil {
			return nil, err
		}
	}
	return emb, nil
}

// NewIndexer wires the document loader and embedder into an indexer.
func NewIndexer(cfg *config.Config, emb indexer.Embedder) (*indexer.Indexer, error) {
	return indexer.New(
		KnowledgeSettings(cfg),
		loader.New(),
		emb,
		indexer.WithRetry(cfg.Embedder.RetryAttempts, indexRetryBase),
	)
}

// BuildKnowledge loads or builds the index and assembles the answerer. Any
// failure is logged and yields a disabled answerer so the service still starts.
func BuildKnowledge(ctx context.Context, cfg *config.Config) *Knowledge {
	log := logger.FromContext(ctx)
	k, err := buildKnowledge(ctx, cfg)
	if err != nil {
		log.Error("Knowledge base unavailable; answering is disabled", "error", err)
		return &Knowledge{Answerer: qa.Disabled(err)}
	}
	return k
}

func buildKnowledge(ctx context.Context, cfg *config.Config) (*Knowledge, error) {
	pc, err := LLMProviderConfig(cfg)
	if err != nil {
		return nil, err
	}
	model, err := llm.NewModel(ctx, pc)
	if err != nil {
		return nil, err
	}
	emb, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ix, err := NewIndexer(cfg, emb)
	if err != nil {
		return nil, err
	}
	res, err := ix.LoadOrBuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	ret, err := retriever.NewService(emb, res.Store, cfg.Knowledge.TopK)
	if err != nil {
		return nil, errors.Join(err, res.Store.Close(ctx))
	}
	answerer, err := qa.New(model, ret,
		qa.WithPrompt(cfg.Knowledge.Prompt),
		qa.WithTemperature(cfg.LLM.Temperature),
	)
	if err != nil {
		return nil, errors.Join(err, res.Store.Close(ctx))
	}
	logger.FromContext(ctx).Info("Knowledge base ready",
		"source", res.Source,
		"dir", res.Dir,
		"records", res.Records,
		"llm", pc.Provider,
		"model", pc.Model,
	)
	return &Knowledge{Answerer: answerer, Index: res}, nil
}

// NewSender builds the Graph API reply client.
func NewSender(cfg *config.Config) *whatsapp.Client {
	wa := cfg.WhatsApp
	return whatsapp.NewClient(whatsapp.ClientConfig{
		BaseURL:       wa.APIBaseURL,
		APIVersion:    wa.APIVersion,
		PhoneNumberID: wa.PhoneNumberID,
		AccessToken:   wa.AccessToken.Value(),
		Timeout:       wa.Timeout,
	})
}
