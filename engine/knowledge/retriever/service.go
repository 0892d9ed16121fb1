package retriever

import (
	"context"
	"errors"
	"time"

	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/janus-koncepts/wabot/engine/core"
	"github.com/janus-koncepts/wabot/engine/knowledge"
	"github.com/janus-koncepts/wabot/engine/knowledge/vectordb"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

// MetaScore carries the similarity score on returned documents.
const MetaScore = "score"

// QueryEmbedder embeds a single question.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the read side of a vector index.
type Searcher interface {
	Search(ctx context.Context, query []float32, opts vectordb.SearchOptions) ([]vectordb.Match, error)
}

// Service returns the chunks nearest to a query. It satisfies schema.Retriever.
type Service struct {
	embedder QueryEmbedder
	store    Searcher
	topK     int
	minScore *float64
	tracer   trace.Tracer
}

var _ schema.Retriever = (*Service)(nil)

func NewService(emb QueryEmbedder, store Searcher, topK int) (*Service, error) {
	if emb == nil {
		return nil, errors.New("retriever: embedder is required")
	}
	if store == nil {
		return nil, errors.New("retriever: vector store is required")
	}
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	return &Service{
		embedder: emb,
		store:    store,
		topK:     topK,
		tracer:   otel.Tracer("wabot.knowledge.retriever"),
	}, nil
}

// WithMinScore drops matches scoring below threshold.
func (s *Service) WithMinScore(threshold float64) *Service {
	clone := *s
	clone.minScore = &threshold
	return &clone
}

func (s *Service) TopK() int {
	return s.topK
}

func (s *Service) GetRelevantDocuments(ctx context.Context, query string) (docs []schema.Document, err error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "wabot.knowledge.retriever.retrieve", trace.WithAttributes(
		attribute.Int("top_k", s.topK),
		attribute.Int("query_length", len(query)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("results", len(docs)))
		}
		span.End()
		knowledge.RecordQueryLatency(ctx, time.Since(start))
	}()

	log.Debug("Knowledge retrieval started", "query_length", len(query))
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.Search(ctx, vector, vectordb.SearchOptions{TopK: s.topK, MinScore: s.minScore})
	if err != nil {
		return nil, err
	}
	docs = make([]schema.Document, 0, len(matches))
	for i := range matches {
		metadata := core.CloneMap(matches[i].Metadata)
		if metadata == nil {
			metadata = make(map[string]any, 1)
		}
		metadata[MetaScore] = matches[i].Score
		docs = append(docs, schema.Document{
			PageContent: matches[i].Text,
			Metadata:    metadata,
			Score:       float32(matches[i].Score),
		})
	}
	log.Debug("Knowledge retrieval finished", "results", len(docs), "duration", time.Since(start))
	return docs, nil
}
