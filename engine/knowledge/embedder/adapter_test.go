package embedder

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-koncepts/wabot/engine/core"
)

type countingEmbedder struct {
	queries int
	err     error
	short   bool
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.short {
		return [][]float32{{1}}, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	c.queries++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{0.5, 0.5}, nil
}

func mockConfig() *Config {
	return &Config{Provider: core.ProviderMock, Model: "hash", BatchSize: 8}
}

func TestAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("Should cache query embeddings when enabled", func(t *testing.T) {
		impl := &countingEmbedder{}
		adapter, err := Wrap(mockConfig(), impl)
		require.NoError(t, err)
		require.NoError(t, adapter.EnableCache(4))
		first, err := adapter.EmbedQuery(ctx, "refund policy")
		require.NoError(t, err)
		first[0] = 99
		second, err := adapter.EmbedQuery(ctx, "refund policy")
		require.NoError(t, err)
		assert.Equal(t, 1, impl.queries)
		assert.Equal(t, []float32{0.5, 0.5}, second)
	})

	t.Run("Should call the provider every time without cache", func(t *testing.T) {
		impl := &countingEmbedder{}
		adapter, err := Wrap(mockConfig(), impl)
		require.NoError(t, err)
		_, _ = adapter.EmbedQuery(ctx, "a")
		_, _ = adapter.EmbedQuery(ctx, "a")
		assert.Equal(t, 2, impl.queries)
	})

	t.Run("Should wrap provider errors with the model name", func(t *testing.T) {
		cause := errors.New("quota exceeded")
		adapter, err := Wrap(mockConfig(), &countingEmbedder{err: cause})
		require.NoError(t, err)
		_, err = adapter.EmbedDocuments(ctx, []string{"x"})
		require.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), `embedder "hash"`)
	})

	t.Run("Should reject a vector count that does not match the input", func(t *testing.T) {
		adapter, err := Wrap(mockConfig(), &countingEmbedder{short: true})
		require.NoError(t, err)
		_, err = adapter.EmbedDocuments(ctx, []string{"a", "b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "received 1 embeddings for 2 texts")
	})

	t.Run("Should reject invalid configuration", func(t *testing.T) {
		_, err := Wrap(&Config{Model: "m", BatchSize: 1}, &countingEmbedder{})
		require.ErrorIs(t, err, errMissingProvider)
		_, err = Wrap(&Config{Provider: core.ProviderMock, BatchSize: 1}, &countingEmbedder{})
		require.ErrorIs(t, err, errMissingModel)
		_, err = Wrap(&Config{Provider: core.ProviderMock, Model: "m"}, &countingEmbedder{})
		require.ErrorIs(t, err, errInvalidBatchSize)
		_, err = Wrap(mockConfig(), nil)
		require.Error(t, err)
	})

	t.Run("Should reject a non-positive cache size", func(t *testing.T) {
		adapter, err := Wrap(mockConfig(), &countingEmbedder{})
		require.NoError(t, err)
		require.Error(t, adapter.EnableCache(0))
	})
}

func TestNew(t *testing.T) {
	t.Run("Should build the hash embedder for the mock provider", func(t *testing.T) {
		cfg := mockConfig()
		cfg.Dimension = 32
		adapter, err := New(context.Background(), cfg)
		require.NoError(t, err)
		vector, err := adapter.EmbedQuery(context.Background(), "hello")
		require.NoError(t, err)
		assert.Len(t, vector, 32)
		assert.Equal(t, core.ProviderMock, adapter.Provider())
		assert.Equal(t, 8, adapter.BatchSize())
	})

	t.Run("Should reject unsupported providers", func(t *testing.T) {
		_, err := New(context.Background(), &Config{Provider: core.ProviderAnthropic, Model: "m", BatchSize: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not supported")
	})
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(64)

	t.Run("Should be deterministic and unit length", func(t *testing.T) {
		a, err := h.EmbedQuery(ctx, "Opening hours are nine to five")
		require.NoError(t, err)
		b, err := h.EmbedQuery(ctx, "opening HOURS are nine to five!")
		require.NoError(t, err)
		assert.Equal(t, a, b)
		var sum float64
		for _, v := range a {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	})

	t.Run("Should return a zero vector for text without tokens", func(t *testing.T) {
		v, err := h.EmbedQuery(ctx, "  ... ")
		require.NoError(t, err)
		assert.Equal(t, make([]float32, 64), v)
	})

	t.Run("Should default the dimension", func(t *testing.T) {
		docs, err := NewHashEmbedder(0).EmbedDocuments(ctx, []string{"a", "b"})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Len(t, docs[0], defaultHashDimension)
	})

	t.Run("Should bucket tokens whose hash sets the top bit", func(t *testing.T) {
		token := ""
		var sum uint32
		for i := 0; token == ""; i++ {
			candidate := fmt.Sprintf("tok%d", i)
			hasher := fnv.New32a()
			_, _ = hasher.Write([]byte(candidate))
			if hasher.Sum32() >= 1<<31 {
				token, sum = candidate, hasher.Sum32()
			}
		}
		odd := NewHashEmbedder(7)
		v, err := odd.EmbedQuery(ctx, token)
		require.NoError(t, err)
		require.Len(t, v, 7)
		assert.InDelta(t, 1.0, v[sum%7], 1e-6)
	})

	t.Run("Should stop on a canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := h.EmbedDocuments(canceled, []string{"a"})
		require.ErrorIs(t, err, context.Canceled)
	})
}
