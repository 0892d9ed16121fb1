package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"

	"github.com/janus-koncepts/wabot/engine/llm"
)

type staticRetriever struct {
	docs    []schema.Document
	err     error
	queries []string
}

func (s *staticRetriever) GetRelevantDocuments(_ context.Context, query string) ([]schema.Document, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.docs, nil
}

func TestService(t *testing.T) {
	ctx := context.Background()
	docs := []schema.Document{
		{PageContent: "The shop opens at 9am."},
		{PageContent: "Returns are accepted within 30 days."},
	}

	t.Run("Should stuff retrieved chunks and the question into one prompt", func(t *testing.T) {
		model := llm.NewMockLLM("mock").WithReply("  We open at 9am.  ")
		retriever := &staticRetriever{docs: docs}
		svc, err := New(model, retriever)
		require.NoError(t, err)
		answer, err := svc.Answer(ctx, "When do you open?")
		require.NoError(t, err)
		assert.Equal(t, "We open at 9am.", answer)
		assert.Equal(t, []string{"When do you open?"}, retriever.queries)
		prompts := model.Prompts()
		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], "The shop opens at 9am.\n\nReturns are accepted within 30 days.")
		assert.Contains(t, prompts[0], "Question: When do you open?")
		assert.True(t, svc.Ready())
	})

	t.Run("Should use a custom prompt", func(t *testing.T) {
		model := llm.NewMockLLM("mock")
		svc, err := New(model, &staticRetriever{docs: docs}, WithPrompt("CTX={{.context}} Q={{.question}}"))
		require.NoError(t, err)
		answer, err := svc.Answer(ctx, "hours?")
		require.NoError(t, err)
		assert.Contains(t, answer, "Q=hours?")
		assert.Contains(t, answer, "CTX=The shop opens at 9am.")
	})

	t.Run("Should reject a prompt without the question variable", func(t *testing.T) {
		_, err := New(llm.NewMockLLM("mock"), &staticRetriever{}, WithPrompt("{{.context}} only"))
		require.Error(t, err)
	})

	t.Run("Should surface model failures", func(t *testing.T) {
		cause := errors.New("rate limited")
		svc, err := New(llm.NewMockLLM("mock").WithError(cause), &staticRetriever{docs: docs})
		require.NoError(t, err)
		_, err = svc.Answer(ctx, "q")
		require.ErrorIs(t, err, cause)
	})

	t.Run("Should surface retrieval failures", func(t *testing.T) {
		cause := errors.New("index unavailable")
		svc, err := New(llm.NewMockLLM("mock"), &staticRetriever{err: cause})
		require.NoError(t, err)
		_, err = svc.Answer(ctx, "q")
		require.ErrorIs(t, err, cause)
	})

	t.Run("Should require a model and retriever", func(t *testing.T) {
		_, err := New(nil, &staticRetriever{})
		require.Error(t, err)
		_, err = New(llm.NewMockLLM("mock"), nil)
		require.Error(t, err)
	})
}

func TestDisabled(t *testing.T) {
	t.Run("Should always report not ready with its cause", func(t *testing.T) {
		cause := errors.New("document missing")
		answerer := Disabled(cause)
		assert.False(t, answerer.Ready())
		_, err := answerer.Answer(context.Background(), "anything")
		require.ErrorIs(t, err, ErrNotReady)
		require.ErrorIs(t, err, cause)
		assert.Equal(t, cause, Cause(answerer))
	})

	t.Run("Should work without a cause", func(t *testing.T) {
		_, err := Disabled(nil).Answer(context.Background(), "q")
		require.ErrorIs(t, err, ErrNotReady)
		assert.NoError(t, Cause(Disabled(nil)))
	})
}
