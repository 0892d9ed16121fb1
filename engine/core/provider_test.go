package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	t.Run("Should normalize case and whitespace", func(t *testing.T) {
		name, err := ParseProvider("  XAI ")
		require.NoError(t, err)
		assert.Equal(t, ProviderXAI, name)
	})

	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := ParseProvider("faiss")
		assert.ErrorContains(t, err, "unsupported provider")
	})
}

func TestProviderConfig_ResolvedURL(t *testing.T) {
	t.Run("Should fall back to the hosted xAI endpoint", func(t *testing.T) {
		cfg := NewProviderConfig(ProviderXAI, "grok-3-mini", "key")
		assert.Equal(t, "https://api.x.ai/v1", cfg.ResolvedURL())
	})

	t.Run("Should prefer an explicit URL", func(t *testing.T) {
		cfg := &ProviderConfig{Provider: ProviderXAI, APIURL: "http://localhost:8080/v1"}
		assert.Equal(t, "http://localhost:8080/v1", cfg.ResolvedURL())
	})

	t.Run("Should return empty for providers without a default", func(t *testing.T) {
		assert.Equal(t, "", (&ProviderConfig{Provider: ProviderOpenAI}).ResolvedURL())
		assert.True(t, ProviderOpenAI.IsOpenAICompatible())
		assert.False(t, ProviderOllama.IsOpenAICompatible())
	})
}
