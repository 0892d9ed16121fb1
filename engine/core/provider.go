package core

import (
	"fmt"
	"strings"
)

// ProviderName identifies a model provider shared by chat and embedding clients.
type ProviderName string

const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderGroq      ProviderName = "groq"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderGoogle    ProviderName = "google"
	ProviderOllama    ProviderName = "ollama"
	ProviderDeepSeek  ProviderName = "deepseek"
	ProviderXAI       ProviderName = "xai"
	ProviderMock      ProviderName = "mock" // Mock provider for testing
)

var defaultBaseURLs = map[ProviderName]string{
	ProviderXAI:      "https://api.x.ai/v1",
	ProviderGroq:     "https://api.groq.com/openai/v1",
	ProviderDeepSeek: "https://api.deepseek.com/v1",
}

// ProviderConfig represents provider-specific connection options.
type ProviderConfig struct {
	Provider    ProviderName
	Model       string
	APIKey      string
	APIURL      string
	Temperature float64
}

// NewProviderConfig creates a new ProviderConfig.
func NewProviderConfig(provider ProviderName, model string, apiKey string) *ProviderConfig {
	return &ProviderConfig{
		Provider: provider,
		Model:    model,
		APIKey:   apiKey,
	}
}

// ParseProvider normalizes a provider name and rejects unknown values.
func ParseProvider(raw string) (ProviderName, error) {
	name := ProviderName(strings.ToLower(strings.TrimSpace(raw)))
	switch name {
	case ProviderOpenAI, ProviderGroq, ProviderAnthropic, ProviderGoogle,
		ProviderOllama, ProviderDeepSeek, ProviderXAI, ProviderMock:
		return name, nil
	default:
		return "", fmt.Errorf("unsupported provider: %q", raw)
	}
}

// IsOpenAICompatible reports whether the provider speaks the OpenAI wire protocol.
func (p ProviderName) IsOpenAICompatible() bool {
	switch p {
	case ProviderOpenAI, ProviderGroq, ProviderDeepSeek, ProviderXAI:
		return true
	default:
		return false
	}
}

// DefaultBaseURL returns the hosted endpoint used when no URL is configured.
func (p ProviderName) DefaultBaseURL() string {
	return defaultBaseURLs[p]
}

// ResolvedURL returns APIURL or the provider default.
func (p *ProviderConfig) ResolvedURL() string {
	if p.APIURL != "" {
		return p.APIURL
	}
	return p.Provider.DefaultBaseURL()
}
