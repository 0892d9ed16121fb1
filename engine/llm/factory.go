package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/janus-koncepts/wabot/engine/core"
)

// NewModel builds the chat model for the configured provider.
func NewModel(ctx context.Context, p *core.ProviderConfig) (llms.Model, error) {
	if p == nil {
		return nil, errors.New("llm: provider config is required")
	}
	switch p.Provider {
	case core.ProviderOpenAI, core.ProviderXAI, core.ProviderGroq, core.ProviderDeepSeek:
		return createOpenAICompatibleLLM(p)
	case core.ProviderAnthropic:
		return createAnthropicLLM(p)
	case core.ProviderOllama:
		return createOllamaLLM(p)
	case core.ProviderGoogle:
		return createGoogleLLM(ctx, p)
	case core.ProviderMock:
		return NewMockLLM(p.Model), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider: %s", p.Provider)
	}
}

// createOpenAICompatibleLLM covers OpenAI and the hosted APIs that mirror it.
func createOpenAICompatibleLLM(p *core.ProviderConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, openai.WithToken(p.APIKey))
	}
	if baseURL := p.ResolvedURL(); baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create %s client: %w", p.Provider, err)
	}
	return model, nil
}

func createAnthropicLLM(p *core.ProviderConfig) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, anthropic.WithToken(p.APIKey))
	}
	if p.APIURL != "" {
		opts = append(opts, anthropic.WithBaseURL(p.APIURL))
	}
	model, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create anthropic client: %w", err)
	}
	return model, nil
}

func createOllamaLLM(p *core.ProviderConfig) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(p.Model),
	}
	if p.APIURL != "" {
		opts = append(opts, ollama.WithServerURL(p.APIURL))
	}
	model, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create ollama client: %w", err)
	}
	return model, nil
}

func createGoogleLLM(ctx context.Context, p *core.ProviderConfig) (llms.Model, error) {
	if p.APIURL != "" {
		return nil, errors.New("llm: googleai does not support custom API URL")
	}
	opts := []googleai.Option{
		googleai.WithDefaultModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, googleai.WithAPIKey(p.APIKey))
	}
	model, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create googleai client: %w", err)
	}
	return model, nil
}
