package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// MockLLM echoes the prompt it receives. It backs the "mock" provider and tests.
type MockLLM struct {
	model string

	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

// NewMockLLM creates a new mock LLM
func NewMockLLM(model string) *MockLLM {
	return &MockLLM{model: model}
}

// WithReply makes the mock return a fixed text.
func (m *MockLLM) WithReply(reply string) *MockLLM {
	m.mu.Lock()
	m.reply = reply
	m.mu.Unlock()
	return m
}

// WithError makes every call fail with err.
func (m *MockLLM) WithError(err error) *MockLLM {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	return m
}

// Prompts returns every prompt seen so far.
func (m *MockLLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockLLM) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, message := range messages {
		if message.Role != llms.ChatMessageTypeHuman && message.Role != llms.ChatMessageTypeSystem {
			continue
		}
		for _, part := range message.Parts {
			if text, ok := part.(llms.TextContent); ok {
				b.WriteString(text.Text)
			}
		}
	}
	text, err := m.respond(b.String())
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}, nil
}

// Call implements the legacy Call interface
func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *MockLLM) respond(prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if m.reply != "" {
		return m.reply, nil
	}
	return "Mock response for: " + prompt, nil
}
