package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"github.com/janus-koncepts/wabot/engine/knowledge"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

// ErrNotReady is returned by a disabled answerer.
var ErrNotReady = errors.New("qa: answerer is not ready")

const (
	OutcomeAnswered = "answered"
	OutcomeNotReady = "not_ready"
	OutcomeFailed   = "failed"
)

// DefaultPrompt stuffs every retrieved chunk into one prompt.
const DefaultPrompt = `Use the following pieces of context to answer the question at the end. ` +
	`If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`

// Answerer turns a question into an answer.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
	Ready() bool
}

type Option func(*options)

type options struct {
	prompt      string
	temperature float64
}

// WithPrompt replaces DefaultPrompt. The template must reference {{.context}} and {{.question}}.
func WithPrompt(template string) Option {
	return func(o *options) {
		if strings.TrimSpace(template) != "" {
			o.prompt = template
		}
	}
}

func WithTemperature(t float64) Option {
	return func(o *options) {
		o.temperature = t
	}
}

// Service answers questions with a retrieval QA chain.
type Service struct {
	chain    chains.Chain
	callOpts []chains.ChainCallOption
}

var _ Answerer = (*Service)(nil)

func New(model llms.Model, retriever schema.Retriever, opts ...Option) (*Service, error) {
	if model == nil {
		return nil, errors.New("qa: language model is required")
	}
	if retriever == nil {
		return nil, errors.New("qa: retriever is required")
	}
	cfg := options{prompt: DefaultPrompt}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validatePrompt(cfg.prompt); err != nil {
		return nil, err
	}
	prompt := prompts.NewPromptTemplate(cfg.prompt, []string{"context", "question"})
	stuff := chains.NewStuffDocuments(chains.NewLLMChain(model, prompt))
	svc := &Service{chain: chains.NewRetrievalQA(stuff, retriever)}
	if cfg.temperature > 0 {
		svc.callOpts = append(svc.callOpts, chains.WithTemperature(cfg.temperature))
	}
	return svc, nil
}

func validatePrompt(template string) error {
	for _, variable := range []string{"{{.context}}", "{{.question}}"} {
		if !strings.Contains(template, variable) {
			return fmt.Errorf("qa: prompt must reference %s", variable)
		}
	}
	return nil
}

func (s *Service) Ready() bool {
	return true
}

func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	out, err := chains.Run(ctx, s.chain, question, s.callOpts...)
	if err != nil {
		knowledge.RecordAnswer(ctx, OutcomeFailed)
		return "", fmt.Errorf("qa: run chain: %w", err)
	}
	knowledge.RecordAnswer(ctx, OutcomeAnswered)
	log.Debug("Answer generated", "duration", time.Since(start), "answer_length", len(out))
	return strings.TrimSpace(out), nil
}

type disabled struct {
	cause error
}

// Disabled returns an answerer that always fails with ErrNotReady.
func Disabled(cause error) Answerer {
	return &disabled{cause: cause}
}

func (d *disabled) Ready() bool {
	return false
}

func (d *disabled) Answer(ctx context.Context, _ string) (string, error) {
	knowledge.RecordAnswer(ctx, OutcomeNotReady)
	if d.cause == nil {
		return "", ErrNotReady
	}
	return "", fmt.Errorf("%w: %w", ErrNotReady, d.cause)
}

// Cause returns why a disabled answerer is not ready, or nil.
func Cause(a Answerer) error {
	if d, ok := a.(*disabled); ok {
		return d.cause
	}
	return nil
}
