package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/support-ai-platform/internal/llm"
	"github.com/wolfman30/support-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

// GeneratorConfig fixes the completion parameters for every call.
type GeneratorConfig struct {
	Provider         string
	Model            string
	MaxTokens        int
	Temperature      float32
	PresencePenalty  float32
	FrequencyPenalty float32
	SystemPrompt     string
	Rules            EscalationRules
}

// DefaultGeneratorConfig returns the standard completion parameters.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Provider:         "openai",
		MaxTokens:        1000,
		Temperature:      0.7,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
		SystemPrompt:     DefaultSystemPrompt,
		Rules:            DefaultEscalationRules(),
	}
}

// Generation is the outcome of one completion.
type Generation struct {
	Response          string
	Model             string
	FinishReason      string
	TokensUsed        int
	Escalate          bool
	EscalationTrigger string
}

// Generator produces assistant replies and applies the escalation rules.
type Generator struct {
	client  llm.Client
	cfg     GeneratorConfig
	logger  *logging.Logger
	metrics *metrics.ChatMetrics
	tracer  trace.Tracer
}

type GeneratorOption func(*Generator)

func WithGeneratorLogger(logger *logging.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithGeneratorMetrics(m *metrics.ChatMetrics) GeneratorOption {
	return func(g *Generator) {
		g.metrics = m
	}
}

func NewGenerator(client llm.Client, cfg GeneratorConfig, opts ...GeneratorOption) *Generator {
	if client == nil {
		panic("conversation: llm client required")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if len(cfg.Rules.UserKeywords) == 0 && len(cfg.Rules.ResponsePhrases) == 0 {
		cfg.Rules = DefaultEscalationRules()
	}
	g := &Generator{
		client: client,
		cfg:    cfg,
		logger: logging.Default(),
		tracer: otel.Tracer("support.internal.conversation.generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate answers userMessage given prior history and retrieved context.
// Rate limiting maps to ErrServiceBusy, missing configuration to
// ErrNotConfigured, and any other provider failure to ErrServiceUnavailable.
func (g *Generator) Generate(ctx context.Context, userMessage string, history []Message, contextText string) (*Generation, error) {
	ctx, span := g.tracer.Start(ctx, "conversation.generate", trace.WithAttributes(
		attribute.String("llm.provider", g.cfg.Provider),
		attribute.Int("conversation.history", len(history)),
	))
	defer span.End()

	req := llm.Request{
		Model:            g.cfg.Model,
		System:           []string{BuildSystemPrompt(g.cfg.SystemPrompt, contextText, history)},
		Messages:         BuildMessages(history, userMessage),
		MaxTokens:        g.cfg.MaxTokens,
		Temperature:      g.cfg.Temperature,
		PresencePenalty:  g.cfg.PresencePenalty,
		FrequencyPenalty: g.cfg.FrequencyPenalty,
	}

	start := time.Now()
	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		g.metrics.ObserveCompletion(g.cfg.Provider, "error", time.Since(start))
		return nil, g.classify(err)
	}
	g.metrics.ObserveCompletion(g.cfg.Provider, "ok", time.Since(start))
	g.metrics.AddTokens(g.cfg.Provider, resp.Usage.TotalTokens)

	escalate, trigger := g.cfg.Rules.Check(userMessage, resp.Text)
	span.SetAttributes(attribute.Int("llm.tokens", resp.Usage.TotalTokens), attribute.Bool("conversation.escalate", escalate))

	model := resp.Model
	if model == "" {
		model = g.cfg.Model
	}
	return &Generation{
		Response:          resp.Text,
		Model:             model,
		FinishReason:      resp.FinishReason,
		TokensUsed:        resp.Usage.TotalTokens,
		Escalate:          escalate,
		EscalationTrigger: trigger,
	}, nil
}

func (g *Generator) classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("conversation: generate: %w", err)
	case errors.Is(err, llm.ErrRateLimited):
		g.logger.Warn("completion rate limited", "provider", g.cfg.Provider, "error", err)
		return fmt.Errorf("conversation: generate: %w: %w", ErrServiceBusy, err)
	case errors.Is(err, llm.ErrNotConfigured):
		g.logger.Error("completion provider not configured", "provider", g.cfg.Provider, "error", err)
		return fmt.Errorf("conversation: generate: %w: %w", ErrNotConfigured, err)
	default:
		g.logger.Error("completion failed", "provider", g.cfg.Provider, "error", err)
		return fmt.Errorf("conversation: generate: %w: %w", ErrServiceUnavailable, err)
	}
}
