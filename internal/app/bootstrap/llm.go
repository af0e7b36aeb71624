package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/support-ai-platform/internal/config"
	"github.com/wolfman30/support-ai-platform/internal/conversation"
	"github.com/wolfman30/support-ai-platform/internal/llm"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

// LLMProviders is the completion client and embedder selected from config.
type LLMProviders struct {
	Provider string
	Model    string
	Client   llm.Client
	Embedder llm.Embedder

	close func() error
}

// Close releases provider connections.
func (p *LLMProviders) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

// BuildLLM selects the provider named by LLM_PROVIDER. A provider without
// credentials is replaced by llm.Unconfigured so the process still starts;
// chat turns then fail with a service-unavailable reply.
func BuildLLM(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*LLMProviders, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if provider == "" {
		provider = "openai"
	}
	out := &LLMProviders{Provider: provider}

	switch provider {
	case "openai":
		out.Model = cfg.OpenAIModel
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			logger.Warn("OPENAI_API_KEY not set; chat completions disabled")
			out.Client = llm.Unconfigured{Provider: provider}
			out.Embedder = llm.Unconfigured{Provider: provider}
			return out, nil
		}
		client := openAIClient(cfg)
		out.Client = client
		out.Embedder = client

	case "bedrock":
		out.Model = cfg.BedrockModelID
		api := bedrockruntime.NewFromConfig(awsCfg)
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			logger.Warn("BEDROCK_MODEL_ID not set; chat completions disabled")
			out.Client = llm.Unconfigured{Provider: provider}
		} else {
			out.Client = llm.NewBedrockClient(api)
		}
		out.Embedder = bedrockEmbedder(cfg, api, logger)

	case "gemini":
		out.Model = cfg.GeminiModel
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			logger.Warn("GEMINI_API_KEY not set; chat completions disabled")
			out.Client = llm.Unconfigured{Provider: provider}
			out.Embedder = llm.Unconfigured{Provider: provider}
			return out, nil
		}
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		out.Client = client
		out.Embedder = client
		out.close = client.Close

	default:
		return nil, fmt.Errorf("bootstrap: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	logger.Info("llm provider configured", "provider", provider, "model", out.Model)
	return out, nil
}

// bedrockEmbedder prefers a Bedrock embedding model and falls back to OpenAI
// embeddings when only an OpenAI key is present.
func bedrockEmbedder(cfg *appconfig.Config, api *bedrockruntime.Client, logger *logging.Logger) llm.Embedder {
	if id := strings.TrimSpace(cfg.BedrockEmbeddingModelID); id != "" {
		return llm.NewBedrockEmbedder(api, id)
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		return openAIClient(cfg)
	}
	logger.Warn("no embedding model configured; knowledge retrieval disabled")
	return llm.Unconfigured{Provider: "bedrock"}
}

func openAIClient(cfg *appconfig.Config) *llm.OpenAIClient {
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		EmbeddingModel: cfg.OpenAIEmbedModel,
		Dimensions:     cfg.EmbeddingDimensions,
	})
}

// GeneratorConfig maps the LLM_* settings onto the generator.
func GeneratorConfig(cfg *appconfig.Config, providers *LLMProviders) (conversation.GeneratorConfig, error) {
	gen := conversation.DefaultGeneratorConfig()
	if providers != nil {
		gen.Provider = providers.Provider
		gen.Model = providers.Model
	}
	if cfg == nil {
		return gen, nil
	}
	if cfg.LLMMaxTokens > 0 {
		gen.MaxTokens = cfg.LLMMaxTokens
	}
	gen.Temperature = float32(cfg.LLMTemperature)
	gen.PresencePenalty = float32(cfg.LLMPresencePenalty)
	gen.FrequencyPenalty = float32(cfg.LLMFrequencyPenalty)

	if path := strings.TrimSpace(cfg.EscalationRulesFile); path != "" {
		rules, err := conversation.LoadEscalationRules(path)
		if err != nil {
			return gen, fmt.Errorf("bootstrap: escalation rules: %w", err)
		}
		gen.Rules = rules
	}
	return gen, nil
}
