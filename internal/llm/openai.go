package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openAIAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIClient implements Client and Embedder on the OpenAI API.
type OpenAIClient struct {
	api        openAIAPI
	embedModel string
	dimensions int
}

// OpenAIConfig selects credentials and models for the OpenAI provider.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	Dimensions     int
}

// NewOpenAIClient builds a client against the public API or a compatible BaseURL.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return newOpenAIClientWithAPI(openai.NewClientWithConfig(clientCfg), cfg.EmbeddingModel, cfg.Dimensions)
}

func newOpenAIClientWithAPI(api openAIAPI, embedModel string, dimensions int) *OpenAIClient {
	if api == nil {
		panic("llm: openai client cannot be nil")
	}
	if strings.TrimSpace(embedModel) == "" {
		embedModel = string(openai.SmallEmbedding3)
	}
	return &OpenAIClient{api: api, embedModel: embedModel, dimensions: dimensions}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Model) == "" {
		return Response{}, errors.New("llm: openai model is required")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.System)+len(req.Messages))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: block})
	}
	for _, msg := range req.Messages {
		role, err := openAIRole(msg.Role)
		if err != nil {
			return Response{}, err
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            req.Model,
		Messages:         messages,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
	})
	if err != nil {
		return Response{}, classifyOpenAIError("completion", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: openai returned no choices", ErrProvider)
	}

	choice := resp.Choices[0]
	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return Response{
		Text:         strings.TrimSpace(choice.Message.Content),
		FinishReason: string(choice.FinishReason),
		Model:        model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return firstEmbedding(c.EmbedBatch(ctx, []string{text}))
}

// EmbedBatch requests every embedding in a single API call.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embedModel),
	}
	if c.dimensions > 0 && strings.HasPrefix(c.embedModel, "text-embedding-3") {
		req.Dimensions = c.dimensions
	}
	resp, err := c.api.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError("embedding", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai returned %d embeddings for %d inputs", ErrProvider, len(resp.Data), len(texts))
	}

	data := append([]openai.Embedding(nil), resp.Data...)
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, item := range data {
		out[i] = item.Embedding
	}
	return out, nil
}

func openAIRole(role string) (string, error) {
	switch role {
	case RoleSystem:
		return openai.ChatMessageRoleSystem, nil
	case RoleUser:
		return openai.ChatMessageRoleUser, nil
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant, nil
	default:
		return "", fmt.Errorf("llm: unsupported role %q", role)
	}
}

func classifyOpenAIError(op string, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("llm: openai %s: %w: %w", op, ErrRateLimited, err)
	case http.StatusUnauthorized:
		return fmt.Errorf("llm: openai %s: %w: %w", op, ErrNotConfigured, err)
	default:
		return fmt.Errorf("llm: openai %s: %w: %w", op, ErrProvider, err)
	}
}
