package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type stubOpenAI struct {
	chatReq   openai.ChatCompletionRequest
	chatResp  openai.ChatCompletionResponse
	chatErr   error
	embedReq  openai.EmbeddingRequest
	embedResp openai.EmbeddingResponse
	embedErr  error
	calls     int
}

func (s *stubOpenAI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.chatReq = req
	return s.chatResp, s.chatErr
}

func (s *stubOpenAI) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	s.calls++
	if req, ok := conv.(openai.EmbeddingRequest); ok {
		s.embedReq = req
	}
	return s.embedResp, s.embedErr
}

func TestOpenAIComplete(t *testing.T) {
	api := &stubOpenAI{chatResp: openai.ChatCompletionResponse{
		Model: "gpt-test",
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Content: "  Your order shipped.  "},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	client := newOpenAIClientWithAPI(api, "", 0)

	resp, err := client.Complete(context.Background(), Request{
		Model:            "gpt-test",
		System:           []string{"be helpful"},
		Messages:         []Message{{Role: RoleUser, Content: "where is it?"}},
		MaxTokens:        1000,
		Temperature:      0.7,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Your order shipped.", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	require.Len(t, api.chatReq.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, api.chatReq.Messages[0].Role)
	assert.Equal(t, 1000, api.chatReq.MaxTokens)
	assert.InDelta(t, 0.1, api.chatReq.PresencePenalty, 1e-6)
	assert.InDelta(t, 0.1, api.chatReq.FrequencyPenalty, 1e-6)
}

func TestOpenAICompleteRejectsUnknownRole(t *testing.T) {
	client := newOpenAIClientWithAPI(&stubOpenAI{}, "", 0)
	_, err := client.Complete(context.Background(), Request{
		Model:    "gpt-test",
		Messages: []Message{{Role: "tool", Content: "x"}},
	})
	require.Error(t, err)
}

func TestOpenAIErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, ErrRateLimited},
		{"request error 429", &openai.RequestError{HTTPStatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}, ErrRateLimited},
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, ErrNotConfigured},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}, ErrProvider},
		{"network", errors.New("connection reset"), ErrProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newOpenAIClientWithAPI(&stubOpenAI{chatErr: tt.err}, "", 0)
			_, err := client.Complete(context.Background(), Request{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenAIEmbedBatchSingleCallOrdered(t *testing.T) {
	api := &stubOpenAI{embedResp: openai.EmbeddingResponse{Data: []openai.Embedding{
		{Index: 1, Embedding: []float32{0, 1}},
		{Index: 0, Embedding: []float32{1, 0}},
	}}}
	client := newOpenAIClientWithAPI(api, "text-embedding-3-small", 2)

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, 2, api.embedReq.Dimensions)
}

func TestOpenAIEmbedCountMismatch(t *testing.T) {
	api := &stubOpenAI{embedResp: openai.EmbeddingResponse{Data: []openai.Embedding{{Embedding: []float32{1}}}}}
	client := newOpenAIClientWithAPI(api, "", 0)
	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrProvider)
}

type stubConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (s *stubConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.input = in
	return s.out, s.err
}

func TestBedrockComplete(t *testing.T) {
	api := &stubConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "Hello!"}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(3), OutputTokens: aws.Int32(2), TotalTokens: aws.Int32(5)},
	}}
	client := NewBedrockClient(api)

	resp, err := client.Complete(context.Background(), Request{
		Model:       "anthropic.test",
		System:      []string{"sys"},
		Messages:    []Message{{Role: RoleSystem, Content: "extra"}, {Role: RoleUser, Content: "hi"}},
		MaxTokens:   100,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", resp.Text)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	assert.Len(t, api.input.System, 2)
	assert.Len(t, api.input.Messages, 1)
	assert.Equal(t, int32(100), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
}

func TestBedrockThrottling(t *testing.T) {
	client := NewBedrockClient(&stubConverse{err: &brtypes.ThrottlingException{Message: aws.String("slow")}})
	_, err := client.Complete(context.Background(), Request{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestBedrockMissingModel(t *testing.T) {
	client := NewBedrockClient(&stubConverse{})
	_, err := client.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type stubInvoke struct {
	body  []byte
	calls int
}

func (s *stubInvoke) InvokeModel(_ context.Context, _ *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	s.calls++
	return &bedrockruntime.InvokeModelOutput{Body: s.body}, nil
}

func TestBedrockEmbedder(t *testing.T) {
	api := &stubInvoke{body: []byte(`{"embedding":[0.5,0.25]}`)}
	embedder := NewBedrockEmbedder(api, "amazon.titan-embed-text-v2:0")
	vecs, err := embedder.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
	assert.Equal(t, []float32{0.5, 0.25}, vecs[1])

	_, err = NewBedrockEmbedder(api, "").Embed(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGeminiErrorClassification(t *testing.T) {
	assert.ErrorIs(t, classifyGeminiError("completion", &googleapi.Error{Code: 429}), ErrRateLimited)
	assert.ErrorIs(t, classifyGeminiError("completion", &googleapi.Error{Code: 403}), ErrNotConfigured)
	assert.ErrorIs(t, classifyGeminiError("completion", errors.New("rpc error: code = ResourceExhausted")), ErrRateLimited)
	assert.ErrorIs(t, classifyGeminiError("completion", errors.New("boom")), ErrProvider)
}

func TestUnconfigured(t *testing.T) {
	u := Unconfigured{Provider: "openai"}
	_, err := u.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = u.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
