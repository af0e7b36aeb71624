// Package llm adapts chat-completion and embedding providers to one interface.
package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrRateLimited marks provider throttling; callers surface it as a busy signal.
	ErrRateLimited = errors.New("llm: provider rate limited")
	// ErrNotConfigured is returned at first use when credentials are missing.
	ErrNotConfigured = errors.New("llm: provider not configured")
	// ErrProvider wraps any other provider failure.
	ErrProvider = errors.New("llm: provider error")
)

// Message is a provider-neutral chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Request struct {
	Model            string
	System           []string
	Messages         []Message
	MaxTokens        int
	Temperature      float32
	PresencePenalty  float32
	FrequencyPenalty float32
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
	Model        string
}

// Client produces chat completions.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Embedder converts text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Unconfigured stands in for a provider whose credentials are absent so the
// process can start; every call fails with ErrNotConfigured.
type Unconfigured struct {
	Provider string
}

func (u Unconfigured) Complete(context.Context, Request) (Response, error) {
	return Response{}, u.err()
}

func (u Unconfigured) Embed(context.Context, string) ([]float32, error) {
	return nil, u.err()
}

func (u Unconfigured) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, u.err()
}

func (u Unconfigured) err() error {
	if u.Provider == "" {
		return ErrNotConfigured
	}
	return errors.Join(ErrNotConfigured, errors.New("llm: missing credentials for "+u.Provider))
}

func firstEmbedding(vectors [][]float32, err error) ([]float32, error) {
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.Join(ErrProvider, errors.New("llm: embedding response was empty"))
	}
	return vectors[0], nil
}
