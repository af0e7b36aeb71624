// Package knowledge indexes support documents as embedded chunks and
// retrieves the ones relevant to a customer query.
package knowledge

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the store's dimensionality.
	ErrDimensionMismatch = errors.New("knowledge: embedding dimension mismatch")
	// ErrEmptyEmbedding rejects chunks stored without a vector.
	ErrEmptyEmbedding = errors.New("knowledge: embedding is empty")
)

// Chunk is one indexed slice of a source document.
type Chunk struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"-"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// Source returns the metadata source label, or "Unknown".
func (c Chunk) Source() string {
	if c.Metadata != nil {
		if s, ok := c.Metadata["source"].(string); ok && s != "" {
			return s
		}
	}
	return "Unknown"
}

// SearchResult is a chunk scored against a query vector.
type SearchResult struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// VectorStore persists chunks and answers similarity queries.
type VectorStore interface {
	StoreChunk(ctx context.Context, chunk Chunk) (string, error)
	// Search returns at most limit chunks with similarity >= threshold,
	// ordered by descending similarity.
	Search(ctx context.Context, embedding []float32, limit int, threshold float64) ([]SearchResult, error)
	HasHash(ctx context.Context, hash string) (bool, error)
}
