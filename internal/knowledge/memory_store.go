package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps chunks in process and scores them with cosine similarity.
type MemoryStore struct {
	mu         sync.RWMutex
	dimensions int
	chunks     []Chunk
	hashes     map[string]struct{}
}

// NewMemoryStore creates an empty store. A zero dimensions value is fixed by
// the first stored chunk.
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{dimensions: dimensions, hashes: make(map[string]struct{})}
}

func (s *MemoryStore) StoreChunk(_ context.Context, chunk Chunk) (string, error) {
	if len(chunk.Embedding) == 0 {
		return "", ErrEmptyEmbedding
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimensions == 0 {
		s.dimensions = len(chunk.Embedding)
	}
	if len(chunk.Embedding) != s.dimensions {
		return "", fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch, len(chunk.Embedding), s.dimensions)
	}
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	chunk.Embedding = append([]float32(nil), chunk.Embedding...)
	s.chunks = append(s.chunks, chunk)
	if hash, ok := chunk.Metadata[MetadataChunkHash].(string); ok && hash != "" {
		s.hashes[hash] = struct{}{}
	}
	return chunk.ID, nil
}

func (s *MemoryStore) Search(_ context.Context, embedding []float32, limit int, threshold float64) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimensions != 0 && len(embedding) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch, len(embedding), s.dimensions)
	}

	var results []SearchResult
	for _, chunk := range s.chunks {
		score := cosineSimilarity(embedding, chunk.Embedding)
		if score < threshold {
			continue
		}
		results = append(results, SearchResult{Chunk: chunk, Similarity: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) HasHash(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashes[hash]
	return ok, nil
}

// Len reports the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
