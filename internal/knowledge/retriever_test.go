package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore(2)
	ctx := context.Background()
	chunks := []Chunk{
		{Content: "Returns are accepted within 30 days.", Embedding: []float32{1, 0}, Metadata: map[string]any{"source": "returns.md"}},
		{Content: "Standard shipping takes 3-5 days.", Embedding: []float32{0.8, 0.6}, Metadata: map[string]any{"source": "shipping.md"}},
		{Content: "We are hiring.", Embedding: []float32{0, 1}, Metadata: map[string]any{"source": "careers.md"}},
		{Content: "Refunds go to the original card.", Embedding: []float32{0.95, 0.31}},
	}
	for _, c := range chunks {
		_, err := store.StoreChunk(ctx, c)
		require.NoError(t, err)
	}
	return store
}

func TestGetRelevantContextFormatsInRankOrder(t *testing.T) {
	store := seededStore(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"how do returns work": {1, 0}}}
	r := NewRetriever(store, embedder)

	got := r.GetRelevantContext(context.Background(), "how do returns work", 0)
	want := "[Source 1: returns.md]\nReturns are accepted within 30 days." +
		"\n\n---\n\n[Source 2: Unknown]\nRefunds go to the original card." +
		"\n\n---\n\n[Source 3: shipping.md]\nStandard shipping takes 3-5 days."
	assert.Equal(t, want, got)
}

func TestRetrieveRespectsTopKAndThreshold(t *testing.T) {
	store := seededStore(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	r := NewRetriever(store, embedder, WithThreshold(0.9))

	res, err := r.Retrieve(context.Background(), "q", 1)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, []string{"returns.md"}, res.Sources)

	res, err = r.Retrieve(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
	for _, item := range res.Results {
		assert.GreaterOrEqual(t, item.Similarity, 0.9)
	}
}

func TestGetRelevantContextNoMatches(t *testing.T) {
	store := seededStore(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"q": {-1, 0}}}
	assert.Equal(t, "", NewRetriever(store, embedder).GetRelevantContext(context.Background(), "q", 5))
}

func TestGetRelevantContextDegradesOnFailure(t *testing.T) {
	store := seededStore(t)
	r := NewRetriever(store, &fakeEmbedder{err: errors.New("provider down")})
	assert.Equal(t, "", r.GetRelevantContext(context.Background(), "anything", 5))

	_, err := r.Retrieve(context.Background(), "anything", 5)
	assert.Error(t, err)
}

func TestRetrieveDimensionMismatchDegrades(t *testing.T) {
	store := seededStore(t)
	r := NewRetriever(store, &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}})
	_, err := r.Retrieve(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, "", r.GetRelevantContext(context.Background(), "q", 5))
}

func TestMemoryStoreRejectsMismatchedDimensions(t *testing.T) {
	store := NewMemoryStore(2)
	_, err := store.StoreChunk(context.Background(), Chunk{Content: "x", Embedding: []float32{1, 2, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = store.StoreChunk(context.Background(), Chunk{Content: "x"})
	assert.ErrorIs(t, err, ErrEmptyEmbedding)
}
