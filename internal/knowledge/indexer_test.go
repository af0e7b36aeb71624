package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps known texts to fixed vectors; unknown texts get a vector
// derived from their length.
type fakeEmbedder struct {
	vectors    map[string][]float32
	err        error
	embedCalls int
	batchCalls int
	batchSizes []int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return []float32{float32(len(text)), 1, 0}
}

type failingStore struct {
	*MemoryStore
	failAfter int
	stored    int
}

func (s *failingStore) StoreChunk(ctx context.Context, chunk Chunk) (string, error) {
	if s.stored >= s.failAfter {
		return "", errors.New("disk full")
	}
	s.stored++
	return s.MemoryStore.StoreChunk(ctx, chunk)
}

func TestIndexDocumentBatchesEmbeddings(t *testing.T) {
	store := NewMemoryStore(3)
	embedder := &fakeEmbedder{}
	indexer := NewIndexer(store, embedder, WithChunking(20, 0))

	n, err := indexer.IndexDocument(context.Background(), "First sentence. Second sentence. Third one.", map[string]any{"source": "faq.md"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, embedder.batchCalls)
	assert.Equal(t, []int{3}, embedder.batchSizes)
	assert.Equal(t, 3, store.Len())

	exists, err := store.HasHash(context.Background(), ChunkHash("Second sentence."))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestIndexDocumentAddsHashMetadata(t *testing.T) {
	store := NewMemoryStore(0)
	indexer := NewIndexer(store, &fakeEmbedder{})

	_, err := indexer.IndexDocument(context.Background(), "Shipping takes 3-5 business days.", map[string]any{"source": "shipping.txt"})
	require.NoError(t, err)

	results, err := store.Search(context.Background(), []float32{33, 1, 0}, 5, 0.99)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "shipping.txt", results[0].Source())
	assert.Equal(t, ChunkHash("Shipping takes 3-5 business days."), results[0].Metadata[MetadataChunkHash])
}

func TestIndexDocumentEmpty(t *testing.T) {
	embedder := &fakeEmbedder{}
	n, err := NewIndexer(NewMemoryStore(3), embedder).IndexDocument(context.Background(), "  ", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, embedder.batchCalls)
}

func TestIndexDocumentEmbeddingFailure(t *testing.T) {
	store := NewMemoryStore(3)
	indexer := NewIndexer(store, &fakeEmbedder{err: errors.New("quota")})
	_, err := indexer.IndexDocument(context.Background(), "Some text.", nil)
	require.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestIndexDocumentPartialStoreFailure(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(3), failAfter: 1}
	indexer := NewIndexer(store, &fakeEmbedder{}, WithChunking(20, 0))
	n, err := indexer.IndexDocument(context.Background(), "First sentence. Second sentence. Third one.", nil)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())
}

func TestIndexDocumentSkipDuplicates(t *testing.T) {
	store := NewMemoryStore(3)
	embedder := &fakeEmbedder{}
	indexer := NewIndexer(store, embedder, WithChunking(20, 0), WithSkipDuplicates())
	ctx := context.Background()

	_, err := indexer.IndexDocument(ctx, "First sentence. Second sentence.", nil)
	require.NoError(t, err)
	n, err := indexer.IndexDocument(ctx, "First sentence. Second sentence. Third one.", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, []int{2, 1}, embedder.batchSizes)
}

func TestIndexDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "returns.md"), []byte("Returns are accepted within 30 days."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.json"), []byte(`{"shipping":"free over $50"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{nope`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89, 0x50}, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "faq.txt"), []byte("Contact us any time."), 0o600))

	store := NewMemoryStore(3)
	summary, err := NewIndexer(store, &fakeEmbedder{}).IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalFiles)
	assert.Equal(t, 3, summary.IndexedFiles)
	assert.Equal(t, 3, summary.TotalChunks)
	require.Len(t, summary.Errors, 1)
	assert.True(t, strings.HasPrefix(summary.Errors[0], "broken.json"))
}

func TestIndexDirectoryMissing(t *testing.T) {
	_, err := NewIndexer(NewMemoryStore(3), &fakeEmbedder{}).IndexDirectory(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
