package knowledge

import (
	"context"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.5,-1,0.25]", vectorLiteral([]float32{0.5, -1, 0.25}))
	assert.Equal(t, "[]", vectorLiteral(nil))
}

func TestPostgresStoreStoreChunk(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPostgresStoreWithQuerier(mock)
	mock.ExpectExec("INSERT INTO knowledge_chunks").
		WithArgs("chunk-1", "hello", "[1,0]", []byte(`{"chunk_hash":"abc","source":"a.md"}`), "abc", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.StoreChunk(context.Background(), Chunk{
		ID:        "chunk-1",
		Content:   "hello",
		Embedding: []float32{1, 0},
		Metadata:  map[string]any{"source": "a.md", "chunk_hash": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "chunk-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSearch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPostgresStoreWithQuerier(mock)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, content, metadata, created_at").
		WithArgs("[1,0]", 0.7, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "content", "metadata", "created_at", "similarity"}).
			AddRow("c1", "Returns within 30 days.", []byte(`{"source":"returns.md"}`), now, 0.93).
			AddRow("c2", "Shipping info.", []byte(nil), now, 0.71))

	results, err := store.Search(context.Background(), []float32{1, 0}, 5, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "returns.md", results[0].Source())
	assert.Equal(t, "Unknown", results[1].Source())
	assert.InDelta(t, 0.93, results[0].Similarity, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreHasHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPostgresStoreWithQuerier(mock)
	mock.ExpectQuery("SELECT 1 FROM knowledge_chunks").WithArgs("h1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM knowledge_chunks").WithArgs("h2").WillReturnError(pgx.ErrNoRows)

	ok, err := store.HasHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.HasHash(context.Background(), "h2")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
