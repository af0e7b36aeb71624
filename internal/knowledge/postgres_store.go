package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps chunks in the knowledge_chunks table and searches them
// with the pgvector cosine distance operator.
type PostgresStore struct {
	db pgQuerier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("knowledge: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQuerier(db pgQuerier) *PostgresStore {
	if db == nil {
		panic("knowledge: querier required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) StoreChunk(ctx context.Context, chunk Chunk) (string, error) {
	if len(chunk.Embedding) == 0 {
		return "", ErrEmptyEmbedding
	}
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	metadata, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return "", fmt.Errorf("knowledge: marshal metadata: %w", err)
	}
	hash, _ := chunk.Metadata[MetadataChunkHash].(string)

	query := `
		INSERT INTO knowledge_chunks (id, content, embedding, metadata, chunk_hash, created_at)
		VALUES ($1, $2, $3::vector, $4, $5, $6)
	`
	if _, err := s.db.Exec(ctx, query, chunk.ID, chunk.Content, vectorLiteral(chunk.Embedding), metadata, hash, chunk.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && strings.Contains(pgErr.Message, "dimensions") {
			return "", fmt.Errorf("%w: %s", ErrDimensionMismatch, pgErr.Message)
		}
		return "", fmt.Errorf("knowledge: insert chunk: %w", err)
	}
	return chunk.ID, nil
}

func (s *PostgresStore) Search(ctx context.Context, embedding []float32, limit int, threshold float64) ([]SearchResult, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if limit <= 0 {
		limit = DefaultTopK
	}
	query := `
		SELECT id, content, metadata, created_at, 1 - (embedding <=> $1::vector) AS similarity
		FROM knowledge_chunks
		WHERE 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3
	`
	rows, err := s.db.Query(ctx, query, vectorLiteral(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge: search chunks: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r        SearchResult
			metadata []byte
		)
		if err := rows.Scan(&r.ID, &r.Content, &metadata, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("knowledge: scan chunk: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
				return nil, fmt.Errorf("knowledge: decode metadata: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("knowledge: iterate chunks: %w", err)
	}
	return results, nil
}

func (s *PostgresStore) HasHash(ctx context.Context, hash string) (bool, error) {
	var exists int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM knowledge_chunks WHERE chunk_hash = $1 LIMIT 1`, hash).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("knowledge: check chunk hash: %w", err)
	}
	return true, nil
}

// vectorLiteral renders a vector in pgvector's text input format.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
