package faqs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists FAQs in the faqs table.
type PostgresRepository struct {
	db pgQuerier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("faqs: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db pgQuerier) *PostgresRepository {
	if db == nil {
		panic("faqs: querier required")
	}
	return &PostgresRepository{db: db}
}

const faqColumns = `id, question, answer, category, keywords, priority, is_active, view_count, helpful_count, created_at, updated_at`

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]FAQ, error) {
	query := `SELECT ` + faqColumns + ` FROM faqs WHERE is_active`
	var args []any
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		query += ` AND category = $1`
	}
	query += ` ORDER BY priority DESC, created_at ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("faqs: list failed: %w", err)
	}
	defer rows.Close()

	out := []FAQ{}
	for rows.Next() {
		f, err := scanFAQ(rows)
		if err != nil {
			return nil, fmt.Errorf("faqs: scan failed: %w", err)
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("faqs: list failed: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*FAQ, error) {
	query := `SELECT ` + faqColumns + ` FROM faqs WHERE id = $1 AND is_active`
	f, err := scanFAQ(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFAQNotFound
		}
		return nil, fmt.Errorf("faqs: select failed: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Create(ctx context.Context, in CreateInput) (*FAQ, error) {
	keywords := in.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	query := `INSERT INTO faqs (id, question, answer, category, keywords, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + faqColumns
	f, err := scanFAQ(r.db.QueryRow(ctx, query, newFAQID(), in.Question, in.Answer, string(in.Category), keywords, in.Priority))
	if err != nil {
		return nil, fmt.Errorf("faqs: insert failed: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, in UpdateInput) (*FAQ, error) {
	var category *string
	if in.Category != nil {
		c := string(*in.Category)
		category = &c
	}
	query := `UPDATE faqs SET
			question = COALESCE($2, question),
			answer = COALESCE($3, answer),
			category = COALESCE($4, category),
			keywords = COALESCE($5, keywords),
			priority = COALESCE($6, priority),
			is_active = COALESCE($7, is_active),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + faqColumns
	f, err := scanFAQ(r.db.QueryRow(ctx, query, id, in.Question, in.Answer, category, in.Keywords, in.Priority, in.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFAQNotFound
		}
		return nil, fmt.Errorf("faqs: update failed: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE faqs SET is_active = false, updated_at = now() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("faqs: delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFAQNotFound
	}
	return nil
}

func scanFAQ(row pgx.Row) (*FAQ, error) {
	var (
		f        FAQ
		category string
	)
	if err := row.Scan(
		&f.ID,
		&f.Question,
		&f.Answer,
		&category,
		&f.Keywords,
		&f.Priority,
		&f.IsActive,
		&f.ViewCount,
		&f.HelpfulCount,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	f.Category = Category(category)
	if f.Keywords == nil {
		f.Keywords = []string{}
	}
	return &f, nil
}
