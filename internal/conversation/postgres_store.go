package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists conversations in the conversations and messages tables.
type PostgresStore struct {
	db     pgQuerier
	tracer trace.Tracer
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return newPostgresStoreWithQuerier(pool)
}

func newPostgresStoreWithQuerier(db pgQuerier) *PostgresStore {
	if db == nil {
		panic("conversation: querier required")
	}
	return &PostgresStore{db: db, tracer: otel.Tracer("support.internal.conversation.store")}
}

const conversationColumns = `c.session_id, c.channel, c.customer_id, c.status, c.metadata, c.created_at, c.updated_at,
		(SELECT count(*) FROM messages m WHERE m.session_id = c.session_id),
		(SELECT max(m.created_at) FROM messages m WHERE m.session_id = c.session_id)`

func (s *PostgresStore) CreateConversation(ctx context.Context, conv Conversation) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.create", trace.WithAttributes(attribute.String("session.id", conv.SessionID)))
	defer span.End()

	if conv.Status == "" {
		conv.Status = StatusActive
	}
	if conv.Channel == "" {
		conv.Channel = ChannelWeb
	}
	meta, err := encodeMetadata(conv.Metadata)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(ctx, `
		INSERT INTO conversations (session_id, channel, customer_id, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, conv.SessionID, string(conv.Channel), nullable(conv.CustomerID), string(conv.Status), meta, now)
	if err != nil {
		// Another request created the same session first.
		if isUniqueViolation(err) {
			return s.GetConversation(ctx, conv.SessionID)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: insert conversation: %w", err)
	}
	conv.CreatedAt = now
	conv.UpdatedAt = now
	return &conv, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, sessionID string) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.get", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	conv, err := scanConversation(s.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations c WHERE c.session_id = $1`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: select conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, sessionID string, status Status) error {
	ctx, span := s.tracer.Start(ctx, "conversation.update_status")
	defer span.End()

	tag, err := s.db.Exec(ctx,
		`UPDATE conversations SET status = $2, updated_at = now() WHERE session_id = $1`,
		sessionID, string(status))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MergeMetadata(ctx context.Context, sessionID string, patch map[string]any) error {
	ctx, span := s.tracer.Start(ctx, "conversation.merge_metadata")
	defer span.End()

	raw, err := encodeMetadata(patch)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE conversations SET metadata = metadata || $2::jsonb, updated_at = now() WHERE session_id = $1`,
		sessionID, raw)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: merge metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, msg Message) (*Message, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.save_message", trace.WithAttributes(attribute.String("session.id", msg.SessionID)))
	defer span.End()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	meta, err := encodeMetadata(msg.Metadata)
	if err != nil {
		return nil, err
	}
	msg.CreatedAt = time.Now().UTC()
	if _, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, session_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.SessionID, string(msg.Role), msg.Content, meta, msg.CreatedAt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: insert message: %w", err)
	}
	if _, err := s.db.Exec(ctx, `UPDATE conversations SET updated_at = $2 WHERE session_id = $1`, msg.SessionID, msg.CreatedAt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: touch conversation: %w", err)
	}
	return &msg, nil
}

func (s *PostgresStore) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.history", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, role, content, metadata, created_at FROM (
			SELECT id, session_id, role, content, metadata, created_at
			FROM messages WHERE session_id = $1
			ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC
	`, sessionID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: select history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m    Message
			role string
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		m.Role = Role(role)
		if m.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: select history: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, filter ListFilter) ([]Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.list")
	defer span.End()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + conversationColumns + ` FROM conversations c`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE c.status = $1`
		args = append(args, string(filter.Status))
	}
	query += fmt.Sprintf(` ORDER BY c.updated_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("conversation: scan conversation: %w", err)
		}
		out = append(out, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: list conversations: %w", err)
	}
	return out, nil
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var (
		c          Conversation
		channel    string
		status     string
		customerID *string
		meta       []byte
		count      int64
	)
	if err := row.Scan(&c.SessionID, &channel, &customerID, &status, &meta, &c.CreatedAt, &c.UpdatedAt, &count, &c.LastMessageAt); err != nil {
		return nil, err
	}
	c.Channel = Channel(channel)
	c.Status = Status(status)
	c.MessageCount = int(count)
	if customerID != nil {
		c.CustomerID = *customerID
	}
	var err error
	if c.Metadata, err = decodeMetadata(meta); err != nil {
		return nil, err
	}
	return &c, nil
}

func encodeMetadata(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("conversation: encode metadata: %w", err)
	}
	return raw, nil
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "{}" {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("conversation: decode metadata: %w", err)
	}
	return meta, nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
