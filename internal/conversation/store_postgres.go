package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/voice-agent/internal/idempotency"
	"github.com/wolfman30/voice-agent/internal/intent"
)

// PgxPool is the subset of *pgxpool.Pool used by PostgresStore.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is satisfied by both the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists conversations in Postgres.
type PostgresStore struct {
	pool PgxPool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func newPostgresStoreWithPool(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const conversationColumns = `id, phone, direction, locale, COALESCE(external_id, ''), start_ts, end_ts, transcript, intents, status, version`

func (s *PostgresStore) RunSession(ctx context.Context, fn func(ctx context.Context, s Session) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("conversation: begin session: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgSession{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("conversation: commit session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Conversation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: get: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) TicketsForConversation(ctx context.Context, conversationID int64) ([]Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, category, status, created_ts, updated_ts, resolved_ts
		FROM tickets
		WHERE conversation_id = $1
		ORDER BY id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: list tickets: %w", err)
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("conversation: scan ticket: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: list tickets: %w", err)
	}
	return out, nil
}

type pgSession struct {
	q Querier
}

func (s *pgSession) MarkProcessed(ctx context.Context, requestID string) error {
	return idempotency.Mark(ctx, s.q, requestID)
}

func (s *pgSession) ConversationByExternalID(ctx context.Context, externalID string) (*Conversation, error) {
	row := s.q.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE external_id = $1 FOR UPDATE`, externalID)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: lookup by external id: %w", err)
	}
	return c, nil
}

func (s *pgSession) ConversationByID(ctx context.Context, id int64) (*Conversation, error) {
	row := s.q.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1 FOR UPDATE`, id)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: lookup by id: %w", err)
	}
	return c, nil
}

func (s *pgSession) InsertConversation(ctx context.Context, c *Conversation) (bool, error) {
	intents, err := encodeIntents(c.Intents)
	if err != nil {
		return false, err
	}
	err = s.q.QueryRow(ctx, `
		INSERT INTO conversations (phone, direction, locale, external_id, start_ts, transcript, intents, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7::jsonb, $8)
		ON CONFLICT (external_id) WHERE external_id IS NOT NULL DO NOTHING
		RETURNING id
	`, c.Phone, string(c.Direction), c.Locale, c.ExternalID, c.StartTS, c.Transcript, intents, string(c.Status)).Scan(&c.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("conversation: insert: %w", err)
	}
	return true, nil
}

func (s *pgSession) UpdateConversation(ctx context.Context, c *Conversation) error {
	intents, err := encodeIntents(c.Intents)
	if err != nil {
		return err
	}
	ct, err := s.q.Exec(ctx, `
		UPDATE conversations SET
			external_id = NULLIF($2, ''),
			transcript = $3,
			intents = $4::jsonb,
			status = $5,
			end_ts = $6,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $7
	`, c.ID, c.ExternalID, c.Transcript, intents, string(c.Status), c.EndTS, c.Version)
	if err != nil {
		return fmt.Errorf("conversation: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("conversation: update %d: stale version %d", c.ID, c.Version)
	}
	c.Version++
	return nil
}

func (s *pgSession) TicketForConversation(ctx context.Context, conversationID int64) (*Ticket, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, conversation_id, category, status, created_ts, updated_ts, resolved_ts
		FROM tickets
		WHERE conversation_id = $1
		FOR UPDATE
	`, conversationID)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: lookup ticket: %w", err)
	}
	return t, nil
}

func (s *pgSession) InsertTicket(ctx context.Context, t *Ticket) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO tickets (conversation_id, category, status, created_ts, updated_ts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.ConversationID, string(t.Category), string(t.Status), t.CreatedTS, t.UpdatedTS).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("conversation: insert ticket: %w", err)
	}
	return nil
}

func (s *pgSession) UpdateTicket(ctx context.Context, t *Ticket) error {
	_, err := s.q.Exec(ctx, `
		UPDATE tickets SET category = $2, updated_ts = $3
		WHERE id = $1
	`, t.ID, string(t.Category), t.UpdatedTS)
	if err != nil {
		return fmt.Errorf("conversation: update ticket: %w", err)
	}
	return nil
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var (
		c         Conversation
		direction string
		status    string
		endTS     *time.Time
		intents   []byte
	)
	if err := row.Scan(&c.ID, &c.Phone, &direction, &c.Locale, &c.ExternalID, &c.StartTS, &endTS, &c.Transcript, &intents, &status, &c.Version); err != nil {
		return nil, err
	}
	c.Direction = Direction(direction)
	c.Status = Status(status)
	c.EndTS = endTS
	decoded, err := decodeIntents(intents)
	if err != nil {
		return nil, err
	}
	c.Intents = decoded
	return &c, nil
}

func scanTicket(row pgx.Row) (*Ticket, error) {
	var (
		t        Ticket
		category string
		status   string
	)
	if err := row.Scan(&t.ID, &t.ConversationID, &category, &status, &t.CreatedTS, &t.UpdatedTS, &t.ResolvedTS); err != nil {
		return nil, err
	}
	t.Category = intent.Label(category)
	t.Status = TicketStatus(status)
	return &t, nil
}

func encodeIntents(labels []intent.Label) (string, error) {
	if labels == nil {
		labels = []intent.Label{}
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("conversation: encode intents: %w", err)
	}
	return string(raw), nil
}

func decodeIntents(raw []byte) ([]intent.Label, error) {
	if len(raw) == 0 {
		return []intent.Label{}, nil
	}
	var labels []intent.Label
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("conversation: decode intents: %w", err)
	}
	if labels == nil {
		labels = []intent.Label{}
	}
	return labels, nil
}
