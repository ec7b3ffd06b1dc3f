package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Execer is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type rowQuerier interface {
	Execer
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresGuard stores processed request ids in processed_webhooks. The
// primary key on request_id arbitrates concurrent deliveries.
type PostgresGuard struct {
	db rowQuerier
}

func NewPostgresGuard(pool *pgxpool.Pool) *PostgresGuard {
	if pool == nil {
		panic("idempotency: pgx pool required")
	}
	return &PostgresGuard{db: pool}
}

func newPostgresGuardWithExec(db rowQuerier) *PostgresGuard {
	if db == nil {
		panic("idempotency: exec required")
	}
	return &PostgresGuard{db: db}
}

// IsDuplicate checks whether the request id has a processed_webhooks row.
func (g *PostgresGuard) IsDuplicate(ctx context.Context, requestID string) (bool, error) {
	var exists int
	err := g.db.QueryRow(ctx, `SELECT 1 FROM processed_webhooks WHERE request_id = $1`, requestID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("idempotency: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed records the request id outside of any caller transaction.
func (g *PostgresGuard) MarkProcessed(ctx context.Context, requestID string) error {
	return Mark(ctx, g.db, requestID)
}

// Mark inserts requestID through q, which is usually the transaction that
// carries the rest of the delivery's writes. Losing the insert race yields
// ErrDuplicate.
func Mark(ctx context.Context, q Execer, requestID string) error {
	ct, err := q.Exec(ctx, `
		INSERT INTO processed_webhooks (request_id)
		VALUES ($1)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID)
	if err != nil {
		return fmt.Errorf("idempotency: mark processed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}
