package idempotency

import (
	"context"
	"errors"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresGuard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	guard := newPostgresGuardWithExec(mock)
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1 FROM processed_webhooks").WithArgs("r1").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	dup, err := guard.IsDuplicate(ctx, "r1")
	if err != nil || !dup {
		t.Fatalf("expected duplicate, got dup=%v err=%v", dup, err)
	}

	mock.ExpectQuery("SELECT 1 FROM processed_webhooks").WithArgs("r2").WillReturnError(pgx.ErrNoRows)
	dup, err = guard.IsDuplicate(ctx, "r2")
	if err != nil || dup {
		t.Fatalf("expected novel request, got dup=%v err=%v", dup, err)
	}

	mock.ExpectExec("INSERT INTO processed_webhooks").WithArgs("r2").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := guard.MarkProcessed(ctx, "r2"); err != nil {
		t.Fatalf("expected mark success, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkLosingInsertRaceIsDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO processed_webhooks").WithArgs("r1").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	err = Mark(context.Background(), mock, "r1")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresGuardWrapsQueryErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	guard := newPostgresGuardWithExec(mock)
	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT 1 FROM processed_webhooks").WithArgs("r3").WillReturnError(boom)
	if _, err := guard.IsDuplicate(context.Background(), "r3"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	mock.ExpectExec("INSERT INTO processed_webhooks").WithArgs("r3").WillReturnError(boom)
	if err := guard.MarkProcessed(context.Background(), "r3"); !errors.Is(err, boom) || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected wrapped exec error, got %v", err)
	}
}
