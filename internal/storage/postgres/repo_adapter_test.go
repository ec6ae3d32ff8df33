package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

// TestRegistered_UsesHook verifies the init registration routes through the
// newDB hook with the configured DSN, without a live server.
func TestRegistered_UsesHook(t *testing.T) {
	orig := newDB
	t.Cleanup(func() { newDB = orig })

	var gotDSN string
	want := errors.New("no server")
	newDB = func(_ context.Context, dsn string) (storage.DB, error) {
		gotDSN = dsn
		return nil, want
	}
	_, err := storage.Open(context.Background(), storage.Config{Kind: storage.Postgres, DSN: "postgres://x"})
	if !errors.Is(err, want) {
		t.Fatalf("err=%v; want hook error", err)
	}
	if gotDSN != "postgres://x" {
		t.Fatalf("dsn=%q", gotDSN)
	}
}

func TestPgError_AddsDetail(t *testing.T) {
	t.Parallel()
	base := &pgconn.PgError{Message: "insert or update violates foreign key", Detail: "Key (customer_key)=(9) is not present", Code: "23503"}
	err := pgError(base)
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("wrapped error lost *pgconn.PgError")
	}
	if got := err.Error(); got == base.Error() {
		t.Fatalf("detail not added: %s", got)
	}
	if pgError(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}
