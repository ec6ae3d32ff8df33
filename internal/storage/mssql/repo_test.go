package mssql

import (
	"context"
	"errors"
	"testing"

	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

func TestOpen_InvalidDSN(t *testing.T) {
	t.Parallel()
	if _, err := Open(context.Background(), "sqlserver://sa@localhost?connection+timeout=abc"); err == nil {
		t.Fatalf("expected DSN validation error")
	}
}

func TestRegistered_UsesHook(t *testing.T) {
	orig := newDB
	t.Cleanup(func() { newDB = orig })

	want := errors.New("no server")
	newDB = func(context.Context, string) (storage.DB, error) { return nil, want }
	if _, err := storage.Open(context.Background(), storage.Config{Kind: storage.MSSQL, DSN: "sqlserver://x"}); !errors.Is(err, want) {
		t.Fatalf("err=%v; want hook error", err)
	}
}
