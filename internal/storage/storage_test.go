package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeTx records lifecycle calls.
type fakeTx struct {
	committed, rolledBack bool
	commitErr             error
}

func (f *fakeTx) Exec(context.Context, string, ...any) error              { return nil }
func (f *fakeTx) Query(context.Context, string, ...any) ([][]any, error)   { return nil, nil }
func (f *fakeTx) Commit(context.Context) error                              { f.committed = true; return f.commitErr }
func (f *fakeTx) Rollback(context.Context) error                            { f.rolledBack = true; return nil }
func (f *fakeTx) CopyInto(_ context.Context, _ string, _ []string, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}

type fakeDB struct {
	tx       *fakeTx
	beginErr error
}

func (f *fakeDB) Dialect() string                                         { return "fake" }
func (f *fakeDB) Exec(context.Context, string, ...any) error               { return nil }
func (f *fakeDB) Query(context.Context, string, ...any) ([][]any, error)   { return nil, nil }
func (f *fakeDB) Close() error                                             { return nil }
func (f *fakeDB) BeginTx(context.Context) (Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestRegisterAndOpen(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	Register("fake-open", func(_ context.Context, cfg Config) (DB, error) {
		if cfg.DSN != "dsn" {
			return nil, errors.New("bad dsn")
		}
		return db, nil
	})
	got, err := Open(context.Background(), Config{Kind: "fake-open", DSN: "dsn"})
	if err != nil || got != db {
		t.Fatalf("Open=(%v,%v); want registered db", got, err)
	}
	if _, err := Open(context.Background(), Config{Kind: "fake-open", DSN: "x"}); err == nil || !strings.Contains(err.Error(), "bad dsn") {
		t.Fatalf("factory error not wrapped: %v", err)
	}
	if _, err := Open(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Fatalf("unknown kind should fail")
	}
}

func TestWithTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		db := &fakeDB{tx: &fakeTx{}}
		if err := WithTx(ctx, db, func(Tx) error { return nil }); err != nil {
			t.Fatalf("WithTx: %v", err)
		}
		if !db.tx.committed || db.tx.rolledBack {
			t.Fatalf("tx=%+v; want committed only", db.tx)
		}
	})

	t.Run("error_rolls_back", func(t *testing.T) {
		db := &fakeDB{tx: &fakeTx{}}
		boom := errors.New("boom")
		if err := WithTx(ctx, db, func(Tx) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("err=%v; want boom", err)
		}
		if db.tx.committed || !db.tx.rolledBack {
			t.Fatalf("tx=%+v; want rolled back", db.tx)
		}
	})

	t.Run("commit_error_rolls_back", func(t *testing.T) {
		db := &fakeDB{tx: &fakeTx{commitErr: errors.New("disk full")}}
		if err := WithTx(ctx, db, func(Tx) error { return nil }); err == nil {
			t.Fatalf("expected commit error")
		}
		if !db.tx.rolledBack {
			t.Fatalf("expected rollback after failed commit")
		}
	})

	t.Run("panic_rolls_back", func(t *testing.T) {
		db := &fakeDB{tx: &fakeTx{}}
		defer func() {
			if recover() == nil {
				t.Fatalf("panic was swallowed")
			}
			if !db.tx.rolledBack {
				t.Fatalf("expected rollback on panic")
			}
		}()
		_ = WithTx(ctx, db, func(Tx) error { panic("kaboom") })
	})

	t.Run("begin_error", func(t *testing.T) {
		db := &fakeDB{beginErr: errors.New("no conn")}
		if err := WithTx(ctx, db, func(Tx) error { t.Fatal("fn must not run"); return nil }); err == nil {
			t.Fatalf("expected begin error")
		}
	})
}

// TestCopyBatches verifies batch splitting and that the total equals the sum
// of every successful copy.
func TestCopyBatches(t *testing.T) {
	t.Parallel()
	rows := make([][]any, 7)
	for i := range rows {
		rows[i] = []any{i}
	}
	var sizes []int
	total, err := CopyBatches(context.Background(), "t", []string{"c"}, rows, 3, func(_ context.Context, _ []string, b [][]any) (int64, error) {
		sizes = append(sizes, len(b))
		return int64(len(b)), nil
	})
	if err != nil || total != 7 {
		t.Fatalf("total=%d err=%v; want 7", total, err)
	}
	if len(sizes) != 3 || sizes[0] != 3 || sizes[2] != 1 {
		t.Fatalf("batch sizes=%v; want [3 3 1]", sizes)
	}
}

func TestCopyBatches_ErrorStops(t *testing.T) {
	t.Parallel()
	rows := [][]any{{1}, {2}, {3}, {4}}
	calls := 0
	wantErr := errors.New("copy failed")
	total, err := CopyBatches(context.Background(), "t", []string{"c"}, rows, 2, func(_ context.Context, _ []string, b [][]any) (int64, error) {
		calls++
		if calls == 2 {
			return 0, wantErr
		}
		return int64(len(b)), nil
	})
	if !errors.Is(err, wantErr) || total != 2 || calls != 2 {
		t.Fatalf("total=%d calls=%d err=%v", total, calls, err)
	}
	if _, err := CopyBatches(context.Background(), "t", nil, rows, 0, nil); err == nil {
		t.Fatalf("batchSize 0 should fail")
	}
}
