// Package storage contains the backend-agnostic database contract used by
// the warehouse loader, a registry of backends and transaction helpers.
//
// Backends register a Factory under a kind name from their init function;
// importing internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Dialects of the built-in backends.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
	MSSQL    = "mssql"
)

// DB is a warehouse connection.
type DB interface {
	// Dialect names the SQL flavour, one of the constants above.
	Dialect() string
	Exec(ctx context.Context, sql string, args ...any) error
	// Query runs sql and returns every row materialized.
	Query(ctx context.Context, sql string, args ...any) ([][]any, error)
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a transaction on a DB.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) ([][]any, error)
	// CopyInto bulk inserts rows aligned to columns using the backend's
	// fastest path and returns the number of rows written.
	CopyInto(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a DB for cfg.
type Factory func(ctx context.Context, cfg Config) (DB, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs f under kind, replacing any previous factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds lists the registered backends in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open returns a DB from the factory registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (DB, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	db, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Kind, err)
	}
	return db, nil
}

// WithTx runs fn inside a transaction on db. The transaction commits only
// when fn returns nil; any error or panic rolls it back. A panic is re-raised
// after the rollback.
func WithTx(ctx context.Context, db DB, fn func(Tx) error) (err error) {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rerr := tx.Rollback(ctx); rerr != nil && err == nil {
			err = fmt.Errorf("rollback: %w", rerr)
		}
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
