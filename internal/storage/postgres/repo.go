// Package postgres implements storage.DB on a pgx v5 connection pool. Bulk
// inserts use COPY FROM inside the caller's transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

// poolLike is the subset of *pgxpool.Pool used here; tests substitute it.
type poolLike interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// DB wraps a pgx pool.
type DB struct {
	pool poolLike
}

// Open connects a pool to dsn and pings it.
func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &DB{pool: pool}, nil
}

func (d *DB) Dialect() string { return storage.Postgres }

func (d *DB) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := d.pool.Exec(ctx, sql, args...)
	return pgError(err)
}

func (d *DB) Query(ctx context.Context, sql string, args ...any) ([][]any, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, pgError(err)
	}
	return collect(rows)
}

func (d *DB) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

// Tx wraps pgx.Tx.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.tx.Exec(ctx, sql, args...)
	return pgError(err)
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) ([][]any, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, pgError(err)
	}
	return collect(rows)
}

// CopyInto runs COPY FROM into table.
func (t *Tx) CopyInto(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := t.tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, pgError(err))
	}
	return n, nil
}

func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

// Rollback ignores pgx.ErrTxClosed so it is safe after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func collect(rows pgx.Rows) ([][]any, error) {
	defer rows.Close()
	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, pgError(rows.Err())
}

// pgError surfaces the server detail and SQLSTATE when present.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s; SQLSTATE %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}
