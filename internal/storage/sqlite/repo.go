// Package sqlite implements storage.DB on modernc.org/sqlite through
// database/sql. SQLite has no bulk-load API; CopyInto runs a prepared INSERT
// per row inside the caller's transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

// DB wraps a *sql.DB limited to a single connection, so that ":memory:"
// databases are shared by every statement and writers never contend.
type DB struct {
	db *sql.DB
}

// Open opens dsn (a file path or "file:" URI; ":memory:" for tests).
func Open(ctx context.Context, dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Dialect() string { return storage.SQLite }

func (d *DB) Exec(ctx context.Context, q string, args ...any) error {
	_, err := d.db.ExecContext(ctx, q, args...)
	return err
}

func (d *DB) Query(ctx context.Context, q string, args ...any) ([][]any, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (d *DB) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// Tx wraps *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Exec(ctx context.Context, q string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, q, args...)
	return err
}

func (t *Tx) Query(ctx context.Context, q string, args ...any) ([][]any, error) {
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// CopyInto inserts rows with a prepared INSERT INTO table (...) VALUES (?, ...).
func (t *Tx) CopyInto(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyInto: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := t.tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders,
	))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert %s: %w", table, err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			return inserted, fmt.Errorf("sqlite: CopyInto %s: row length %d != columns length %d", table, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, bindArgs(row)...); err != nil {
			return inserted, fmt.Errorf("sqlite: insert %s: %w", table, err)
		}
		inserted++
	}
	return inserted, nil
}

func (t *Tx) Commit(context.Context) error { return t.tx.Commit() }

// Rollback ignores sql.ErrTxDone so it is safe after Commit.
func (t *Tx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// bindArgs stores dates as ISO text; the driver's default time format
// carries a zone suffix that date() and comparisons do not expect.
func bindArgs(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		if t, ok := v.(time.Time); ok {
			if t.Equal(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())) {
				out[i] = t.Format("2006-01-02")
			} else {
				out[i] = t.Format("2006-01-02 15:04:05")
			}
			continue
		}
		out[i] = v
	}
	return out
}

func collect(rows *sql.Rows) ([][]any, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}
