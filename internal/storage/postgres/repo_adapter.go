package postgres

import (
	"context"

	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

// newDB is a test hook that points to Open by default.
var newDB = func(ctx context.Context, dsn string) (storage.DB, error) { return Open(ctx, dsn) }

func init() {
	storage.Register(storage.Postgres, func(ctx context.Context, cfg storage.Config) (storage.DB, error) {
		return newDB(ctx, cfg.DSN)
	})
}
