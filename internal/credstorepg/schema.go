package credstorepg

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of a pgx pool needed to apply the schema.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the credentials table if it does not exist.
func EnsureSchema(ctx context.Context, pool Execer) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credentials (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_unix BIGINT NOT NULL
);
`)
	return err
}
