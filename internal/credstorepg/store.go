package credstorepg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

// Pool is the subset of *pgxpool.Pool used by Store.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const selectCredentialsSQL = `
SELECT
    COALESCE(MAX(value) FILTER (WHERE key = $1), ''),
    COALESCE(MAX(value) FILTER (WHERE key = $2), '')
FROM credentials
WHERE key IN ($1, $2)
`

const upsertCredentialsSQL = `
INSERT INTO credentials (key, value, updated_unix)
VALUES ($1, $2, $5), ($3, $4, $5)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_unix = EXCLUDED.updated_unix
`

const deleteCredentialsSQL = `
DELETE FROM credentials
WHERE key IN ($1, $2)
`

// Store persists the credential pair in the credentials table.
type Store struct {
	pool Pool
	now  func() time.Time
}

// NewStore constructs a Postgres credential store.
func NewStore(pool Pool) *Store {
	return &Store{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Get reads both rows in one query.
func (store *Store) Get(ctx context.Context) (apiclient.Credentials, error) {
	var credentials apiclient.Credentials
	row := store.pool.QueryRow(ctx, selectCredentialsSQL, apiclient.AccessTokenKey, apiclient.RefreshTokenKey)
	if err := row.Scan(&credentials.AccessToken, &credentials.RefreshToken); err != nil {
		return apiclient.Credentials{}, fmt.Errorf("credstore.pgx.get: %w", err)
	}
	if !credentials.Complete() {
		return apiclient.Credentials{}, apiclient.ErrNoCredentials
	}
	return credentials, nil
}

// Set upserts both rows inside a transaction.
func (store *Store) Set(ctx context.Context, credentials apiclient.Credentials) error {
	if !credentials.Complete() {
		return apiclient.ErrIncompleteCredentials
	}
	tx, err := store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("credstore.pgx.set.begin: %w", err)
	}
	_, execErr := tx.Exec(ctx, upsertCredentialsSQL,
		apiclient.AccessTokenKey, credentials.AccessToken,
		apiclient.RefreshTokenKey, credentials.RefreshToken,
		store.now().Unix())
	if execErr != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("credstore.pgx.set: %w", execErr)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("credstore.pgx.set.commit: %w", err)
	}
	return nil
}

// Clear removes both rows.
func (store *Store) Clear(ctx context.Context) error {
	if _, err := store.pool.Exec(ctx, deleteCredentialsSQL, apiclient.AccessTokenKey, apiclient.RefreshTokenKey); err != nil {
		return fmt.Errorf("credstore.pgx.clear: %w", err)
	}
	return nil
}
