// Package credstore provides persistent implementations of apiclient.CredentialStore.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tyemirov/taxpilot/internal/credstorepg"
	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

var (
	// ErrUnsupportedScheme indicates a credential store URL with an unknown scheme.
	ErrUnsupportedScheme = errors.New("credstore.unsupported_scheme")
	// ErrEmptyStoreURL indicates a blank credential store URL.
	ErrEmptyStoreURL = errors.New("credstore.empty_url")
)

// Handle is an opened credential store plus the resources it holds.
type Handle struct {
	apiclient.CredentialStore
	// Description names the backend without secrets, e.g. "file:/home/u/.config/taxpilot/credentials.json".
	Description string
	closer      io.Closer
}

// Close releases connections held by the store.
func (handle *Handle) Close() error {
	if handle.closer == nil {
		return nil
	}
	return handle.closer.Close()
}

type closerFunc func() error

func (fn closerFunc) Close() error {
	return fn()
}

// Open builds a credential store from storeURL. Supported schemes:
// memory://, file://<path>, sqlite://<path>, postgres://..., pgx://... and redis://...
// A redis URL may carry a "prefix" query parameter naming the hash namespace.
func Open(ctx context.Context, storeURL string, logger *zap.Logger) (*Handle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	trimmed := strings.TrimSpace(storeURL)
	if trimmed == "" {
		return nil, fmt.Errorf("credstore.open: %w", ErrEmptyStoreURL)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("credstore.open.parse_url: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)

	var handle *Handle
	switch scheme {
	case "memory":
		handle = &Handle{CredentialStore: apiclient.NewMemoryCredentialStore(), Description: "memory"}
	case "file":
		fileStore, fileErr := NewFileStore(filePathFromURL(parsed))
		if fileErr != nil {
			return nil, fileErr
		}
		handle = &Handle{CredentialStore: fileStore, Description: "file:" + fileStore.Path()}
	case "sqlite", "sqlite3", "postgres", "postgresql":
		databaseStore, databaseErr := NewDatabaseStore(ctx, trimmed)
		if databaseErr != nil {
			return nil, databaseErr
		}
		handle = &Handle{CredentialStore: databaseStore, Description: databaseStore.Driver(), closer: databaseStore}
	case "pgx":
		handle, err = openPgx(ctx, parsed)
		if err != nil {
			return nil, err
		}
	case "redis", "rediss":
		handle, err = openRedis(ctx, parsed)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("credstore.open.%s: %w", scheme, ErrUnsupportedScheme)
	}

	logger.Debug("credential store opened",
		zap.String("code", "credstore.open"),
		zap.String("backend", handle.Description))
	return handle, nil
}

func openPgx(ctx context.Context, parsed *url.URL) (*Handle, error) {
	postgresURL := *parsed
	postgresURL.Scheme = "postgres"
	pool, err := credstorepg.BuildPool(ctx, postgresURL.String())
	if err != nil {
		return nil, fmt.Errorf("credstore.open.pgx: %w", err)
	}
	if err := credstorepg.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("credstore.open.pgx.schema: %w", err)
	}
	return &Handle{
		CredentialStore: credstorepg.NewStore(pool),
		Description:     "pgx",
		closer:          closerFunc(func() error { pool.Close(); return nil }),
	}, nil
}

func openRedis(ctx context.Context, parsed *url.URL) (*Handle, error) {
	query := parsed.Query()
	prefix := query.Get("prefix")
	query.Del("prefix")
	redisURL := *parsed
	redisURL.RawQuery = query.Encode()

	options, err := redis.ParseURL(redisURL.String())
	if err != nil {
		return nil, fmt.Errorf("credstore.open.redis: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("credstore.open.redis.ping: %w", err)
	}
	redisStore := NewRedisStore(client, prefix)
	return &Handle{CredentialStore: redisStore, Description: "redis:" + redisStore.Key(), closer: client}, nil
}

// filePathFromURL accepts file:///abs/path, file://relative/path and file:relative.
func filePathFromURL(parsed *url.URL) string {
	switch {
	case parsed.Opaque != "":
		return parsed.Opaque
	case parsed.Host != "":
		return parsed.Host + parsed.Path
	default:
		return parsed.Path
	}
}
