package credstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

// DefaultRedisPrefix namespaces the credentials hash when no prefix is configured.
const DefaultRedisPrefix = "taxpilot"

// RedisStore keeps the credential pair in one Redis hash.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisStore constructs a store writing to the hash "<prefix>:credentials".
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	trimmedPrefix := strings.Trim(strings.TrimSpace(prefix), ":")
	if trimmedPrefix == "" {
		trimmedPrefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, key: trimmedPrefix + ":credentials"}
}

// Key reports the hash key.
func (store *RedisStore) Key() string {
	return store.key
}

// Get reads both hash fields.
func (store *RedisStore) Get(ctx context.Context) (apiclient.Credentials, error) {
	values, err := store.client.HMGet(ctx, store.key, apiclient.AccessTokenKey, apiclient.RefreshTokenKey).Result()
	if err != nil {
		return apiclient.Credentials{}, fmt.Errorf("credstore.redis.get: %w", err)
	}
	credentials := apiclient.Credentials{
		AccessToken:  hashString(values, 0),
		RefreshToken: hashString(values, 1),
	}
	if !credentials.Complete() {
		return apiclient.Credentials{}, apiclient.ErrNoCredentials
	}
	return credentials, nil
}

// Set writes both fields inside MULTI/EXEC.
func (store *RedisStore) Set(ctx context.Context, credentials apiclient.Credentials) error {
	if !credentials.Complete() {
		return apiclient.ErrIncompleteCredentials
	}
	_, err := store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, store.key,
			apiclient.AccessTokenKey, credentials.AccessToken,
			apiclient.RefreshTokenKey, credentials.RefreshToken)
		return nil
	})
	if err != nil {
		return fmt.Errorf("credstore.redis.set: %w", err)
	}
	return nil
}

// Clear deletes the hash.
func (store *RedisStore) Clear(ctx context.Context) error {
	if err := store.client.Del(ctx, store.key).Err(); err != nil {
		return fmt.Errorf("credstore.redis.clear: %w", err)
	}
	return nil
}

func hashString(values []any, index int) string {
	if index >= len(values) {
		return ""
	}
	text, _ := values[index].(string)
	return text
}
