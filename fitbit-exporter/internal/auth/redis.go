package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding the exporter's credentials.
const DefaultRedisKey = "fitbit-exporter:credentials"

// RedisStorage keeps credentials in a single Redis hash.
type RedisStorage struct {
	client *redis.Client
	key    string
}

// NewRedisStorage returns a storage using the hash at key.
func NewRedisStorage(client *redis.Client, key string) *RedisStorage {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStorage{client: client, key: key}
}

// Load reads all credential fields from the hash.
func (r *RedisStorage) Load(ctx context.Context) (Credentials, error) {
	m, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Credentials{}, fmt.Errorf("redis hgetall %s: %w", r.key, err)
	}
	if len(m) == 0 {
		return Credentials{}, fmt.Errorf("%w: redis key %s is empty", ErrMissingCredentials, r.key)
	}
	return Credentials{
		AccessToken:  m[KeyAccessToken],
		RefreshToken: m[KeyRefreshToken],
		ClientID:     m[KeyClientID],
		ClientSecret: m[KeyClientSecret],
		TokenURL:     m[KeyRefreshTokenURL],
		CallbackURL:  m[KeyCallbackURL],
	}, nil
}

// Save writes the token pair with a single HSET.
func (r *RedisStorage) Save(ctx context.Context, c Credentials) error {
	err := r.client.HSet(ctx, r.key, map[string]any{
		KeyAccessToken:  c.AccessToken,
		KeyRefreshToken: c.RefreshToken,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", r.key, err)
	}
	return nil
}

// Import writes every credential field, e.g. when moving from an env file.
func (r *RedisStorage) Import(ctx context.Context, c Credentials) error {
	err := r.client.HSet(ctx, r.key, map[string]any{
		KeyAccessToken:     c.AccessToken,
		KeyRefreshToken:    c.RefreshToken,
		KeyClientID:        c.ClientID,
		KeyClientSecret:    c.ClientSecret,
		KeyRefreshTokenURL: c.TokenURL,
		KeyCallbackURL:     c.CallbackURL,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", r.key, err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
