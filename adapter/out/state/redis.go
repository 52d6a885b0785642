// Package state provides OAuth state token stores.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// stateKeyPrefix is the Redis key prefix for OAuth state tokens.
const stateKeyPrefix = "oauth:state:"

// ErrStateNotFound means the state token is unknown, expired or already
// consumed.
var ErrStateNotFound = errors.New("state not found or expired")

// RedisStore is a Redis-backed state store. Tokens expire via Redis TTL
// and are deleted atomically on consumption.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Store saves a state token with a TTL.
func (s *RedisStore) Store(ctx context.Context, state string, ttl time.Duration) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if err := s.client.Set(ctx, stateKeyPrefix+state, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	return nil
}

// Consume validates and deletes a state token in one atomic GETDEL, so a
// replayed callback cannot reuse it.
func (s *RedisStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return ErrStateNotFound
	}
	_, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if err == redis.Nil {
		return ErrStateNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return nil
}
