package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore implements StateStore backed by Redis, so callbacks can
// land on any replica of the service.
type RedisStateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStateStore creates a redis-backed state store.
func NewRedisStateStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStateStore {
	if prefix == "" {
		prefix = "oauth:state"
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &RedisStateStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStateStore) Issue(ctx context.Context) (string, error) {
	state, err := newStateToken()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(state), "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("oauth: store state: %w", err)
	}
	return state, nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) error {
	deleted, err := s.client.Del(ctx, s.key(state)).Result()
	if err != nil {
		return fmt.Errorf("oauth: consume state: %w", err)
	}
	if deleted == 0 {
		return ErrStateUnknown
	}
	return nil
}

func (s *RedisStateStore) key(state string) string {
	return s.prefix + ":" + state
}
