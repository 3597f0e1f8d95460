package webauthn

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a ChallengeStore backed by a shared Redis instance, for
// deployments where the two steps of a ceremony may land on different
// processes. GETDEL keeps the consume-once guarantee atomic.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a Redis-backed challenge store.
func NewRedisStore(addr, keyPrefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if keyPrefix == "" {
		keyPrefix = "authcore:challenge:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error { return s.client.Close() }

// Put stores a challenge with its TTL.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err()
}

// Take atomically fetches and deletes a challenge.
func (s *RedisStore) Take(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.GetDel(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}
