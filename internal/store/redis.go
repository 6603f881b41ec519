package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"notifyx/pkg/metrics"
)

// RedisStore is the production Store. Every operation maps to a single Redis
// command, which gives the single-key atomicity the contract requires.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.client.Set(ctx, key, value, ttl).Err()
	metrics.ObserveStoreOperation(time.Since(start), "put", err)
	if err != nil {
		return fmt.Errorf("redis SET %s failed: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveStoreOperation(time.Since(start), "get", nil)
		return nil, false, nil
	}
	metrics.ObserveStoreOperation(time.Since(start), "get", err)
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %s failed: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.client.Del(ctx, key).Err()
	metrics.ObserveStoreOperation(time.Since(start), "delete", err)
	if err != nil {
		return fmt.Errorf("redis DEL %s failed: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ListPush(ctx context.Context, key, item string) error {
	start := time.Now()
	err := s.client.LPush(ctx, key, item).Err()
	metrics.ObserveStoreOperation(time.Since(start), "list_push", err)
	if err != nil {
		return fmt.Errorf("redis LPUSH %s failed: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ListTrim(ctx context.Context, key string, maxLen int64) error {
	start := time.Now()
	err := s.client.LTrim(ctx, key, 0, maxLen-1).Err()
	metrics.ObserveStoreOperation(time.Since(start), "list_trim", err)
	if err != nil {
		return fmt.Errorf("redis LTRIM %s failed: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	began := time.Now()
	items, err := s.client.LRange(ctx, key, start, stop).Result()
	metrics.ObserveStoreOperation(time.Since(began), "list_range", err)
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE %s failed: %w", key, err)
	}
	return items, nil
}

func (s *RedisStore) ListRemove(ctx context.Context, key, item string) error {
	start := time.Now()
	err := s.client.LRem(ctx, key, 1, item).Err()
	metrics.ObserveStoreOperation(time.Since(start), "list_remove", err)
	if err != nil {
		return fmt.Errorf("redis LREM %s failed: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	start := time.Now()
	err := s.client.Expire(ctx, key, ttl).Err()
	metrics.ObserveStoreOperation(time.Since(start), "expire", err)
	if err != nil {
		return fmt.Errorf("redis EXPIRE %s failed: %w", key, err)
	}
	return nil
}
