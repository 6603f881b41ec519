package store

import (
	"context"
	"time"

	"notifyx/pkg/circuitbreaker"
)

// BreakerStore decorates a Store with a circuit breaker so a dead backend
// fails fast instead of stalling every ingest and dispatch on timeouts.
type BreakerStore struct {
	inner   Store
	breaker *circuitbreaker.Wrapper
}

func NewBreakerStore(inner Store, breaker *circuitbreaker.Wrapper) *BreakerStore {
	return &BreakerStore{
		inner:   inner,
		breaker: breaker,
	}
}

func (s *BreakerStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.inner.Put(ctx, key, value, ttl)
	})
	s.breaker.RecordRequest(err == nil)
	return err
}

func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	type getResult struct {
		value []byte
		found bool
	}

	result, err := s.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		value, found, err := s.inner.Get(ctx, key)
		return getResult{value: value, found: found}, err
	})
	s.breaker.RecordRequest(err == nil)
	if err != nil {
		return nil, false, err
	}

	r := result.(getResult)
	return r.value, r.found, nil
}

func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.inner.Delete(ctx, key)
	})
	s.breaker.RecordRequest(err == nil)
	return err
}

func (s *BreakerStore) ListPush(ctx context.Context, key, item string) error {
	_, err := s.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.inner.ListPush(ctx, key, item)
	})
	s.breaker.RecordRequest(err == nil)
	return err
}

func (s *BreakerStore) ListTrim(ctx context.Context, key string, maxLen int64) error {
	_, err := s.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.inner.ListTrim(ctx, key, maxLen)
	})
	s.breaker.RecordRequest(err == nil)
	return err
}

func (s *BreakerStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	result, err := s.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.inner.ListRange(ctx, key, start, stop)
	})
	s.breaker.RecordRequest(err == nil)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.([]string), nil
}

func (s *BreakerStore) ListRemove(ctx context.Context, key, item string) error {
	_, err := s.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.inner.ListRemove(ctx, key, item)
	})
	s.breaker.RecordRequest(err == nil)
	return err
}

func (s *BreakerStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.inner.Expire(ctx, key, ttl)
	})
	s.breaker.RecordRequest(err == nil)
	return err
}
