package store

import (
	"context"
	"fmt"
	"time"
)

// PushCapped adds an id to the front of a bounded recency index. Push, trim
// and expire run in that order as one logical write: a crash between push and
// trim leaves the list slightly over-length rather than dropping the newest
// entry. The trim keeps positions [0, maxLen-1], so overflow evicts the
// oldest id.
func PushCapped(ctx context.Context, s Store, key, id string, maxLen int64, ttl time.Duration) error {
	if err := s.ListPush(ctx, key, id); err != nil {
		return fmt.Errorf("failed to push to index %s: %w", key, err)
	}
	if err := s.ListTrim(ctx, key, maxLen); err != nil {
		return fmt.Errorf("failed to trim index %s: %w", key, err)
	}
	if err := s.Expire(ctx, key, ttl); err != nil {
		return fmt.Errorf("failed to expire index %s: %w", key, err)
	}
	return nil
}

// ReadIndex returns up to limit ids from the front of a recency index. The
// index is a best-effort cache: returned ids may reference expired items and
// must be resolved against the store by the caller, skipping misses.
func ReadIndex(ctx context.Context, s Store, key string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := s.ListRange(ctx, key, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", key, err)
	}
	return ids, nil
}
