package store

import (
	"context"
	"time"
)

// Store is the durable TTL key/value contract the rest of the system is built
// on. All operations are atomic at single-key granularity; there are no
// multi-key transactions. Absence is a normal result, not an error. Callers
// must be able to treat a failing store as degraded, not fatal.
type Store interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error

	// List operations back the recency indexes. ListPush prepends, so index
	// position 0 is always the most recent item.
	ListPush(ctx context.Context, key, item string) error
	ListTrim(ctx context.Context, key string, maxLen int64) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ListRemove(ctx context.Context, key, item string) error

	Expire(ctx context.Context, key string, ttl time.Duration) error
}
