package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with real TTL expiry. It backs unit
// tests and local development; the semantics (lazy expiry on access, list
// prepend, single-key atomicity via one lock) mirror the Redis
// implementation.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]memoryEntry
	lists   map[string]*memoryList
	nowFunc func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryList struct {
	items     []string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]memoryEntry),
		lists:   make(map[string]*memoryList),
		nowFunc: time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *MemoryStore) SetClock(nowFunc func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = nowFunc
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.nowFunc().Add(ttl)
	}
	s.values[key] = entry
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	if s.expired(entry.expiresAt) {
		delete(s.values, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

func (s *MemoryStore) ListPush(ctx context.Context, key, item string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.liveList(key)
	if l == nil {
		l = &memoryList{}
		s.lists[key] = l
	}
	l.items = append([]string{item}, l.items...)
	return nil
}

func (s *MemoryStore) ListTrim(ctx context.Context, key string, maxLen int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.liveList(key)
	if l == nil {
		return nil
	}
	if int64(len(l.items)) > maxLen {
		l.items = l.items[:maxLen]
	}
	return nil
}

func (s *MemoryStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.liveList(key)
	if l == nil {
		return nil, nil
	}

	length := int64(len(l.items))
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if start > stop {
		return nil, nil
	}

	return append([]string(nil), l.items[start:stop+1]...), nil
}

func (s *MemoryStore) ListRemove(ctx context.Context, key, item string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.liveList(key)
	if l == nil {
		return nil
	}
	for i, existing := range l.items {
		if existing == item {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := s.nowFunc().Add(ttl)
	if entry, ok := s.values[key]; ok {
		entry.expiresAt = deadline
		s.values[key] = entry
	}
	if l := s.liveList(key); l != nil {
		l.expiresAt = deadline
	}
	return nil
}

// liveList returns the list for key, dropping it first if expired. Callers
// must hold the lock.
func (s *MemoryStore) liveList(key string) *memoryList {
	l, ok := s.lists[key]
	if !ok {
		return nil
	}
	if s.expired(l.expiresAt) {
		delete(s.lists, key)
		return nil
	}
	return l
}

func (s *MemoryStore) expired(deadline time.Time) bool {
	return !deadline.IsZero() && s.nowFunc().After(deadline)
}
