package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Hour))

	value, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), value)
}

func TestMemoryStoreGetAbsentIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	value, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(2 * time.Minute)

	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "expired key should read as absent")
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), 0))
	require.NoError(t, s.Delete(ctx, "k"))

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreListPushPrepends(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.ListPush(ctx, "l", "a"))
	require.NoError(t, s.ListPush(ctx, "l", "b"))
	require.NoError(t, s.ListPush(ctx, "l", "c"))

	items, err := s.ListRange(ctx, "l", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, items)
}

func TestMemoryStoreListRangeBounds(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.ListPush(ctx, "l", "a"))
	require.NoError(t, s.ListPush(ctx, "l", "b"))

	items, err := s.ListRange(ctx, "l", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, items)

	items, err = s.ListRange(ctx, "l", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemoryStoreListRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.ListPush(ctx, "l", "a"))
	require.NoError(t, s.ListPush(ctx, "l", "b"))
	require.NoError(t, s.ListPush(ctx, "l", "a"))

	require.NoError(t, s.ListRemove(ctx, "l", "a"))

	items, err := s.ListRange(ctx, "l", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, items, "only the first occurrence is removed")
}

func TestMemoryStoreListExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.ListPush(ctx, "l", "a"))
	require.NoError(t, s.Expire(ctx, "l", time.Minute))

	now = now.Add(2 * time.Minute)

	items, err := s.ListRange(ctx, "l", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}
