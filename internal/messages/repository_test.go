package messages

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyx/internal/logger"
	"notifyx/internal/store"
)

func newTestRepository(maxPerUser, maxPerProject int) (*Repository, *store.MemoryStore) {
	s := store.NewMemoryStore()
	return NewRepository(s, logger.NopLogger(), time.Hour, maxPerUser, maxPerProject), s
}

func TestStoreAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(100, 1000)

	stored, err := repo.Store(ctx, "proj", "alice", "hello", "greeting", "webhook", map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)

	msg, found, err := repo.Get(ctx, stored.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alice", msg.Recipient)
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, "webhook", msg.Channel)
	assert.False(t, msg.Read)
	assert.Nil(t, msg.ReadAt)
}

func TestStoreMintsDistinctIDs(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(100, 1000)

	first, err := repo.Store(ctx, "proj", "alice", "hello", "", "webhook", nil)
	require.NoError(t, err)
	second, err := repo.Store(ctx, "proj", "bob", "hello", "", "webhook", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestListForUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(100, 1000)

	for i := 0; i < 3; i++ {
		_, err := repo.Store(ctx, "proj", "alice", fmt.Sprintf("msg-%d", i), "", "webhook", nil)
		require.NoError(t, err)
	}

	msgs, err := repo.ListForUser(ctx, "proj", "alice", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg-2", msgs[0].Message)
	assert.Equal(t, "msg-0", msgs[2].Message)
}

func TestListForUserIsScopedToProjectAndRecipient(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(100, 1000)

	_, err := repo.Store(ctx, "proj-a", "alice", "for alice in a", "", "webhook", nil)
	require.NoError(t, err)
	_, err = repo.Store(ctx, "proj-b", "alice", "for alice in b", "", "webhook", nil)
	require.NoError(t, err)
	_, err = repo.Store(ctx, "proj-a", "bob", "for bob", "", "webhook", nil)
	require.NoError(t, err)

	msgs, err := repo.ListForUser(ctx, "proj-a", "alice", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for alice in a", msgs[0].Message)
}

func TestUserIndexEvictsOldestBeyondCap(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(2, 1000)

	for i := 0; i < 3; i++ {
		_, err := repo.Store(ctx, "proj", "alice", fmt.Sprintf("msg-%d", i), "", "webhook", nil)
		require.NoError(t, err)
	}

	msgs, err := repo.ListForUser(ctx, "proj", "alice", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg-2", msgs[0].Message)
	assert.Equal(t, "msg-1", msgs[1].Message)
}

func TestListForProjectSpansRecipients(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(100, 1000)

	_, err := repo.Store(ctx, "proj", "alice", "one", "", "webhook", nil)
	require.NoError(t, err)
	_, err = repo.Store(ctx, "proj", "bob", "two", "", "webhook", nil)
	require.NoError(t, err)

	msgs, err := repo.ListForProject(ctx, "proj", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Message)
}

func TestListSkipsExpiredMessages(t *testing.T) {
	ctx := context.Background()
	repo, s := newTestRepository(100, 1000)

	first, err := repo.Store(ctx, "proj", "alice", "one", "", "webhook", nil)
	require.NoError(t, err)
	_, err = repo.Store(ctx, "proj", "alice", "two", "", "webhook", nil)
	require.NoError(t, err)

	// Expire the first message but leave its index entry behind.
	require.NoError(t, s.Delete(ctx, "message:"+first.ID))

	msgs, err := repo.ListForUser(ctx, "proj", "alice", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].Message)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(100, 1000)

	stored, err := repo.Store(ctx, "proj", "alice", "hello", "", "webhook", nil)
	require.NoError(t, err)

	msg, found, err := repo.MarkRead(ctx, stored.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, msg.Read)
	require.NotNil(t, msg.ReadAt)

	firstReadAt := *msg.ReadAt
	again, found, err := repo.MarkRead(ctx, stored.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, firstReadAt, *again.ReadAt, "marking twice keeps the original read time")
}

func TestMarkReadUnknownID(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(100, 1000)

	_, found, err := repo.MarkRead(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteRemovesMessageAndIndexEntries(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(100, 1000)

	stored, err := repo.Store(ctx, "proj", "alice", "hello", "", "webhook", nil)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, stored.ID))

	_, found, err := repo.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.False(t, found)

	msgs, err := repo.ListForUser(ctx, "proj", "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, repo.Delete(ctx, stored.ID), "deleting twice is a no-op")
}

func TestUnreadCount(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(100, 1000)

	first, err := repo.Store(ctx, "proj", "alice", "one", "", "webhook", nil)
	require.NoError(t, err)
	_, err = repo.Store(ctx, "proj", "alice", "two", "", "webhook", nil)
	require.NoError(t, err)

	count, err := repo.UnreadCount(ctx, "proj", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, _, err = repo.MarkRead(ctx, first.ID)
	require.NoError(t, err)

	count, err = repo.UnreadCount(ctx, "proj", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProjectStats(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(100, 1000)

	first, err := repo.Store(ctx, "proj", "alice", "one", "", "webhook", nil)
	require.NoError(t, err)
	_, err = repo.Store(ctx, "proj", "bob", "two", "", "webhook", nil)
	require.NoError(t, err)

	_, _, err = repo.MarkRead(ctx, first.ID)
	require.NoError(t, err)

	stats, err := repo.Stats(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMessages)
	assert.Equal(t, 1, stats.UnreadCount)
}
