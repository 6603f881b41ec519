package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyx/internal/logger"
	"notifyx/internal/store"
	"notifyx/pkg/models"
)

func newTestTracker() (*Tracker, *store.MemoryStore) {
	s := store.NewMemoryStore()
	return NewTracker(s, logger.NopLogger(), time.Hour, 100), s
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	require.NoError(t, tracker.Save(ctx, models.StatusRecord{
		NotificationID: "n-1",
		ProjectID:      "proj",
		Recipients:     []string{"alice"},
		Status:         models.StatusDelivered,
	}))

	record, found, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusDelivered, record.Status)
	assert.Equal(t, "proj", record.ProjectID)
	assert.False(t, record.UpdatedAt.IsZero())
}

func TestGetUnknownIDIsNotAnError(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	_, found, err := tracker.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLastWriteWins(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	require.NoError(t, tracker.Save(ctx, models.StatusRecord{NotificationID: "n-1", Status: models.StatusFailed}))
	require.NoError(t, tracker.Save(ctx, models.StatusRecord{NotificationID: "n-1", Status: models.StatusDelivered}))

	record, found, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusDelivered, record.Status)
}

func TestPendingNeverOverwritesTerminal(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	require.NoError(t, tracker.Save(ctx, models.StatusRecord{NotificationID: "n-1", Status: models.StatusDelivered}))
	require.NoError(t, tracker.Save(ctx, models.StatusRecord{NotificationID: "n-1", Status: models.StatusPending}))

	record, found, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusDelivered, record.Status, "redelivered envelope must not un-finish a notification")
}

func TestPendingOverwritesPending(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	first := models.StatusRecord{NotificationID: "n-1", Status: models.StatusPending, Recipients: []string{"alice"}}
	require.NoError(t, tracker.Save(ctx, first))

	second := models.StatusRecord{NotificationID: "n-1", Status: models.StatusPending, Recipients: []string{"alice", "bob"}}
	require.NoError(t, tracker.Save(ctx, second))

	record, _, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, record.Recipients)
}

func TestRecordPendingIndexesAllRecipients(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	env := models.Envelope{
		ID:         "n-1",
		ProjectID:  "proj",
		Recipients: []string{"alice", "bob"},
		Status:     models.StatusPending,
	}
	require.NoError(t, tracker.RecordPending(ctx, env))

	for _, recipient := range env.Recipients {
		records, err := tracker.ListRecent(ctx, "proj", recipient, 10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "n-1", records[0].NotificationID)
		assert.Equal(t, models.StatusPending, records[0].Status)
	}
}

func TestListRecentNewestFirstAndSkipsMissing(t *testing.T) {
	ctx := context.Background()
	tracker, s := newTestTracker()

	for _, id := range []string{"n-1", "n-2", "n-3"} {
		require.NoError(t, tracker.RecordPending(ctx, models.Envelope{
			ID:         id,
			ProjectID:  "proj",
			Recipients: []string{"alice"},
		}))
	}

	// Simulate expiry of the middle record; its index entry stays behind.
	require.NoError(t, s.Delete(ctx, "notification:status:n-2"))

	records, err := tracker.ListRecent(ctx, "proj", "alice", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "n-3", records[0].NotificationID)
	assert.Equal(t, "n-1", records[1].NotificationID)
}

func TestListRecentRespectsLimit(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	for _, id := range []string{"n-1", "n-2", "n-3"} {
		require.NoError(t, tracker.RecordPending(ctx, models.Envelope{
			ID:         id,
			ProjectID:  "proj",
			Recipients: []string{"alice"},
		}))
	}

	records, err := tracker.ListRecent(ctx, "proj", "alice", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "n-3", records[0].NotificationID)
}
