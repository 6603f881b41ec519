package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyx/internal/logger"
	"notifyx/internal/messages"
	"notifyx/internal/status"
	"notifyx/internal/store"
	"notifyx/pkg/errors"
	"notifyx/pkg/models"
)

type publishedMessage struct {
	topic   string
	key     string
	payload []byte
}

type fakeProducer struct {
	published []publishedMessage
	failWith  error
}

func (f *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, publishedMessage{topic: topic, key: key, payload: payload})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func newTestService(producer *fakeProducer) (*Service, *messages.Repository, *status.Tracker) {
	s := store.NewMemoryStore()
	repo := messages.NewRepository(s, logger.NopLogger(), time.Hour, 100, 1000)
	tracker := status.NewTracker(s, logger.NopLogger(), time.Hour, 100)
	return NewService(repo, tracker, producer, logger.NopLogger(), "notifyx.notifications"), repo, tracker
}

func validRequest(recipients ...string) models.NotificationRequest {
	return models.NotificationRequest{
		Recipients: recipients,
		Message:    "hello",
		Title:      "greeting",
		Channel:    "webhook",
		ChannelConfig: map[string]interface{}{
			"url": "https://example.com/hook",
		},
	}
}

func TestIngestPublishesEnvelopeKeyedByID(t *testing.T) {
	ctx := context.Background()
	producer := &fakeProducer{}
	svc, _, _ := newTestService(producer)

	id, err := svc.Ingest(ctx, "proj", validRequest("alice", "bob"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Len(t, producer.published, 1)
	published := producer.published[0]
	assert.Equal(t, "notifyx.notifications", published.topic)
	assert.Equal(t, id, published.key, "message key must be the notification id for per-key ordering")

	var env models.Envelope
	require.NoError(t, json.Unmarshal(published.payload, &env))
	assert.Equal(t, id, env.ID)
	assert.Equal(t, "proj", env.ProjectID)
	assert.Equal(t, []string{"alice", "bob"}, env.Recipients)
	assert.Equal(t, models.StatusPending, env.Status)
	assert.False(t, env.Timestamp.IsZero())
}

func TestIngestStoresOneMessagePerRecipient(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(&fakeProducer{})

	_, err := svc.Ingest(ctx, "proj", validRequest("alice", "bob", "carol"))
	require.NoError(t, err)

	for _, recipient := range []string{"alice", "bob", "carol"} {
		msgs, err := repo.ListForUser(ctx, "proj", recipient, 10)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "hello", msgs[0].Message)
		assert.Equal(t, recipient, msgs[0].Recipient)
	}
}

func TestIngestRecordsPendingStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, tracker := newTestService(&fakeProducer{})

	id, err := svc.Ingest(ctx, "proj", validRequest("alice"))
	require.NoError(t, err)

	record, found, err := tracker.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusPending, record.Status)
	assert.Equal(t, []string{"alice"}, record.Recipients)

	records, err := tracker.ListRecent(ctx, "proj", "alice", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].NotificationID)
}

func TestIngestGeneratesUniqueIDs(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(&fakeProducer{})

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := svc.Ingest(ctx, "proj", validRequest("alice"))
		require.NoError(t, err)
		assert.False(t, seen[id], "id %s issued twice", id)
		seen[id] = true
	}
}

func TestIngestRejectsEmptyRecipients(t *testing.T) {
	ctx := context.Background()
	producer := &fakeProducer{}
	svc, repo, _ := newTestService(producer)

	req := validRequest()
	_, err := svc.Ingest(ctx, "proj", req)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	assert.Empty(t, producer.published, "rejected requests must not publish")
	msgs, listErr := repo.ListForProject(ctx, "proj", 10)
	require.NoError(t, listErr)
	assert.Empty(t, msgs, "rejected requests must not store messages")
}

func TestIngestRejectsEmptyChannel(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(&fakeProducer{})

	req := validRequest("alice")
	req.Channel = ""
	_, err := svc.Ingest(ctx, "proj", req)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestIngestFailsWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	producer := &fakeProducer{failWith: assert.AnError}
	svc, _, _ := newTestService(producer)

	_, err := svc.Ingest(ctx, "proj", validRequest("alice"))
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err), "publish failure is a transport error")
}
