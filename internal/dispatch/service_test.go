package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyx/internal/channel"
	"notifyx/internal/logger"
	"notifyx/internal/status"
	"notifyx/internal/store"
	"notifyx/pkg/models"
)

// fakeChannel records sends and answers per recipient from a canned map.
// Recipients missing from the map panic when panicOnUnknown is set, which is
// how the panic-tolerance test injects a crashing implementation.
type fakeChannel struct {
	mu             sync.Mutex
	outcomes       map[string]bool
	sent           []string
	panicOnUnknown bool
}

func (f *fakeChannel) Type() string { return "fake" }

func (f *fakeChannel) Supports(channelType string) bool { return channelType == "fake" }

func (f *fakeChannel) Send(_ context.Context, recipient, _, _ string, _ map[string]interface{}) bool {
	f.mu.Lock()
	f.sent = append(f.sent, recipient)
	f.mu.Unlock()

	ok, known := f.outcomes[recipient]
	if !known && f.panicOnUnknown {
		panic("no outcome configured for " + recipient)
	}
	return ok
}

func newTestService(outcomes map[string]bool, panicOnUnknown bool) (*Service, *status.Tracker, *fakeChannel) {
	s := store.NewMemoryStore()
	tracker := status.NewTracker(s, logger.NopLogger(), time.Hour, 100)

	fake := &fakeChannel{outcomes: outcomes, panicOnUnknown: panicOnUnknown}
	registry := channel.NewRegistry()
	registry.Register(fake)

	return NewService(registry, tracker, logger.NopLogger(), 4), tracker, fake
}

func envelopePayload(t *testing.T, env models.Envelope) []byte {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestAllRecipientsDelivered(t *testing.T) {
	ctx := context.Background()
	svc, tracker, fake := newTestService(map[string]bool{"alice": true, "bob": true}, false)

	env := models.Envelope{
		ID:         "n-1",
		ProjectID:  "proj",
		Recipients: []string{"alice", "bob"},
		Message:    "hello",
		Channel:    "fake",
	}
	require.NoError(t, svc.Handle(ctx, env.ID, envelopePayload(t, env)))

	record, found, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusDelivered, record.Status)
	assert.Empty(t, record.ErrorMessage)
	assert.ElementsMatch(t, []string{"alice", "bob"}, fake.sent)
}

func TestMixedOutcomesArePartiallyDelivered(t *testing.T) {
	ctx := context.Background()
	svc, tracker, _ := newTestService(map[string]bool{"alice": true, "bob": false}, false)

	env := models.Envelope{
		ID:         "n-1",
		Recipients: []string{"alice", "bob"},
		Message:    "hello",
		Channel:    "fake",
	}
	require.NoError(t, svc.Handle(ctx, env.ID, envelopePayload(t, env)))

	record, _, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyDelivered, record.Status)
	assert.Contains(t, record.ErrorMessage, "1 of 2")
}

func TestAllRecipientsFailed(t *testing.T) {
	ctx := context.Background()
	svc, tracker, _ := newTestService(map[string]bool{"alice": false, "bob": false}, false)

	env := models.Envelope{
		ID:         "n-1",
		Recipients: []string{"alice", "bob"},
		Message:    "hello",
		Channel:    "fake",
	}
	require.NoError(t, svc.Handle(ctx, env.ID, envelopePayload(t, env)))

	record, _, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, record.Status)
}

func TestMalformedEnvelopeRecordsFailed(t *testing.T) {
	ctx := context.Background()
	svc, tracker, fake := newTestService(nil, false)

	err := svc.Handle(ctx, "n-broken", []byte("{not json"))
	require.NoError(t, err, "malformed envelopes commit, they never retry")

	record, found, err := tracker.Get(ctx, "n-broken")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "malformed envelope")
	assert.Empty(t, fake.sent, "no sends happen for an unparseable envelope")
}

func TestMalformedEnvelopeWithoutKeyIsDropped(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(nil, false)

	require.NoError(t, svc.Handle(ctx, "", []byte("{not json")))
}

func TestEnvelopeWithoutRecipientsIsMalformed(t *testing.T) {
	ctx := context.Background()
	svc, tracker, _ := newTestService(nil, false)

	env := models.Envelope{ID: "n-1", Channel: "fake", Message: "hello"}
	require.NoError(t, svc.Handle(ctx, env.ID, envelopePayload(t, env)))

	record, found, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusFailed, record.Status)
}

func TestUnsupportedChannelRecordsFailed(t *testing.T) {
	ctx := context.Background()
	svc, tracker, fake := newTestService(nil, false)

	env := models.Envelope{
		ID:         "n-1",
		Recipients: []string{"alice"},
		Message:    "hello",
		Channel:    "telegraph",
	}
	require.NoError(t, svc.Handle(ctx, env.ID, envelopePayload(t, env)))

	record, found, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "telegraph")
	assert.Empty(t, fake.sent)
}

func TestPanickingSendCountsAsFailureForThatRecipientOnly(t *testing.T) {
	ctx := context.Background()
	svc, tracker, _ := newTestService(map[string]bool{"alice": true}, true)

	env := models.Envelope{
		ID:         "n-1",
		Recipients: []string{"alice", "bob"},
		Message:    "hello",
		Channel:    "fake",
	}
	require.NoError(t, svc.Handle(ctx, env.ID, envelopePayload(t, env)))

	record, _, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyDelivered, record.Status)
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, tracker, _ := newTestService(map[string]bool{"alice": true}, false)

	env := models.Envelope{
		ID:         "n-1",
		Recipients: []string{"alice"},
		Message:    "hello",
		Channel:    "fake",
	}
	payload := envelopePayload(t, env)

	require.NoError(t, svc.Handle(ctx, env.ID, payload))
	require.NoError(t, svc.Handle(ctx, env.ID, payload))

	record, _, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, record.Status)
}

func TestManyRecipientsAllJoinBeforeAggregation(t *testing.T) {
	ctx := context.Background()

	outcomes := make(map[string]bool)
	recipients := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		name := string(rune('a'+i%26)) + "-" + string(rune('0'+i%10))
		outcomes[name] = true
		recipients = append(recipients, name)
	}
	svc, tracker, fake := newTestService(outcomes, false)

	env := models.Envelope{
		ID:         "n-1",
		Recipients: recipients,
		Message:    "hello",
		Channel:    "fake",
	}
	require.NoError(t, svc.Handle(ctx, env.ID, envelopePayload(t, env)))

	assert.Len(t, fake.sent, len(recipients))

	record, _, err := tracker.Get(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, record.Status)
}
