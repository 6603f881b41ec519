package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notifyx/internal/constants"
	"notifyx/internal/logger"
	"notifyx/internal/store"
	"notifyx/pkg/models"
)

// Tracker persists per-notification delivery outcomes and the per-recipient
// recency index used to list them. Writes are idempotent: saving the same
// record twice leaves the same state behind, which is what makes broker
// redelivery safe.
type Tracker struct {
	store      store.Store
	logger     logger.Logger
	ttl        time.Duration
	maxPerUser int64
}

func NewTracker(s store.Store, log logger.Logger, ttl time.Duration, maxPerUser int) *Tracker {
	if ttl <= 0 {
		ttl = constants.DefaultTTLDays * 24 * time.Hour
	}
	if maxPerUser <= 0 {
		maxPerUser = constants.DefaultMaxPerUser
	}
	return &Tracker{
		store:      s,
		logger:     log,
		ttl:        ttl,
		maxPerUser: int64(maxPerUser),
	}
}

func statusKey(notificationID string) string {
	return constants.KeyPrefixStatus + notificationID
}

func userIndexKey(projectID, recipient string) string {
	return fmt.Sprintf("%s%s:%s", constants.KeyPrefixUserNotifications, projectID, recipient)
}

// Save writes a status record, last-write-wins with one guard: a terminal
// status is never demoted back to PENDING. A redelivered envelope re-runs
// dispatch and tries to record PENDING again; without the guard that would
// briefly un-finish an already finished notification.
func (t *Tracker) Save(ctx context.Context, record models.StatusRecord) error {
	if record.NotificationID == "" {
		return fmt.Errorf("status record missing notification id")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	if record.Status == models.StatusPending {
		existing, found, err := t.Get(ctx, record.NotificationID)
		if err != nil {
			return err
		}
		if found && existing.Status.Terminal() {
			t.logger.DebugwCtx(ctx, "Skipping PENDING write over terminal status",
				"notification_id", record.NotificationID,
				"current_status", existing.Status,
			)
			return nil
		}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal status record: %w", err)
	}
	if err := t.store.Put(ctx, statusKey(record.NotificationID), data, t.ttl); err != nil {
		return fmt.Errorf("failed to save status for %s: %w", record.NotificationID, err)
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, notificationID string) (models.StatusRecord, bool, error) {
	data, found, err := t.store.Get(ctx, statusKey(notificationID))
	if err != nil {
		return models.StatusRecord{}, false, fmt.Errorf("failed to load status for %s: %w", notificationID, err)
	}
	if !found {
		return models.StatusRecord{}, false, nil
	}

	var record models.StatusRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.StatusRecord{}, false, fmt.Errorf("failed to unmarshal status for %s: %w", notificationID, err)
	}
	return record, true, nil
}

// RecordPending writes the initial PENDING record for a freshly accepted
// notification and indexes its id for every recipient.
func (t *Tracker) RecordPending(ctx context.Context, env models.Envelope) error {
	record := models.StatusRecord{
		NotificationID: env.ID,
		ProjectID:      env.ProjectID,
		Recipients:     env.Recipients,
		Status:         models.StatusPending,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := t.Save(ctx, record); err != nil {
		return err
	}

	for _, recipient := range env.Recipients {
		key := userIndexKey(env.ProjectID, recipient)
		if err := store.PushCapped(ctx, t.store, key, env.ID, t.maxPerUser, t.ttl); err != nil {
			t.logger.WarnwCtx(ctx, "Failed to index notification for recipient",
				"error", err,
				"recipient", recipient,
			)
		}
	}
	return nil
}

// ListRecent returns the newest status records for one recipient in one
// project, newest first. Index entries whose record has expired are skipped.
func (t *Tracker) ListRecent(ctx context.Context, projectID, recipient string, limit int) ([]models.StatusRecord, error) {
	ids, err := store.ReadIndex(ctx, t.store, userIndexKey(projectID, recipient), limit)
	if err != nil {
		return nil, err
	}

	records := make([]models.StatusRecord, 0, len(ids))
	for _, id := range ids {
		record, found, err := t.Get(ctx, id)
		if err != nil {
			t.logger.WarnwCtx(ctx, "Failed to resolve indexed status, skipping",
				"error", err,
				"notification_id", id,
			)
			continue
		}
		if !found {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
