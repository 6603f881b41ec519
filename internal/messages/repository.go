package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notifyx/internal/constants"
	"notifyx/internal/logger"
	"notifyx/internal/store"
	"notifyx/pkg/metrics"
	"notifyx/pkg/models"
)

// Repository owns the recipient-facing message history: one durable copy per
// recipient per notification, a per-recipient recency index, and a wider
// per-project one. Everything carries the same TTL, so a message and its
// index entries age out together.
type Repository struct {
	store         store.Store
	logger        logger.Logger
	ttl           time.Duration
	maxPerUser    int64
	maxPerProject int64
}

func NewRepository(s store.Store, log logger.Logger, ttl time.Duration, maxPerUser, maxPerProject int) *Repository {
	if ttl <= 0 {
		ttl = constants.DefaultTTLDays * 24 * time.Hour
	}
	if maxPerUser <= 0 {
		maxPerUser = constants.DefaultMaxPerUser
	}
	if maxPerProject <= 0 {
		maxPerProject = constants.DefaultMaxPerProject
	}
	return &Repository{
		store:         s,
		logger:        log,
		ttl:           ttl,
		maxPerUser:    int64(maxPerUser),
		maxPerProject: int64(maxPerProject),
	}
}

func messageKey(id string) string {
	return constants.KeyPrefixMessage + id
}

func userMessagesKey(projectID, recipient string) string {
	return fmt.Sprintf("%s%s:%s", constants.KeyPrefixUserMessages, projectID, recipient)
}

func projectMessagesKey(projectID string) string {
	return constants.KeyPrefixProjectMessages + projectID
}

// Store persists one recipient's copy of a notification and indexes it. The
// message id is minted here; it is distinct from the notification id because
// one notification fans out to one message per recipient.
func (r *Repository) Store(ctx context.Context, projectID, recipient, message, title, channel string, metadata map[string]interface{}) (models.StoredMessage, error) {
	msg := models.StoredMessage{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Recipient: recipient,
		Message:   message,
		Title:     title,
		Channel:   channel,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		metrics.StoredMessagesTotal.WithLabelValues("error").Inc()
		return models.StoredMessage{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := r.store.Put(ctx, messageKey(msg.ID), data, r.ttl); err != nil {
		metrics.StoredMessagesTotal.WithLabelValues("error").Inc()
		return models.StoredMessage{}, fmt.Errorf("failed to store message for %s: %w", recipient, err)
	}

	// Index writes are best effort: a missing index entry only hides the
	// message from listings, the durable copy is already in place.
	if err := store.PushCapped(ctx, r.store, userMessagesKey(projectID, recipient), msg.ID, r.maxPerUser, r.ttl); err != nil {
		r.logger.WarnwCtx(ctx, "Failed to index message for recipient",
			"error", err,
			"recipient", recipient,
		)
	}
	if err := store.PushCapped(ctx, r.store, projectMessagesKey(projectID), msg.ID, r.maxPerProject, r.ttl); err != nil {
		r.logger.WarnwCtx(ctx, "Failed to index message for project",
			"error", err,
			"project_id", projectID,
		)
	}

	metrics.StoredMessagesTotal.WithLabelValues("ok").Inc()
	return msg, nil
}

func (r *Repository) Get(ctx context.Context, id string) (models.StoredMessage, bool, error) {
	data, found, err := r.store.Get(ctx, messageKey(id))
	if err != nil {
		return models.StoredMessage{}, false, fmt.Errorf("failed to load message %s: %w", id, err)
	}
	if !found {
		return models.StoredMessage{}, false, nil
	}

	var msg models.StoredMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return models.StoredMessage{}, false, fmt.Errorf("failed to unmarshal message %s: %w", id, err)
	}
	return msg, true, nil
}

// ListForUser returns a recipient's newest messages, newest first. Ids whose
// message has expired are skipped without error.
func (r *Repository) ListForUser(ctx context.Context, projectID, recipient string, limit int) ([]models.StoredMessage, error) {
	return r.resolveIndex(ctx, userMessagesKey(projectID, recipient), limit)
}

// ListForProject returns the newest messages across all of a project's
// recipients, newest first.
func (r *Repository) ListForProject(ctx context.Context, projectID string, limit int) ([]models.StoredMessage, error) {
	return r.resolveIndex(ctx, projectMessagesKey(projectID), limit)
}

func (r *Repository) resolveIndex(ctx context.Context, indexKey string, limit int) ([]models.StoredMessage, error) {
	ids, err := store.ReadIndex(ctx, r.store, indexKey, limit)
	if err != nil {
		return nil, err
	}

	msgs := make([]models.StoredMessage, 0, len(ids))
	for _, id := range ids {
		msg, found, err := r.Get(ctx, id)
		if err != nil {
			r.logger.WarnwCtx(ctx, "Failed to resolve indexed message, skipping",
				"error", err,
				"message_id", id,
			)
			continue
		}
		if !found {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// MarkRead flips a message's read flag. Marking an already-read message again
// keeps the original ReadAt. The second return is false for unknown ids.
func (r *Repository) MarkRead(ctx context.Context, id string) (models.StoredMessage, bool, error) {
	msg, found, err := r.Get(ctx, id)
	if err != nil || !found {
		return models.StoredMessage{}, found, err
	}
	if msg.Read {
		return msg, true, nil
	}

	now := time.Now().UTC()
	msg.Read = true
	msg.ReadAt = &now

	data, err := json.Marshal(msg)
	if err != nil {
		return models.StoredMessage{}, false, fmt.Errorf("failed to marshal message %s: %w", id, err)
	}
	if err := r.store.Put(ctx, messageKey(id), data, r.ttl); err != nil {
		return models.StoredMessage{}, false, fmt.Errorf("failed to update message %s: %w", id, err)
	}
	return msg, true, nil
}

// Delete removes a message and its index entries. Deleting an unknown id is
// a no-op.
func (r *Repository) Delete(ctx context.Context, id string) error {
	msg, found, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if err := r.store.Delete(ctx, messageKey(id)); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	if err := r.store.ListRemove(ctx, userMessagesKey(msg.ProjectID, msg.Recipient), id); err != nil {
		r.logger.WarnwCtx(ctx, "Failed to remove message from recipient index",
			"error", err,
			"message_id", id,
		)
	}
	if err := r.store.ListRemove(ctx, projectMessagesKey(msg.ProjectID), id); err != nil {
		r.logger.WarnwCtx(ctx, "Failed to remove message from project index",
			"error", err,
			"message_id", id,
		)
	}
	return nil
}

// UnreadCount counts unread messages among the recipient's indexed history.
func (r *Repository) UnreadCount(ctx context.Context, projectID, recipient string) (int, error) {
	msgs, err := r.ListForUser(ctx, projectID, recipient, int(r.maxPerUser))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, msg := range msgs {
		if !msg.Read {
			count++
		}
	}
	return count, nil
}

// ProjectStats summarizes a project's indexed message history.
type ProjectStats struct {
	TotalMessages int `json:"totalMessages"`
	UnreadCount   int `json:"unreadCount"`
}

func (r *Repository) Stats(ctx context.Context, projectID string) (ProjectStats, error) {
	msgs, err := r.ListForProject(ctx, projectID, int(r.maxPerProject))
	if err != nil {
		return ProjectStats{}, err
	}

	stats := ProjectStats{TotalMessages: len(msgs)}
	for _, msg := range msgs {
		if !msg.Read {
			stats.UnreadCount++
		}
	}
	return stats, nil
}
