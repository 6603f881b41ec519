package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notifyx/internal/broker"
	"notifyx/internal/logger"
	"notifyx/internal/messages"
	"notifyx/internal/status"
	"notifyx/pkg/errors"
	"notifyx/pkg/metrics"
	"notifyx/pkg/models"
)

// RecipientResult records the outcome of the per-recipient storage fan-out.
// Storage is best effort: failures here degrade the read surface but never
// fail the ingest call.
type RecipientResult struct {
	Recipient string
	Stored    bool
	Err       error
}

// Service accepts a notification, persists its per-recipient copies and the
// initial PENDING status, and publishes the envelope for asynchronous
// dispatch. Only a publish failure fails the call: an envelope the broker
// never saw will never be dispatched, so there is nothing to degrade to.
type Service struct {
	repo     *messages.Repository
	tracker  *status.Tracker
	producer broker.Producer
	logger   logger.Logger
	topic    string
}

func NewService(repo *messages.Repository, tracker *status.Tracker, producer broker.Producer, log logger.Logger, topic string) *Service {
	return &Service{
		repo:     repo,
		tracker:  tracker,
		producer: producer,
		logger:   log,
		topic:    topic,
	}
}

// Ingest validates the request, fans out storage and hands the envelope to
// the broker. Returns the freshly minted notification id.
func (s *Service) Ingest(ctx context.Context, projectID string, req models.NotificationRequest) (string, error) {
	start := time.Now()

	if len(req.Recipients) == 0 {
		metrics.IngestRequestsTotal.WithLabelValues("validation_error").Inc()
		return "", errors.ErrValidation.WithMessage("recipients must not be empty")
	}
	if req.Channel == "" {
		metrics.IngestRequestsTotal.WithLabelValues("validation_error").Inc()
		return "", errors.ErrValidation.WithMessage("channel must not be empty")
	}

	env := models.Envelope{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		Recipients:    req.Recipients,
		Message:       req.Message,
		Title:         req.Title,
		Channel:       req.Channel,
		Template:      req.Template,
		Variables:     req.Variables,
		ChannelConfig: req.ChannelConfig,
		Metadata:      req.Metadata,
		Timestamp:     time.Now().UTC(),
		Status:        models.StatusPending,
	}

	results := s.storeFanOut(ctx, env)
	for _, r := range results {
		if !r.Stored {
			s.logger.WarnwCtx(ctx, "Failed to store recipient copy",
				"error", r.Err,
				"recipient", r.Recipient,
				"notification_id", env.ID,
			)
		}
	}

	if err := s.tracker.RecordPending(ctx, env); err != nil {
		// Status is a read-side convenience; the dispatcher writes the
		// terminal record regardless of whether PENDING landed.
		s.logger.WarnwCtx(ctx, "Failed to record pending status",
			"error", err,
			"notification_id", env.ID,
		)
	}

	payload, err := json.Marshal(env)
	if err != nil {
		metrics.IngestRequestsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := s.producer.Publish(ctx, s.topic, env.ID, payload); err != nil {
		metrics.IngestRequestsTotal.WithLabelValues("publish_error").Inc()
		metrics.ObserveIngestDuration(time.Since(start), "publish_error")
		return "", errors.ErrTransport.WithMessage("failed to publish notification").WithCause(err)
	}

	metrics.IngestRequestsTotal.WithLabelValues("accepted").Inc()
	metrics.ObserveIngestDuration(time.Since(start), "accepted")

	s.logger.InfowCtx(ctx, "Notification accepted",
		"notification_id", env.ID,
		"project_id", projectID,
		"recipients", len(env.Recipients),
		"channel", env.Channel,
	)
	return env.ID, nil
}

func (s *Service) storeFanOut(ctx context.Context, env models.Envelope) []RecipientResult {
	results := make([]RecipientResult, 0, len(env.Recipients))
	for _, recipient := range env.Recipients {
		_, err := s.repo.Store(ctx, env.ProjectID, recipient, env.Message, env.Title, env.Channel, env.Metadata)
		results = append(results, RecipientResult{
			Recipient: recipient,
			Stored:    err == nil,
			Err:       err,
		})
	}
	return results
}
