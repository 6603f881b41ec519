package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notifyx/internal/channel"
	"notifyx/internal/constants"
	"notifyx/internal/logger"
	"notifyx/internal/status"
	"notifyx/pkg/errors"
	"notifyx/pkg/metrics"
	"notifyx/pkg/models"
)

// Service turns a consumed envelope into per-recipient channel sends and a
// terminal status record. Handle is the broker handler: it returns nil for
// every terminal outcome, including failures, so the broker commits instead
// of redelivering an envelope that can never succeed.
type Service struct {
	registry *channel.Registry
	tracker  *status.Tracker
	logger   logger.Logger
	workers  int
}

func NewService(registry *channel.Registry, tracker *status.Tracker, log logger.Logger, workers int) *Service {
	if workers <= 0 {
		workers = constants.DefaultDispatchWorkers
	}
	return &Service{
		registry: registry,
		tracker:  tracker,
		logger:   log,
		workers:  workers,
	}
}

// Handle processes one broker delivery end to end. Only errors that a retry
// could fix (a failing status store) propagate; everything else resolves to
// a terminal status.
func (s *Service) Handle(ctx context.Context, key string, payload []byte) error {
	start := time.Now()

	env, err := models.ParseEnvelope(payload)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Received malformed envelope",
			"error", err,
			"key", key,
		)
		// The broker key carries the notification id even when the payload
		// does not parse, so the failure is still observable by id.
		if key != "" {
			s.recordTerminal(ctx, models.StatusRecord{
				NotificationID: key,
				Status:         models.StatusFailed,
				ErrorMessage:   "malformed envelope: " + err.Error(),
			})
		}
		metrics.DispatchTotal.WithLabelValues("malformed").Inc()
		return nil
	}

	ch, ok := s.registry.Resolve(env.Channel)
	if !ok {
		s.logger.WarnwCtx(ctx, "No channel registered for envelope",
			"channel", env.Channel,
		)
		s.recordTerminal(ctx, models.StatusRecord{
			NotificationID: env.ID,
			ProjectID:      env.ProjectID,
			Recipients:     env.Recipients,
			Status:         models.StatusFailed,
			ErrorMessage:   errors.ErrChannelUnsupported.WithMessage(fmt.Sprintf("unsupported channel type: %s", env.Channel)).Error(),
		})
		metrics.DispatchTotal.WithLabelValues("unsupported_channel").Inc()
		return nil
	}

	results := s.fanOut(ctx, ch, env)

	outcome := aggregate(results)
	record := models.StatusRecord{
		NotificationID: env.ID,
		ProjectID:      env.ProjectID,
		Recipients:     env.Recipients,
		Status:         outcome,
	}
	if outcome != models.StatusDelivered {
		record.ErrorMessage = failureSummary(env.Channel, results)
	}
	s.recordTerminal(ctx, record)

	metrics.DispatchTotal.WithLabelValues(string(outcome)).Inc()
	metrics.ObserveDispatchDuration(time.Since(start), string(outcome))

	s.logger.InfowCtx(ctx, "Dispatch completed",
		"status", outcome,
		"recipients", len(env.Recipients),
		"channel", env.Channel,
	)
	return nil
}

type recipientResult struct {
	recipient string
	delivered bool
}

// fanOut sends to every recipient with at most s.workers concurrent sends and
// joins before returning. A panicking channel implementation counts as a
// failed send for that recipient only.
func (s *Service) fanOut(ctx context.Context, ch channel.Channel, env models.Envelope) []recipientResult {
	results := make([]recipientResult, len(env.Recipients))
	sem := make(chan struct{}, s.workers)

	var wg sync.WaitGroup
	for i, recipient := range env.Recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, recipient string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.logger.ErrorwCtx(ctx, "Panic in channel send",
						"error", errors.RecoverPanic(r),
						"recipient", recipient,
					)
					results[i] = recipientResult{recipient: recipient, delivered: false}
				}
			}()
			ok := ch.Send(ctx, recipient, env.Message, env.Title, env.ChannelConfig)
			results[i] = recipientResult{recipient: recipient, delivered: ok}
		}(i, recipient)
	}
	wg.Wait()

	return results
}

func aggregate(results []recipientResult) models.Status {
	delivered := 0
	for _, r := range results {
		if r.delivered {
			delivered++
		}
	}
	switch {
	case delivered == len(results):
		return models.StatusDelivered
	case delivered > 0:
		return models.StatusPartiallyDelivered
	default:
		return models.StatusFailed
	}
}

func failureSummary(channelType string, results []recipientResult) string {
	failed := 0
	for _, r := range results {
		if !r.delivered {
			failed++
		}
	}
	return fmt.Sprintf("%d of %d sends failed on channel %s", failed, len(results), channelType)
}

// recordTerminal writes the final status. The write is best effort: the
// dispatch outcome already happened, and redelivering the envelope to fix a
// bookkeeping write would re-send to recipients.
func (s *Service) recordTerminal(ctx context.Context, record models.StatusRecord) {
	if err := s.tracker.Save(ctx, record); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record dispatch status",
			"error", err,
			"notification_id", record.NotificationID,
			"status", record.Status,
		)
	}
}
