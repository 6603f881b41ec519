package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"notifyx/internal/constants"
	"notifyx/internal/logger"
	"notifyx/pkg/metrics"
)

const TypeWebhook = "webhook"

// WebhookChannel delivers a message with a single POST to the URL named in
// the envelope's channel config. It never retries on its own; redelivery
// happens upstream at the broker layer, so a failed POST is just "false".
type WebhookChannel struct {
	client *http.Client
	logger logger.Logger
}

type webhookPayload struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	Title     string `json:"title,omitempty"`
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
}

func NewWebhookChannel(timeout time.Duration, log logger.Logger) *WebhookChannel {
	if timeout <= 0 {
		timeout = constants.DefaultWebhookTimeout
	}
	return &WebhookChannel{
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

func (c *WebhookChannel) Type() string {
	return TypeWebhook
}

func (c *WebhookChannel) Supports(channelType string) bool {
	return channelType == TypeWebhook
}

func (c *WebhookChannel) Send(ctx context.Context, recipient, message, title string, config map[string]interface{}) bool {
	start := time.Now()
	ok := c.send(ctx, recipient, message, title, config)
	metrics.ObserveChannelSend(time.Since(start), TypeWebhook, ok)
	return ok
}

func (c *WebhookChannel) send(ctx context.Context, recipient, message, title string, config map[string]interface{}) bool {
	url, _ := config["url"].(string)
	if url == "" {
		c.logger.WarnwCtx(ctx, "Webhook config has no url, cannot deliver",
			"recipient", recipient,
		)
		return false
	}

	body, err := json.Marshal(webhookPayload{
		Recipient: recipient,
		Message:   message,
		Title:     title,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Channel:   TypeWebhook,
	})
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to marshal webhook payload",
			"error", err,
			"recipient", recipient,
		)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to build webhook request",
			"error", err,
			"url", url,
		)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	if secret, _ := config["secret"].(string); secret != "" {
		req.Header.Set(constants.SignatureHeader, Sign(body, secret))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WarnwCtx(ctx, "Webhook request failed",
			"error", err,
			"url", url,
			"recipient", recipient,
		)
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WarnwCtx(ctx, "Webhook returned non-2xx status",
			"status", resp.StatusCode,
			"url", url,
			"recipient", recipient,
		)
		return false
	}

	c.logger.DebugwCtx(ctx, "Webhook delivered",
		"url", url,
		"recipient", recipient,
	)
	return true
}

// Sign computes the HMAC-SHA256 signature receivers use to verify that a
// webhook body originated from this service: "sha256=" + hex digest keyed
// by the shared secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
