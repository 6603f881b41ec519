package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the unit published to the broker for asynchronous dispatch.
// It is immutable once published; the dispatcher never writes it back.
type Envelope struct {
	ID            string                 `json:"id"`
	ProjectID     string                 `json:"projectId"`
	Recipients    []string               `json:"recipients"`
	Message       string                 `json:"message"`
	Title         string                 `json:"title,omitempty"`
	Channel       string                 `json:"channel"`
	Template      string                 `json:"template,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	ChannelConfig map[string]interface{} `json:"channelConfig,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Status        Status                 `json:"status"`
}

// ParseEnvelope decodes a broker payload. The recipients invariant is checked
// here so a truncated or hand-crafted payload surfaces as a parse error
// rather than a zero-recipient dispatch.
func ParseEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if env.ID == "" {
		return Envelope{}, fmt.Errorf("envelope missing id")
	}
	if len(env.Recipients) == 0 {
		return Envelope{}, fmt.Errorf("envelope %s has no recipients", env.ID)
	}
	return env, nil
}

// NotificationRequest is the validated intake shape handed to ingestion by
// the authenticating API layer.
type NotificationRequest struct {
	Recipients    []string               `json:"recipients" binding:"required"`
	Message       string                 `json:"message" binding:"required"`
	Title         string                 `json:"title,omitempty"`
	Channel       string                 `json:"channel" binding:"required"`
	Template      string                 `json:"template,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	ChannelConfig map[string]interface{} `json:"channelConfig,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}
