package models

import "time"

// StoredMessage is the per-recipient durable copy of a notification, kept for
// recipient-facing history independent of delivery outcome. One is created
// per recipient at ingestion time and mutated only to flip the read flag.
type StoredMessage struct {
	ID        string                 `json:"id"`
	ProjectID string                 `json:"projectId"`
	Recipient string                 `json:"recipient"`
	Message   string                 `json:"message"`
	Title     string                 `json:"title,omitempty"`
	Channel   string                 `json:"channel"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	Read      bool                   `json:"read"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
}
