package models

import "time"

// Status is the delivery lifecycle state of a notification. Transitions only
// move forward: PENDING is the initial state and the other three are terminal.
type Status string

const (
	StatusPending            Status = "PENDING"
	StatusDelivered          Status = "DELIVERED"
	StatusPartiallyDelivered Status = "PARTIALLY_DELIVERED"
	StatusFailed             Status = "FAILED"
)

// Terminal reports whether the status is an end state of the dispatch
// state machine.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusPartiallyDelivered, StatusFailed:
		return true
	}
	return false
}

// StatusRecord is the per-notification delivery outcome. At most one record
// exists per notification id; later writes overwrite earlier ones.
type StatusRecord struct {
	NotificationID string    `json:"notificationId"`
	ProjectID      string    `json:"projectId,omitempty"`
	Recipients     []string  `json:"recipients,omitempty"`
	Status         Status    `json:"status"`
	UpdatedAt      time.Time `json:"updatedAt"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
}
