// internal/models/notification.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies the delivery channel of a notification.
type Type string

const (
	TypeEmail Type = "EMAIL"
	TypeSMS   Type = "SMS"
	TypeInApp Type = "IN_APP"
)

// Status is the delivery state of a notification. PENDING may be re-entered
// after a failed attempt that has not exhausted its retries; SENT and FAILED
// (at the retry limit) are terminal.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// MaxRetries is the number of failed delivery attempts after which a
// notification is pinned at FAILED and no longer redelivered.
const MaxRetries = 3

// Notification is the persisted delivery request. The same shape is
// serialized onto the queue; field names are stable wire names.
type Notification struct {
	ID         uuid.UUID       `json:"id"`
	UserID     string          `json:"userId"`
	Type       Type            `json:"type"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	To         string          `json:"to,omitempty"`
	Subject    string          `json:"subject,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Status     Status          `json:"status"`
	RetryCount int             `json:"retryCount"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Valid reports whether t is one of the recognized channel types.
func (t Type) Valid() bool {
	switch t {
	case TypeEmail, TypeSMS, TypeInApp:
		return true
	}
	return false
}

// RequiresTo reports whether the channel needs a destination address.
func (t Type) RequiresTo() bool {
	return t == TypeEmail || t == TypeSMS
}

// Terminal reports whether no further delivery attempts may happen for the
// notification: SENT is always terminal, FAILED is terminal once the retry
// budget is exhausted.
func (n *Notification) Terminal() bool {
	if n.Status == StatusSent {
		return true
	}
	return n.Status == StatusFailed && n.RetryCount >= MaxRetries
}
