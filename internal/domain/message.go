package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageStatus enumerates the delivery lifecycle states of a sent email.
type MessageStatus string

const (
	StatusSent       MessageStatus = "sent"
	StatusDelivered  MessageStatus = "delivered"
	StatusBounced    MessageStatus = "bounced"
	StatusDeferred   MessageStatus = "deferred"
	StatusComplained MessageStatus = "complained"
	StatusRejected   MessageStatus = "rejected"
)

// Message represents one sent email and its current delivery state.
// The send path owns creation; afterwards only the event pipeline and
// the tracking recorder mutate it.
type Message struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	ToEmail           string            `json:"to_email" db:"to_email"`
	FromEmail         string            `json:"from_email" db:"from_email"`
	FromName          string            `json:"from_name,omitempty" db:"from_name"`
	Subject           string            `json:"subject" db:"subject"`
	HTMLBody          string            `json:"html_body,omitempty" db:"html_body"`
	TextBody          string            `json:"text_body,omitempty" db:"text_body"`
	Status            MessageStatus     `json:"status" db:"status"`
	ProviderMessageID string            `json:"provider_message_id" db:"provider_message_id"`
	Metadata          map[string]string `json:"metadata,omitempty" db:"metadata"`
	OpenedAt          *time.Time        `json:"opened_at,omitempty" db:"opened_at"`
	FirstDeferredAt   *time.Time        `json:"first_deferred_at,omitempty" db:"first_deferred_at"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// NormalizeProviderMessageID strips a single pair of surrounding angle
// brackets from a provider message id. SES sometimes returns the id wrapped
// as "<id>"; inbound events reference the bare form.
func NormalizeProviderMessageID(id string) string {
	if strings.HasPrefix(id, "<") && strings.HasSuffix(id, ">") && len(id) >= 2 {
		return id[1 : len(id)-1]
	}
	return id
}
