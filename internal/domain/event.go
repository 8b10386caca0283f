package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the kinds of provider notifications applied to a
// message. These are the normalized names stored in the events table, not
// the wire names SES uses ("Delivery", "DeliveryDelay", ...).
type EventType string

const (
	EventDelivery  EventType = "delivery"
	EventBounce    EventType = "bounce"
	EventComplaint EventType = "complaint"
	EventDelay     EventType = "delay"
	EventReject    EventType = "reject"
)

// BounceType classifies a bounce as permanent or transient.
type BounceType string

const (
	BounceHard BounceType = "hard"
	BounceSoft BounceType = "soft"
)

// Event is an immutable audit record of one inbound notification applied to
// one message. Events are append-only; duplicates of the same provider
// notification produce duplicate rows (the provider delivers at least once,
// and the events table deliberately carries no uniqueness constraint on the
// notification id).
type Event struct {
	ID        uuid.UUID `json:"id" db:"id"`
	MessageID uuid.UUID `json:"message_id" db:"message_id"`
	Type      EventType `json:"event_type" db:"event_type"`

	// Bounce-specific fields.
	BounceType   *string `json:"bounce_type,omitempty" db:"bounce_type"`
	BounceReason *string `json:"bounce_reason,omitempty" db:"bounce_reason"`

	// Delay-specific fields.
	DelayType   *string `json:"delay_type,omitempty" db:"delay_type"`
	DelayReason *string `json:"delay_reason,omitempty" db:"delay_reason"`

	// RawPayload is the verbatim provider event as received.
	RawPayload json.RawMessage `json:"raw_payload" db:"raw_payload"`

	// Timestamp is the provider-supplied event time, distinct from CreatedAt
	// which is when the row was stored.
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
