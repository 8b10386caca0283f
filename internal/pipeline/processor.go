// Package pipeline applies inbound SES delivery events to tracked messages.
//
// Events arrive via SNS out of order and at least once. Ordering is
// event-type-based, not timestamp-based: each event type carries its own set
// of states it may transition from, and everything else is a recorded no-op.
// The message row in Postgres is the sole source of truth; transitions are
// expressed as atomic conditional updates so two handlers processing events
// for the same message serialize instead of interleaving.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/ses-gateway/internal/domain"
	"github.com/ignite/ses-gateway/internal/pkg/logger"
)

// MessageStore is the slice of the message repository the pipeline needs.
type MessageStore interface {
	// GetByProviderID resolves a message by its normalized provider
	// correlation id. A miss returns (nil, nil).
	GetByProviderID(ctx context.Context, providerID string) (*domain.Message, error)

	// TransitionStatus atomically moves a message to status `to` if its
	// current status is one of `from`, reporting whether the update applied.
	TransitionStatus(ctx context.Context, id uuid.UUID, to domain.MessageStatus, from ...domain.MessageStatus) (bool, error)

	// MarkDeferred moves a message from sent to deferred, setting the
	// first-deferred timestamp only if it is not already set.
	MarkDeferred(ctx context.Context, id uuid.UUID) (bool, error)
}

// EventStore appends audit records.
type EventStore interface {
	Insert(ctx context.Context, ev *domain.Event) error
}

// Suppressor escalates permanently undeliverable or complained addresses.
type Suppressor interface {
	Suppress(ctx context.Context, email string, reason domain.SuppressionReason) error
}

// Processor routes SES events through the delivery state machine.
type Processor struct {
	messages   MessageStore
	events     EventStore
	suppressor Suppressor
}

// NewProcessor wires a Processor from its collaborators.
func NewProcessor(messages MessageStore, events EventStore, suppressor Suppressor) *Processor {
	return &Processor{messages: messages, events: events, suppressor: suppressor}
}

// Process applies one decoded SES event. The returned error covers storage
// failures only; an unknown event type or an unresolvable correlation id is
// logged and dropped so the upstream notifier never sees a failure it would
// retry forever.
func (p *Processor) Process(ctx context.Context, raw json.RawMessage) error {
	var ev sesEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("decode ses event: %w", err)
	}
	if ev.EventType == "" {
		logger.Warn("ses event missing eventType, dropping")
		return nil
	}

	switch ev.EventType {
	case sesDelivery:
		return p.handleDelivery(ctx, &ev, raw)
	case sesBounce:
		return p.handleBounce(ctx, &ev, raw)
	case sesComplaint:
		return p.handleComplaint(ctx, &ev, raw)
	case sesDeliveryDelay:
		return p.handleDelay(ctx, &ev, raw)
	case sesReject:
		return p.handleReject(ctx, &ev, raw)
	default:
		logger.Warn("unknown ses event type, dropping", "event_type", ev.EventType)
		return nil
	}
}

// resolve looks up the target message. A miss is terminal for the event but
// never an error.
func (p *Processor) resolve(ctx context.Context, ev *sesEvent) (*domain.Message, error) {
	providerID := domain.NormalizeProviderMessageID(ev.Mail.MessageID)
	if providerID == "" {
		logger.Warn("ses event missing mail.messageId, dropping", "event_type", ev.EventType)
		return nil, nil
	}
	msg, err := p.messages.GetByProviderID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("lookup message %s: %w", providerID, err)
	}
	if msg == nil {
		logger.Warn("no message for provider id, dropping event",
			"provider_message_id", providerID, "event_type", ev.EventType)
		return nil, nil
	}
	return msg, nil
}

// appendEvent stores the audit record. The audit trail is unconditional:
// it is written whether or not the status transition applied.
func (p *Processor) appendEvent(ctx context.Context, msg *domain.Message, ev *domain.Event) error {
	ev.ID = uuid.New()
	ev.MessageID = msg.ID
	if err := p.events.Insert(ctx, ev); err != nil {
		return fmt.Errorf("append %s event for message %s: %w", ev.Type, msg.ID, err)
	}
	return nil
}

func (p *Processor) handleDelivery(ctx context.Context, ev *sesEvent, raw json.RawMessage) error {
	msg, err := p.resolve(ctx, ev)
	if err != nil || msg == nil {
		return err
	}

	applied, err := p.messages.TransitionStatus(ctx, msg.ID, domain.StatusDelivered,
		domain.StatusSent, domain.StatusDeferred)
	if err != nil {
		return fmt.Errorf("deliver message %s: %w", msg.ID, err)
	}
	if applied {
		logger.Info("message delivered", "message_id", msg.ID.String())
	} else {
		logger.Info("ignoring delivery event in terminal status",
			"message_id", msg.ID.String(), "status", string(msg.Status))
	}

	return p.appendEvent(ctx, msg, &domain.Event{
		Type:       domain.EventDelivery,
		RawPayload: raw,
		Timestamp:  ev.eventTimestamp(),
	})
}

func (p *Processor) handleBounce(ctx context.Context, ev *sesEvent, raw json.RawMessage) error {
	msg, err := p.resolve(ctx, ev)
	if err != nil || msg == nil {
		return err
	}

	bounceClass := domain.BounceSoft
	var recipients []recipientInfo
	if ev.Bounce != nil {
		recipients = ev.Bounce.BouncedRecipients
		if ev.Bounce.BounceType == bounceTypePermanent {
			bounceClass = domain.BounceHard
		}
	}

	applied, err := p.messages.TransitionStatus(ctx, msg.ID, domain.StatusBounced,
		domain.StatusSent, domain.StatusDeferred, domain.StatusDelivered)
	if err != nil {
		return fmt.Errorf("bounce message %s: %w", msg.ID, err)
	}
	if applied {
		logger.Info("message bounced", "message_id", msg.ID.String(), "bounce_type", string(bounceClass))
	}

	bt := string(bounceClass)
	if err := p.appendEvent(ctx, msg, &domain.Event{
		Type:         domain.EventBounce,
		BounceType:   &bt,
		BounceReason: firstDiagnostic(recipients),
		RawPayload:   raw,
		Timestamp:    ev.eventTimestamp(),
	}); err != nil {
		return err
	}

	// Hard bounces escalate regardless of whether the transition applied;
	// the address is undeliverable either way.
	if bounceClass == domain.BounceHard {
		if err := p.suppressor.Suppress(ctx, msg.ToEmail, domain.ReasonHardBounce); err != nil {
			return fmt.Errorf("suppress after hard bounce: %w", err)
		}
		logger.Info("auto-suppressed recipient after hard bounce", "email", msg.ToEmail)
	}
	return nil
}

func (p *Processor) handleComplaint(ctx context.Context, ev *sesEvent, raw json.RawMessage) error {
	msg, err := p.resolve(ctx, ev)
	if err != nil || msg == nil {
		return err
	}

	applied, err := p.messages.TransitionStatus(ctx, msg.ID, domain.StatusComplained,
		domain.StatusSent, domain.StatusDeferred, domain.StatusDelivered)
	if err != nil {
		return fmt.Errorf("complaint for message %s: %w", msg.ID, err)
	}
	if applied {
		logger.Info("message complained", "message_id", msg.ID.String())
	}

	if err := p.appendEvent(ctx, msg, &domain.Event{
		Type:       domain.EventComplaint,
		RawPayload: raw,
		Timestamp:  ev.eventTimestamp(),
	}); err != nil {
		return err
	}

	// Complaints have no soft/hard distinction; every complaint suppresses.
	if err := p.suppressor.Suppress(ctx, msg.ToEmail, domain.ReasonComplaint); err != nil {
		return fmt.Errorf("suppress after complaint: %w", err)
	}
	logger.Info("auto-suppressed recipient after complaint", "email", msg.ToEmail)
	return nil
}

func (p *Processor) handleDelay(ctx context.Context, ev *sesEvent, raw json.RawMessage) error {
	msg, err := p.resolve(ctx, ev)
	if err != nil || msg == nil {
		return err
	}

	applied, err := p.messages.MarkDeferred(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("defer message %s: %w", msg.ID, err)
	}
	if applied {
		logger.Info("message deferred", "message_id", msg.ID.String())
	}

	var delayType *string
	var recipients []recipientInfo
	if ev.DeliveryDelay != nil {
		recipients = ev.DeliveryDelay.DelayedRecipients
		dt := ev.DeliveryDelay.DelayType
		if dt == "" {
			dt = "Unknown"
		}
		delayType = &dt
	}

	return p.appendEvent(ctx, msg, &domain.Event{
		Type:        domain.EventDelay,
		DelayType:   delayType,
		DelayReason: firstDiagnostic(recipients),
		RawPayload:  raw,
		Timestamp:   ev.eventTimestamp(),
	})
}

func (p *Processor) handleReject(ctx context.Context, ev *sesEvent, raw json.RawMessage) error {
	msg, err := p.resolve(ctx, ev)
	if err != nil || msg == nil {
		return err
	}

	applied, err := p.messages.TransitionStatus(ctx, msg.ID, domain.StatusRejected,
		domain.StatusSent, domain.StatusDeferred, domain.StatusDelivered)
	if err != nil {
		return fmt.Errorf("reject message %s: %w", msg.ID, err)
	}
	if applied {
		logger.Info("message rejected", "message_id", msg.ID.String())
	}

	return p.appendEvent(ctx, msg, &domain.Event{
		Type:       domain.EventReject,
		RawPayload: raw,
		Timestamp:  ev.eventTimestamp(),
	})
}
