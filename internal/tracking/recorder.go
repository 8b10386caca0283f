// Package tracking records open and click engagement against sent messages
// and serves the pixel/redirect endpoints emails point at.
package tracking

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignite/ses-gateway/internal/domain"
	"github.com/ignite/ses-gateway/internal/pkg/logger"
)

// MessageStore is the slice of the message repository the recorder needs.
type MessageStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	MarkOpened(ctx context.Context, id uuid.UUID) (bool, error)
}

// ClickStore appends click events.
type ClickStore interface {
	Insert(ctx context.Context, c *domain.ClickEvent) error
}

// Recorder applies engagement signals to messages. Its methods report a
// boolean outcome instead of failing: a missing or malformed message id is a
// non-event, because the pixel and redirect contracts never surface errors
// to the email client.
type Recorder struct {
	messages MessageStore
	clicks   ClickStore
}

// NewRecorder wires a Recorder from its stores.
func NewRecorder(messages MessageStore, clicks ClickStore) *Recorder {
	return &Recorder{messages: messages, clicks: clicks}
}

// RecordOpen sets the message's first-open timestamp if it is unset.
// First-wins: exactly one call per message returns true, even under
// concurrent duplicate pixel fetches (image prefetchers), because the
// underlying update only applies while the timestamp is NULL.
func (r *Recorder) RecordOpen(ctx context.Context, messageID string) (bool, error) {
	id, ok := parseMessageID(messageID, "open")
	if !ok {
		return false, nil
	}

	msg, err := r.messages.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if msg == nil {
		logger.Warn("message not found for open tracking", "message_id", messageID)
		return false, nil
	}

	won, err := r.messages.MarkOpened(ctx, id)
	if err != nil {
		return false, err
	}
	if won {
		logger.Info("recorded first open", "message_id", messageID)
	} else {
		logger.Debug("message already opened", "message_id", messageID)
	}
	return won, nil
}

// RecordClick appends a click event. Cumulative: every call for a known
// message stores a new row, repeats of the same URL included.
func (r *Recorder) RecordClick(ctx context.Context, messageID, url string) (bool, error) {
	id, ok := parseMessageID(messageID, "click")
	if !ok {
		return false, nil
	}

	msg, err := r.messages.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if msg == nil {
		logger.Warn("message not found for click tracking", "message_id", messageID)
		return false, nil
	}

	if err := r.clicks.Insert(ctx, &domain.ClickEvent{
		ID:        uuid.New(),
		MessageID: id,
		URL:       url,
	}); err != nil {
		return false, err
	}
	logger.Info("recorded click", "message_id", messageID, "url", url)
	return true, nil
}

func parseMessageID(raw, kind string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("invalid message id for tracking", "message_id", raw, "kind", kind)
		return uuid.UUID{}, false
	}
	return id, true
}
