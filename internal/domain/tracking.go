package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClickEvent represents one recorded link click. Clicks are cumulative:
// every click appends a row, including repeats of the same URL, because the
// raw stream feeds engagement analytics.
type ClickEvent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	MessageID uuid.UUID `json:"message_id" db:"message_id"`
	URL       string    `json:"url" db:"url"`
	ClickedAt time.Time `json:"clicked_at" db:"clicked_at"`
}
