package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SuppressionReason enumerates why an email address was suppressed.
type SuppressionReason string

const (
	ReasonHardBounce  SuppressionReason = "hard_bounce"
	ReasonComplaint   SuppressionReason = "complaint"
	ReasonUnsubscribe SuppressionReason = "unsubscribe"
	ReasonManual      SuppressionReason = "manual"
)

// Suppression is a standing block on an address. At most one row exists per
// normalized address; the first writer wins on reason.
type Suppression struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	Email     string            `json:"email" db:"email"`
	Reason    SuppressionReason `json:"reason" db:"reason"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// NormalizeEmail lower-cases and trims an address for suppression storage
// and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
