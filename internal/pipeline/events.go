package pipeline

import (
	"time"
)

// Wire-level SES event type names, as they appear in the "eventType" field
// of the JSON carried inside an SNS Notification's Message string.
const (
	sesDelivery      = "Delivery"
	sesBounce        = "Bounce"
	sesComplaint     = "Complaint"
	sesDeliveryDelay = "DeliveryDelay"
	sesReject        = "Reject"
)

// Bounce classification SES uses for permanent failures. Everything else
// ("Transient", "Undetermined") is treated as soft.
const bounceTypePermanent = "Permanent"

// sesEvent is the inner SES event payload. Only the fields the pipeline
// consumes are declared; the verbatim payload is persisted separately.
type sesEvent struct {
	EventType string `json:"eventType"`
	Mail      struct {
		MessageID string    `json:"messageId"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"mail"`
	Delivery *struct {
		Timestamp time.Time `json:"timestamp"`
	} `json:"delivery,omitempty"`
	Bounce *struct {
		BounceType        string          `json:"bounceType"`
		BouncedRecipients []recipientInfo `json:"bouncedRecipients"`
		Timestamp         time.Time       `json:"timestamp"`
	} `json:"bounce,omitempty"`
	Complaint *struct {
		ComplaintFeedbackType string    `json:"complaintFeedbackType"`
		Timestamp             time.Time `json:"timestamp"`
	} `json:"complaint,omitempty"`
	DeliveryDelay *struct {
		DelayType         string          `json:"delayType"`
		DelayedRecipients []recipientInfo `json:"delayedRecipients"`
		Timestamp         time.Time       `json:"timestamp"`
	} `json:"deliveryDelay,omitempty"`
	Reject *struct {
		Reason    string    `json:"reason"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"reject,omitempty"`
}

// eventTimestamp picks the provider-supplied timestamp for the event,
// falling back to the mail timestamp and finally the current time so the
// audit row always carries something plausible.
func (e *sesEvent) eventTimestamp() time.Time {
	var ts time.Time
	switch e.EventType {
	case sesDelivery:
		if e.Delivery != nil {
			ts = e.Delivery.Timestamp
		}
	case sesBounce:
		if e.Bounce != nil {
			ts = e.Bounce.Timestamp
		}
	case sesComplaint:
		if e.Complaint != nil {
			ts = e.Complaint.Timestamp
		}
	case sesDeliveryDelay:
		if e.DeliveryDelay != nil {
			ts = e.DeliveryDelay.Timestamp
		}
	case sesReject:
		if e.Reject != nil {
			ts = e.Reject.Timestamp
		}
	}
	if ts.IsZero() {
		ts = e.Mail.Timestamp
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return ts
}

type recipientInfo struct {
	EmailAddress   string `json:"emailAddress"`
	DiagnosticCode string `json:"diagnosticCode"`
}

// firstDiagnostic returns the diagnostic code of the first recipient. An
// empty recipient list yields nil; a recipient without a diagnostic code
// yields the "Unknown" sentinel, matching how SES reports were historically
// stored for bounces and delays.
func firstDiagnostic(recipients []recipientInfo) *string {
	if len(recipients) == 0 {
		return nil
	}
	diag := recipients[0].DiagnosticCode
	if diag == "" {
		diag = "Unknown"
	}
	return &diag
}
