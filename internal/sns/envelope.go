// Package sns authenticates and parses Amazon SNS push notifications.
//
// SNS delivers SES events wrapped in a signed JSON envelope. This package
// owns the trust boundary: validating the envelope structure, verifying the
// RSA signature against Amazon's signing certificate (fetched once per URL
// and cached for the process lifetime), and confirming topic subscriptions.
package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ignite/ses-gateway/internal/pkg/httpretry"
)

// Envelope message types.
const (
	TypeNotification             = "Notification"
	TypeSubscriptionConfirmation = "SubscriptionConfirmation"
	TypeUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

var (
	// ErrValidation marks a structurally invalid envelope: missing required
	// fields, an untrusted certificate URL, or an unparseable signature or
	// certificate. A signature that simply does not verify is NOT a
	// validation error; Verifier.Verify reports that as (false, nil).
	ErrValidation = errors.New("invalid sns message")

	// ErrFetch marks a transient failure to retrieve an external resource
	// (subscription confirmation URL). The caller may surface it as
	// retryable.
	ErrFetch = errors.New("sns fetch failed")
)

// Envelope is the outer SNS notification wrapper. The embedded SES event
// travels as a JSON string in Message and must be decoded a second time.
type Envelope struct {
	Type             string  `json:"Type"`
	MessageID        string  `json:"MessageId"`
	TopicArn         string  `json:"TopicArn,omitempty"`
	Subject          *string `json:"Subject,omitempty"`
	Message          string  `json:"Message"`
	Timestamp        string  `json:"Timestamp"`
	SignatureVersion string  `json:"SignatureVersion,omitempty"`
	Signature        string  `json:"Signature"`
	SigningCertURL   string  `json:"SigningCertURL"`
	Token            string  `json:"Token,omitempty"`
	SubscribeURL     string  `json:"SubscribeURL,omitempty"`
}

// ParseEnvelope decodes the raw webhook body into an Envelope and checks the
// fields every message type must carry. Unknown Type values are accepted
// here; the caller decides how to acknowledge them.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing Type", ErrValidation)
	}
	if env.MessageID == "" {
		return nil, fmt.Errorf("%w: missing MessageId", ErrValidation)
	}
	return &env, nil
}

// ConfirmSubscription acknowledges a topic subscription by fetching the
// SubscribeURL once. A non-2xx response or network failure is reported as a
// transient fetch failure so the caller can let SNS retry.
func ConfirmSubscription(ctx context.Context, client httpretry.HTTPDoer, subscribeURL string) error {
	if subscribeURL == "" {
		return fmt.Errorf("%w: missing SubscribeURL", ErrValidation)
	}
	if client == nil {
		client = defaultHTTPClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subscribeURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: subscribe URL returned %d", ErrFetch, resp.StatusCode)
	}
	return nil
}
