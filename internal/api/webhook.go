package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ignite/ses-gateway/internal/pkg/httpretry"
	"github.com/ignite/ses-gateway/internal/pkg/httputil"
	"github.com/ignite/ses-gateway/internal/pkg/logger"
	"github.com/ignite/ses-gateway/internal/sns"
)

// SNS caps published messages at 256KB; anything bigger is not Amazon.
const maxWebhookBody = 1 << 20

// SignatureVerifier authenticates SNS envelopes.
type SignatureVerifier interface {
	Verify(ctx context.Context, env *sns.Envelope) (bool, error)
}

// EventProcessor applies one decoded SES event.
type EventProcessor interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// WebhookHandler terminates the SNS push endpoint. Every request is
// authenticated by signature before its content is trusted; once a
// notification is authenticated the response is 200 no matter what happens
// downstream, because SNS retries non-2xx responses and a poison event would
// otherwise be redelivered forever.
type WebhookHandler struct {
	verifier  SignatureVerifier
	processor EventProcessor
	client    httpretry.HTTPDoer
}

// NewWebhookHandler wires the webhook endpoint. A nil client uses the
// default retrying client for subscription confirmations.
func NewWebhookHandler(verifier SignatureVerifier, processor EventProcessor, client httpretry.HTTPDoer) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, processor: processor, client: client}
}

// HandleSES receives SNS POSTs carrying SES events.
func (h *WebhookHandler) HandleSES(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.BadRequest(w, "unreadable body")
		return
	}

	env, err := sns.ParseEnvelope(body)
	if err != nil {
		httputil.BadRequest(w, "malformed sns envelope")
		return
	}

	valid, err := h.verifier.Verify(r.Context(), env)
	if err != nil {
		logger.Warn("webhook signature validation failed",
			"sns_message_id", env.MessageID, "error", err.Error())
		httputil.Error(w, http.StatusForbidden, "signature validation failed")
		return
	}
	if !valid {
		logger.Warn("webhook signature mismatch", "sns_message_id", env.MessageID)
		httputil.Error(w, http.StatusForbidden, "invalid signature")
		return
	}

	switch env.Type {
	case sns.TypeSubscriptionConfirmation:
		if err := sns.ConfirmSubscription(r.Context(), h.client, env.SubscribeURL); err != nil {
			// SNS retries the confirmation on a non-2xx response.
			logger.Error("subscription confirmation failed",
				"topic_arn", env.TopicArn, "error", err.Error())
			httputil.InternalError(w, err)
			return
		}
		logger.Info("sns subscription confirmed", "topic_arn", env.TopicArn)
		httputil.OK(w, map[string]string{"status": "confirmed"})

	case sns.TypeNotification:
		// The envelope is authenticated; from here on processing failures
		// are ours to log, not SNS's to retry.
		if err := h.processor.Process(r.Context(), json.RawMessage(env.Message)); err != nil {
			logger.Error("event processing failed",
				"sns_message_id", env.MessageID, "error", err.Error())
		}
		httputil.OK(w, map[string]string{"status": "processed"})

	default:
		logger.Info("ignoring sns message", "type", env.Type, "sns_message_id", env.MessageID)
		httputil.OK(w, map[string]string{"status": "ignored"})
	}
}
