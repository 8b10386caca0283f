package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/ses-gateway/internal/domain"
)

type fakeMessages struct {
	byProvider map[string]*domain.Message

	transitions []transitionCall
	deferred    []uuid.UUID

	transitionApplied bool
	deferApplied      bool
}

type transitionCall struct {
	id   uuid.UUID
	to   domain.MessageStatus
	from []domain.MessageStatus
}

func (f *fakeMessages) GetByProviderID(_ context.Context, providerID string) (*domain.Message, error) {
	return f.byProvider[providerID], nil
}

func (f *fakeMessages) TransitionStatus(_ context.Context, id uuid.UUID, to domain.MessageStatus, from ...domain.MessageStatus) (bool, error) {
	f.transitions = append(f.transitions, transitionCall{id: id, to: to, from: from})
	return f.transitionApplied, nil
}

func (f *fakeMessages) MarkDeferred(_ context.Context, id uuid.UUID) (bool, error) {
	f.deferred = append(f.deferred, id)
	return f.deferApplied, nil
}

type fakeEvents struct {
	inserted []domain.Event
}

func (f *fakeEvents) Insert(_ context.Context, ev *domain.Event) error {
	f.inserted = append(f.inserted, *ev)
	return nil
}

type fakeSuppressor struct {
	calls []suppressCall
}

type suppressCall struct {
	email  string
	reason domain.SuppressionReason
}

func (f *fakeSuppressor) Suppress(_ context.Context, email string, reason domain.SuppressionReason) error {
	f.calls = append(f.calls, suppressCall{email: email, reason: reason})
	return nil
}

func newFixture(t *testing.T, status domain.MessageStatus) (*Processor, *fakeMessages, *fakeEvents, *fakeSuppressor, *domain.Message) {
	t.Helper()
	msg := &domain.Message{
		ID:                uuid.New(),
		ToEmail:           "dana@example.com",
		Status:            status,
		ProviderMessageID: "provider-123",
	}
	messages := &fakeMessages{
		byProvider:        map[string]*domain.Message{"provider-123": msg},
		transitionApplied: true,
		deferApplied:      true,
	}
	events := &fakeEvents{}
	supp := &fakeSuppressor{}
	return NewProcessor(messages, events, supp), messages, events, supp, msg
}

func sesJSON(t *testing.T, fields map[string]any) json.RawMessage {
	t.Helper()
	base := map[string]any{
		"mail": map[string]any{
			"messageId": "provider-123",
			"timestamp": "2026-08-01T10:00:00Z",
		},
	}
	for k, v := range fields {
		base[k] = v
	}
	raw, err := json.Marshal(base)
	require.NoError(t, err)
	return raw
}

func TestProcessDelivery(t *testing.T) {
	p, messages, events, supp, msg := newFixture(t, domain.StatusSent)

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "Delivery",
		"delivery":  map[string]any{"timestamp": "2026-08-01T10:05:00Z"},
	}))
	require.NoError(t, err)

	require.Len(t, messages.transitions, 1)
	tr := messages.transitions[0]
	assert.Equal(t, msg.ID, tr.id)
	assert.Equal(t, domain.StatusDelivered, tr.to)
	assert.ElementsMatch(t, []domain.MessageStatus{domain.StatusSent, domain.StatusDeferred}, tr.from)

	require.Len(t, events.inserted, 1)
	ev := events.inserted[0]
	assert.Equal(t, domain.EventDelivery, ev.Type)
	assert.Equal(t, msg.ID, ev.MessageID)
	assert.Equal(t, "2026-08-01T10:05:00Z", ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))

	assert.Empty(t, supp.calls)
}

func TestProcessDeliveryNotAppliedStillAudited(t *testing.T) {
	p, messages, events, _, _ := newFixture(t, domain.StatusBounced)
	messages.transitionApplied = false

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "Delivery",
	}))
	require.NoError(t, err)

	// The transition is refused but the audit row is still written.
	require.Len(t, messages.transitions, 1)
	assert.Len(t, events.inserted, 1)
}

func TestProcessHardBounceSuppresses(t *testing.T) {
	p, messages, events, supp, msg := newFixture(t, domain.StatusDelivered)

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "Bounce",
		"bounce": map[string]any{
			"bounceType": "Permanent",
			"bouncedRecipients": []map[string]any{
				{"emailAddress": "dana@example.com", "diagnosticCode": "smtp; 550 user unknown"},
			},
			"timestamp": "2026-08-01T10:06:00Z",
		},
	}))
	require.NoError(t, err)

	require.Len(t, messages.transitions, 1)
	tr := messages.transitions[0]
	assert.Equal(t, domain.StatusBounced, tr.to)
	assert.ElementsMatch(t,
		[]domain.MessageStatus{domain.StatusSent, domain.StatusDeferred, domain.StatusDelivered},
		tr.from)

	require.Len(t, events.inserted, 1)
	ev := events.inserted[0]
	assert.Equal(t, domain.EventBounce, ev.Type)
	require.NotNil(t, ev.BounceType)
	assert.Equal(t, "hard", *ev.BounceType)
	require.NotNil(t, ev.BounceReason)
	assert.Equal(t, "smtp; 550 user unknown", *ev.BounceReason)

	require.Len(t, supp.calls, 1)
	assert.Equal(t, msg.ToEmail, supp.calls[0].email)
	assert.Equal(t, domain.ReasonHardBounce, supp.calls[0].reason)
}

func TestProcessSoftBounceDoesNotSuppress(t *testing.T) {
	p, _, events, supp, _ := newFixture(t, domain.StatusSent)

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "Bounce",
		"bounce": map[string]any{
			"bounceType":        "Transient",
			"bouncedRecipients": []map[string]any{{"emailAddress": "dana@example.com"}},
		},
	}))
	require.NoError(t, err)

	require.Len(t, events.inserted, 1)
	ev := events.inserted[0]
	require.NotNil(t, ev.BounceType)
	assert.Equal(t, "soft", *ev.BounceType)
	// Recipient present but no diagnostic code.
	require.NotNil(t, ev.BounceReason)
	assert.Equal(t, "Unknown", *ev.BounceReason)

	assert.Empty(t, supp.calls)
}

func TestProcessBounceWithoutRecipients(t *testing.T) {
	p, _, events, _, _ := newFixture(t, domain.StatusSent)

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "Bounce",
		"bounce":    map[string]any{"bounceType": "Permanent"},
	}))
	require.NoError(t, err)

	require.Len(t, events.inserted, 1)
	assert.Nil(t, events.inserted[0].BounceReason)
}

func TestProcessHardBounceSuppressesEvenWhenTransitionRefused(t *testing.T) {
	p, messages, _, supp, _ := newFixture(t, domain.StatusBounced)
	messages.transitionApplied = false

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "Bounce",
		"bounce":    map[string]any{"bounceType": "Permanent"},
	}))
	require.NoError(t, err)

	// Duplicate bounce for an already-bounced message still escalates; the
	// address is undeliverable regardless of transition bookkeeping.
	require.Len(t, supp.calls, 1)
	assert.Equal(t, domain.ReasonHardBounce, supp.calls[0].reason)
}

func TestProcessComplaint(t *testing.T) {
	p, messages, events, supp, msg := newFixture(t, domain.StatusDelivered)

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "Complaint",
		"complaint": map[string]any{
			"complaintFeedbackType": "abuse",
			"timestamp":             "2026-08-01T12:00:00Z",
		},
	}))
	require.NoError(t, err)

	require.Len(t, messages.transitions, 1)
	assert.Equal(t, domain.StatusComplained, messages.transitions[0].to)

	require.Len(t, events.inserted, 1)
	assert.Equal(t, domain.EventComplaint, events.inserted[0].Type)

	require.Len(t, supp.calls, 1)
	assert.Equal(t, msg.ToEmail, supp.calls[0].email)
	assert.Equal(t, domain.ReasonComplaint, supp.calls[0].reason)
}

func TestProcessDelay(t *testing.T) {
	p, messages, events, supp, msg := newFixture(t, domain.StatusSent)

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "DeliveryDelay",
		"deliveryDelay": map[string]any{
			"delayType": "MailboxFull",
			"delayedRecipients": []map[string]any{
				{"emailAddress": "dana@example.com", "diagnosticCode": "smtp; 452 mailbox full"},
			},
		},
	}))
	require.NoError(t, err)

	require.Len(t, messages.deferred, 1)
	assert.Equal(t, msg.ID, messages.deferred[0])
	assert.Empty(t, messages.transitions)

	require.Len(t, events.inserted, 1)
	ev := events.inserted[0]
	assert.Equal(t, domain.EventDelay, ev.Type)
	require.NotNil(t, ev.DelayType)
	assert.Equal(t, "MailboxFull", *ev.DelayType)
	require.NotNil(t, ev.DelayReason)
	assert.Equal(t, "smtp; 452 mailbox full", *ev.DelayReason)

	assert.Empty(t, supp.calls)
}

func TestProcessDelayAfterDeliveryIsAuditOnly(t *testing.T) {
	p, messages, events, _, _ := newFixture(t, domain.StatusDelivered)
	messages.deferApplied = false

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType":     "DeliveryDelay",
		"deliveryDelay": map[string]any{"delayType": "TransientCommunicationFailure"},
	}))
	require.NoError(t, err)

	// Late delay: no state change, but the event is still recorded.
	require.Len(t, messages.deferred, 1)
	assert.Len(t, events.inserted, 1)
}

func TestProcessReject(t *testing.T) {
	p, messages, events, _, _ := newFixture(t, domain.StatusSent)

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "Reject",
		"reject":    map[string]any{"reason": "Bad content"},
	}))
	require.NoError(t, err)

	require.Len(t, messages.transitions, 1)
	assert.Equal(t, domain.StatusRejected, messages.transitions[0].to)
	require.Len(t, events.inserted, 1)
	assert.Equal(t, domain.EventReject, events.inserted[0].Type)
}

func TestProcessUnknownEventTypeDropped(t *testing.T) {
	p, messages, events, supp, _ := newFixture(t, domain.StatusSent)

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "Send",
	}))
	require.NoError(t, err)

	assert.Empty(t, messages.transitions)
	assert.Empty(t, events.inserted)
	assert.Empty(t, supp.calls)
}

func TestProcessUnknownProviderIDDropped(t *testing.T) {
	p, messages, events, _, _ := newFixture(t, domain.StatusSent)
	delete(messages.byProvider, "provider-123")

	err := p.Process(context.Background(), sesJSON(t, map[string]any{
		"eventType": "Delivery",
	}))
	require.NoError(t, err)

	assert.Empty(t, messages.transitions)
	assert.Empty(t, events.inserted)
}

func TestProcessAngleBracketProviderID(t *testing.T) {
	p, messages, events, _, _ := newFixture(t, domain.StatusSent)

	raw, err := json.Marshal(map[string]any{
		"eventType": "Delivery",
		"mail": map[string]any{
			"messageId": "<provider-123>",
			"timestamp": "2026-08-01T10:00:00Z",
		},
	})
	require.NoError(t, err)

	require.NoError(t, p.Process(context.Background(), raw))

	// The wrapped id resolves to the same message.
	assert.Len(t, messages.transitions, 1)
	assert.Len(t, events.inserted, 1)
}

func TestProcessMalformedJSON(t *testing.T) {
	p, _, _, _, _ := newFixture(t, domain.StatusSent)
	err := p.Process(context.Background(), json.RawMessage(`{not json`))
	assert.Error(t, err)
}
