package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/ses-gateway/internal/domain"
	"github.com/ignite/ses-gateway/internal/pkg/tokens"
	"github.com/ignite/ses-gateway/internal/ratelimit"
	"github.com/ignite/ses-gateway/internal/suppression"
)

type fakeSES struct {
	inputs    []*sesv2.SendEmailInput
	messageID string
	err       error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String(f.messageID)}, nil
}

type fakeMessageStore struct {
	inserted []*domain.Message
}

func (f *fakeMessageStore) Insert(_ context.Context, m *domain.Message) error {
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	f.inserted = append(f.inserted, m)
	return nil
}

type fakeSuppressionStore struct {
	entries map[string]*domain.Suppression
}

func (f *fakeSuppressionStore) Insert(_ context.Context, s *domain.Suppression) (bool, error) {
	if _, ok := f.entries[s.Email]; ok {
		return false, nil
	}
	f.entries[s.Email] = s
	return true, nil
}

func (f *fakeSuppressionStore) Get(_ context.Context, email string) (*domain.Suppression, error) {
	return f.entries[email], nil
}

func (f *fakeSuppressionStore) Delete(_ context.Context, email string) (bool, error) {
	delete(f.entries, email)
	return true, nil
}

func (f *fakeSuppressionStore) List(_ context.Context, _ suppression.ListFilter) ([]domain.Suppression, int, error) {
	return nil, 0, nil
}

type fakeCounter struct{ count int }

func (f *fakeCounter) CountCreatedSince(_ context.Context, _ time.Time) (int, error) {
	return f.count, nil
}

type mailerFixture struct {
	mailer   *Mailer
	ses      *fakeSES
	store    *fakeMessageStore
	supStore *fakeSuppressionStore
	counter  *fakeCounter
}

func newMailerFixture(allowedDomains ...string) *mailerFixture {
	ses := &fakeSES{messageID: "<provider-abc>"}
	store := &fakeMessageStore{}
	supStore := &fakeSuppressionStore{entries: make(map[string]*domain.Suppression)}
	counter := &fakeCounter{}
	m := NewMailer(
		ses,
		store,
		suppression.NewService(supStore, nil),
		ratelimit.NewLimiter(counter, 100, time.Hour),
		tokens.NewIssuer("test-secret"),
		"https://mail.example.com",
		"gateway-events",
		allowedDomains,
	)
	return &mailerFixture{mailer: m, ses: ses, store: store, supStore: supStore, counter: counter}
}

func validRequest() SendRequest {
	return SendRequest{
		ToEmail:   "Dana@Example.com",
		FromEmail: "news@example.org",
		FromName:  "Example News",
		Subject:   "Hello",
		HTMLBody:  `<html><body><a href="https://example.com/offer">Offer</a></body></html>`,
		TextBody:  "Hello",
		Metadata:  map[string]string{"campaign": "welcome"},
	}
}

func TestSendSuccess(t *testing.T) {
	f := newMailerFixture()

	msg, err := f.mailer.Send(context.Background(), validRequest())
	require.NoError(t, err)

	// Addresses are normalized, the provider id is stored unwrapped.
	assert.Equal(t, "dana@example.com", msg.ToEmail)
	assert.Equal(t, domain.StatusSent, msg.Status)
	assert.Equal(t, "provider-abc", msg.ProviderMessageID)

	require.Len(t, f.store.inserted, 1)
	require.Len(t, f.ses.inputs, 1)

	input := f.ses.inputs[0]
	assert.Equal(t, "Example News <news@example.org>", *input.FromEmailAddress)
	assert.Equal(t, []string{"dana@example.com"}, input.Destination.ToAddresses)
	assert.Equal(t, "gateway-events", *input.ConfigurationSetName)

	// The dispatched HTML carries tracking and the unsubscribe footer.
	sentHTML := *input.Content.Simple.Body.Html.Data
	assert.Contains(t, sentHTML, "/api/track/click/"+msg.ID.String())
	assert.Contains(t, sentHTML, "/api/track/open/"+msg.ID.String())
	assert.Contains(t, sentHTML, "/api/unsubscribe?token=")
}

func TestSendInvalidAddresses(t *testing.T) {
	f := newMailerFixture()

	req := validRequest()
	req.ToEmail = "not-an-address"
	_, err := f.mailer.Send(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	req = validRequest()
	req.FromEmail = ""
	_, err = f.mailer.Send(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	assert.Empty(t, f.ses.inputs)
}

func TestSendDomainGate(t *testing.T) {
	f := newMailerFixture("example.com")

	req := validRequest()
	_, err := f.mailer.Send(context.Background(), req)
	require.NoError(t, err)

	req.ToEmail = "lee@other.org"
	_, err = f.mailer.Send(context.Background(), req)
	assert.ErrorIs(t, err, ErrDomainNotAllowed)
}

func TestSendSuppressedRecipient(t *testing.T) {
	f := newMailerFixture()
	f.supStore.entries["dana@example.com"] = &domain.Suppression{
		Email:  "dana@example.com",
		Reason: domain.ReasonHardBounce,
	}

	_, err := f.mailer.Send(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrSuppressed)
	assert.Empty(t, f.ses.inputs)
}

func TestSendRateLimited(t *testing.T) {
	f := newMailerFixture()
	f.counter.count = 100

	_, err := f.mailer.Send(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, f.ses.inputs)
}
