package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/ses-gateway/internal/domain"
	"github.com/ignite/ses-gateway/internal/pkg/logger"
	"github.com/ignite/ses-gateway/internal/pkg/tokens"
	"github.com/ignite/ses-gateway/internal/ratelimit"
	"github.com/ignite/ses-gateway/internal/suppression"
)

// Send-path gate failures. Handlers map these onto HTTP status codes.
var (
	ErrInvalidAddress   = errors.New("invalid email address")
	ErrDomainNotAllowed = errors.New("recipient domain not allowed")
	ErrSuppressed       = errors.New("recipient is suppressed")
	ErrRateLimited      = errors.New("hourly send limit exceeded")
)

// MessageStore is the slice of the message repository the send path needs.
type MessageStore interface {
	Insert(ctx context.Context, m *domain.Message) error
}

// SendRequest describes one outbound email.
type SendRequest struct {
	ToEmail   string            `json:"to_email"`
	FromEmail string            `json:"from_email"`
	FromName  string            `json:"from_name,omitempty"`
	Subject   string            `json:"subject"`
	HTMLBody  string            `json:"html_content"`
	TextBody  string            `json:"text_content,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Mailer runs the outbound send path.
type Mailer struct {
	ses              SendAPI
	messages         MessageStore
	suppressions     *suppression.Service
	limiter          *ratelimit.Limiter
	tokens           *tokens.Issuer
	baseURL          string
	configurationSet string
	allowedDomains   []string
}

// NewMailer wires the send path. allowedDomains empty means every recipient
// domain is accepted.
func NewMailer(
	ses SendAPI,
	messages MessageStore,
	suppressions *suppression.Service,
	limiter *ratelimit.Limiter,
	issuer *tokens.Issuer,
	baseURL, configurationSet string,
	allowedDomains []string,
) *Mailer {
	return &Mailer{
		ses:              ses,
		messages:         messages,
		suppressions:     suppressions,
		limiter:          limiter,
		tokens:           issuer,
		baseURL:          baseURL,
		configurationSet: configurationSet,
		allowedDomains:   allowedDomains,
	}
}

// Send validates and gates the request, instruments the HTML body for
// tracking, dispatches via SES, and persists the resulting message with
// status sent and the provider's correlation id.
func (m *Mailer) Send(ctx context.Context, req SendRequest) (*domain.Message, error) {
	to := domain.NormalizeEmail(req.ToEmail)
	from := domain.NormalizeEmail(req.FromEmail)

	if !validAddress(to) {
		return nil, fmt.Errorf("%w: recipient %q", ErrInvalidAddress, req.ToEmail)
	}
	if !validAddress(from) {
		return nil, fmt.Errorf("%w: sender %q", ErrInvalidAddress, req.FromEmail)
	}
	if !m.domainAllowed(to) {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotAllowed, domainOf(to))
	}

	suppressed, err := m.suppressions.IsSuppressed(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("suppression check: %w", err)
	}
	if suppressed {
		return nil, fmt.Errorf("%w: %s", ErrSuppressed, to)
	}

	exceeded, count, err := m.limiter.Check(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if exceeded {
		return nil, fmt.Errorf("%w: %d sent in the last hour", ErrRateLimited, count)
	}

	msg := &domain.Message{
		ID:        uuid.New(),
		ToEmail:   to,
		FromEmail: from,
		FromName:  req.FromName,
		Subject:   req.Subject,
		TextBody:  req.TextBody,
		Status:    domain.StatusSent,
		Metadata:  req.Metadata,
	}

	unsubURL := m.unsubscribeURL(to, msg.ID.String())
	msg.HTMLBody = InstrumentHTML(req.HTMLBody, msg.ID.String(), m.baseURL, unsubURL)

	source := from
	if req.FromName != "" {
		source = fmt.Sprintf("%s <%s>", req.FromName, from)
	}

	out, err := m.ses.SendEmail(ctx, buildSendInput(
		source, to, req.Subject, msg.HTMLBody, msg.TextBody, m.configurationSet))
	if err != nil {
		return nil, fmt.Errorf("ses send: %w", err)
	}
	if out.MessageId != nil {
		msg.ProviderMessageID = domain.NormalizeProviderMessageID(*out.MessageId)
	}

	if err := m.messages.Insert(ctx, msg); err != nil {
		// The email is already out; losing the row means losing event
		// correlation for it.
		return nil, fmt.Errorf("persist message %s after send: %w", msg.ID, err)
	}

	logger.Info("email sent",
		"message_id", msg.ID.String(),
		"provider_message_id", msg.ProviderMessageID,
		"to", to)
	return msg, nil
}

func (m *Mailer) unsubscribeURL(email, messageID string) string {
	if m.tokens == nil {
		return ""
	}
	token, err := m.tokens.Generate(email, messageID)
	if err != nil {
		logger.Warn("unsubscribe token generation failed", "message_id", messageID, "error", err.Error())
		return ""
	}
	return fmt.Sprintf("%s/api/unsubscribe?token=%s", strings.TrimRight(m.baseURL, "/"), token)
}

func (m *Mailer) domainAllowed(email string) bool {
	if len(m.allowedDomains) == 0 {
		return true
	}
	dom := domainOf(email)
	for _, allowed := range m.allowedDomains {
		if strings.EqualFold(dom, allowed) {
			return true
		}
	}
	return false
}

func domainOf(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return ""
}

func validAddress(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
