// Package api exposes the gateway's HTTP surface: the SES webhook, the send
// and suppression APIs, tracking endpoints, and dashboard reads.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/ses-gateway/internal/domain"
	"github.com/ignite/ses-gateway/internal/mailer"
	"github.com/ignite/ses-gateway/internal/pkg/httputil"
	"github.com/ignite/ses-gateway/internal/pkg/tokens"
	"github.com/ignite/ses-gateway/internal/repository/postgres"
	"github.com/ignite/ses-gateway/internal/suppression"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handlers carries the service dependencies for the JSON API.
type Handlers struct {
	messages     *postgres.MessageRepo
	events       *postgres.EventRepo
	clicks       *postgres.ClickRepo
	suppressions *suppression.Service
	mailer       *mailer.Mailer
	tokens       *tokens.Issuer
}

// NewHandlers wires the API handlers.
func NewHandlers(
	messages *postgres.MessageRepo,
	events *postgres.EventRepo,
	clicks *postgres.ClickRepo,
	suppressions *suppression.Service,
	m *mailer.Mailer,
	issuer *tokens.Issuer,
) *Handlers {
	return &Handlers{
		messages:     messages,
		events:       events,
		clicks:       clicks,
		suppressions: suppressions,
		mailer:       m,
		tokens:       issuer,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetMessage returns one message with its event history and click activity.
func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		httputil.BadRequest(w, "invalid message id")
		return
	}

	msg, err := h.messages.GetByID(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if msg == nil {
		httputil.NotFound(w, "message not found")
		return
	}

	events, err := h.events.ListByMessage(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	clicks, err := h.clicks.ListByMessage(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]any{
		"message": msg,
		"events":  events,
		"clicks":  clicks,
	})
}

// ListMessages returns messages newest first, paginated.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	msgs, total, err := h.messages.List(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}

	httputil.OK(w, map[string]any{
		"messages": msgs,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetDashboardStats returns delivery and engagement counts over a trailing
// window of days (default 7).
func (h *Handlers) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			httputil.BadRequest(w, "days must be between 1 and 365")
			return
		}
		days = n
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := h.messages.Stats(r.Context(), since)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]any{
		"period_days": days,
		"stats":       stats,
	})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
