package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/ses-gateway/internal/domain"
	"github.com/ignite/ses-gateway/internal/pkg/httputil"
	"github.com/ignite/ses-gateway/internal/suppression"
)

var validReasons = map[domain.SuppressionReason]bool{
	domain.ReasonHardBounce:  true,
	domain.ReasonComplaint:   true,
	domain.ReasonUnsubscribe: true,
	domain.ReasonManual:      true,
}

type addSuppressionRequest struct {
	Email  string                   `json:"email"`
	Reason domain.SuppressionReason `json:"reason,omitempty"`
}

// ListSuppressions returns suppressions, optionally filtered by reason.
func (h *Handlers) ListSuppressions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	f := suppression.ListFilter{Limit: limit, Offset: offset}
	if v := r.URL.Query().Get("reason"); v != "" {
		reason := domain.SuppressionReason(v)
		if !validReasons[reason] {
			httputil.BadRequest(w, "unknown reason")
			return
		}
		f.Reason = reason
	}

	entries, total, err := h.suppressions.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.Suppression{}
	}

	httputil.OK(w, map[string]any{
		"suppressions": entries,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

// AddSuppression creates a manual suppression. Adding an address that is
// already suppressed is a conflict; the existing entry is returned.
func (h *Handlers) AddSuppression(w http.ResponseWriter, r *http.Request) {
	var req addSuppressionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.BadRequest(w, "email is required")
		return
	}
	if req.Reason == "" {
		req.Reason = domain.ReasonManual
	}
	if !validReasons[req.Reason] {
		httputil.BadRequest(w, "unknown reason")
		return
	}

	entry, created, err := h.suppressions.Add(r.Context(), req.Email, req.Reason)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !created {
		httputil.JSON(w, http.StatusConflict, map[string]any{
			"error":       "email already suppressed",
			"suppression": entry,
		})
		return
	}

	httputil.Created(w, entry)
}

// GetSuppression checks whether one address is suppressed.
func (h *Handlers) GetSuppression(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	entry, err := h.suppressions.Check(r.Context(), email)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entry == nil {
		httputil.NotFound(w, "email not suppressed")
		return
	}

	httputil.OK(w, entry)
}

// DeleteSuppression removes an address from the suppression list.
func (h *Handlers) DeleteSuppression(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	removed, err := h.suppressions.Remove(r.Context(), email)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !removed {
		httputil.NotFound(w, "email not suppressed")
		return
	}

	httputil.NoContent(w)
}
