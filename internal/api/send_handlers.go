package api

import (
	"errors"
	"net/http"

	"github.com/ignite/ses-gateway/internal/mailer"
	"github.com/ignite/ses-gateway/internal/pkg/httputil"
)

// SendMessage accepts a send request, runs it through the outbound gates,
// and returns the stored message on success.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req mailer.SendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.ToEmail == "" || req.FromEmail == "" || req.Subject == "" {
		httputil.BadRequest(w, "to_email, from_email and subject are required")
		return
	}
	if req.HTMLBody == "" && req.TextBody == "" {
		httputil.BadRequest(w, "html_content or text_content is required")
		return
	}

	msg, err := h.mailer.Send(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, mailer.ErrInvalidAddress):
			httputil.BadRequest(w, err.Error())
		case errors.Is(err, mailer.ErrDomainNotAllowed), errors.Is(err, mailer.ErrSuppressed):
			httputil.Error(w, http.StatusForbidden, err.Error())
		case errors.Is(err, mailer.ErrRateLimited):
			httputil.Error(w, http.StatusTooManyRequests, err.Error())
		default:
			httputil.InternalError(w, err)
		}
		return
	}

	httputil.Created(w, msg)
}
