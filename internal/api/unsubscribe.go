package api

import (
	"fmt"
	"net/http"

	"github.com/ignite/ses-gateway/internal/domain"
	"github.com/ignite/ses-gateway/internal/pkg/httputil"
	"github.com/ignite/ses-gateway/internal/pkg/logger"
)

// HandleUnsubscribe processes one-click unsubscribe links. The token is the
// only credential; a valid one suppresses the address it was issued for.
// Responses are small HTML pages because the link opens in a browser.
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		httputil.BadRequest(w, "missing token")
		return
	}

	claims, err := h.tokens.Validate(tokenString)
	if err != nil {
		unsubscribePage(w, http.StatusBadRequest,
			"This unsubscribe link is invalid or has expired.")
		return
	}

	if err := h.suppressions.Suppress(r.Context(), claims.Email, domain.ReasonUnsubscribe); err != nil {
		logger.Error("unsubscribe suppression failed",
			"email", claims.Email, "error", err.Error())
		unsubscribePage(w, http.StatusInternalServerError,
			"Something went wrong. Please try again later.")
		return
	}

	logger.Info("recipient unsubscribed",
		"email", claims.Email, "message_id", claims.MessageID)
	unsubscribePage(w, http.StatusOK, "You have been unsubscribed.")
}

func unsubscribePage(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Unsubscribe</title></head>
<body style="font-family:sans-serif;text-align:center;padding-top:4em;">
<p>%s</p>
</body>
</html>
`, text)
}
