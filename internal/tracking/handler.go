package tracking

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/ses-gateway/internal/pkg/logger"
)

// PixelGIF is the 1x1 transparent GIF (43 bytes) returned by the open
// endpoint.
var PixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21,
	0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
	0x01, 0x00, 0x3b,
}

// Handler serves the tracking endpoints. Both endpoints honor their contract
// unconditionally: the pixel is always served and the redirect always fires,
// whatever happened to the recording attempt.
type Handler struct {
	rec         *Recorder
	fallbackURL string
}

// NewHandler creates a tracking handler. fallbackURL receives click
// redirects whose destination is missing or unusable.
func NewHandler(rec *Recorder, fallbackURL string) *Handler {
	return &Handler{rec: rec, fallbackURL: fallbackURL}
}

// Routes returns the tracking route tree, mounted under /api/track.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/open/{messageID}", h.HandleOpen)
	r.Get("/click/{messageID}", h.HandleClick)
	return r
}

// HandleOpen records a first open (best effort) and serves the pixel.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	if _, err := h.rec.RecordOpen(r.Context(), messageID); err != nil {
		logger.Error("open recording failed", "message_id", messageID, "error", err.Error())
	}
	h.servePixel(w)
}

// HandleClick records a click (best effort) and redirects to the original
// destination, or to the fallback URL when the destination is absent.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	// Query parsing already URL-decodes the destination.
	dest := r.URL.Query().Get("url")
	if dest == "" {
		logger.Warn("click without destination", "message_id", messageID)
		http.Redirect(w, r, h.fallbackURL, http.StatusFound)
		return
	}

	if _, err := h.rec.RecordClick(r.Context(), messageID, dest); err != nil {
		logger.Error("click recording failed", "message_id", messageID, "error", err.Error())
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(PixelGIF)
}
