package tracking

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/mailing"
	"github.com/ignite/email-tracker/internal/pkg/httputil"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

// HandleBeacon records the first open of a beacon and always answers with
// the same pixel, so the response never reveals whether tracking happened.
func (h *Handler) HandleBeacon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	open, err := h.store.FindOpenByBeacon(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		h.metrics.TrackingHit("beacon", "not_found")
		httputil.NotFound(w, "Beacon not found")
		return
	}
	if err != nil {
		logger.Error("beacon lookup failed", "beacon", id, "error", err)
		h.metrics.TrackingHit("beacon", "error")
		h.servePixel(w)
		return
	}

	result := "repeat"
	if open.OpenedAt == nil {
		at := h.now().UTC()
		first, err := h.store.MarkOpened(ctx, open.ID, at)
		switch {
		case err != nil:
			logger.Error("recording open failed", "beacon", id, "error", err)
			result = "error"
		case first:
			result = "first"
			open.OpenedAt = &at
			n := domain.Notification{Type: domain.NotifyOpened, Open: open, OccurredAt: at}
			h.attachSentEmail(r, &n, open.SentEmailID)
			h.publish(ctx, n)
		}
	}
	h.metrics.TrackingHit("beacon", result)
	h.servePixel(w)
}

// HandleLink counts a click and redirects to the original URL.
func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	link, err := h.store.FindLinkByIdentifier(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		h.metrics.TrackingHit("link", "not_found")
		httputil.NotFound(w, "Link not found")
		return
	}
	if err != nil {
		h.metrics.TrackingHit("link", "error")
		httputil.InternalError(w, err)
		return
	}

	count, err := h.store.RecordClick(ctx, link.ID)
	if err != nil {
		h.metrics.TrackingHit("link", "error")
		httputil.InternalError(w, err)
		return
	}
	link.Clicked = true
	link.ClickCount = count

	n := domain.Notification{Type: domain.NotifyClicked, Link: link, OccurredAt: h.now().UTC()}
	h.attachSentEmail(r, &n, link.SentEmailID)
	h.publish(ctx, n)

	// Stored URLs are re-checked so a tampered row can not become an open redirect.
	if !mailing.Trackable(link.OriginalURL) {
		logger.Warn("refusing redirect to untrackable url", "link", id)
		h.metrics.TrackingHit("link", "invalid_url")
		httputil.BadRequest(w, "Invalid redirect URL")
		return
	}
	h.metrics.TrackingHit("link", "redirect")
	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}

// attachSentEmail adds the caller's address and, when the lookup succeeds,
// the send record to n.
func (h *Handler) attachSentEmail(r *http.Request, n *domain.Notification, sentEmailID int64) {
	n.Data = map[string]string{"ip": httputil.ClientIP(r), "user_agent": r.UserAgent()}
	sent, err := h.store.FindSentEmail(r.Context(), sentEmailID)
	if err != nil {
		logger.Warn("sent email lookup failed", "sent_email_id", sentEmailID, "error", err)
		return
	}
	n.SentEmail = sent
	n.Provider = sent.Provider
	n.MessageID = sent.MessageID
	n.Email = sent.Email
}
