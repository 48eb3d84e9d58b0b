package tracking

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/mailing"
	"github.com/ignite/email-tracker/internal/pkg/httputil"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

// HandleUnsubscribe serves GET and POST on the signed unsubscribe URL. POST
// covers RFC 8058 one-click requests, which carry the same signed query.
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if h.unsubscribe == nil {
		httputil.NotFound(w, "Not found")
		return
	}
	if err := h.unsubscribe.Verify(r.URL); err != nil {
		h.metrics.TrackingHit("unsubscribe", "forbidden")
		httputil.JSON(w, http.StatusForbidden, map[string]interface{}{
			"success": false,
			"error":   "Invalid or expired unsubscribe link",
		})
		return
	}

	q := r.URL.Query()
	email := strings.TrimSpace(q.Get(mailing.ParamEmail))
	if err := h.validate.Var(email, "required,email"); err != nil {
		h.metrics.TrackingHit("unsubscribe", "invalid_email")
		httputil.JSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Invalid email address",
		})
		return
	}

	ctx := r.Context()
	n := domain.Notification{
		Type:       domain.NotifyUnsubscribed,
		Email:      email,
		OccurredAt: h.now().UTC(),
		Data:       map[string]string{"ip": httputil.ClientIP(r), "user_agent": r.UserAgent()},
	}
	if messageID := q.Get(mailing.ParamMessageID); messageID != "" {
		n.MessageID = messageID
		sent, err := h.store.FindByMessageID(ctx, messageID)
		switch {
		case err == nil:
			n.SentEmail = sent
			n.Provider = sent.Provider
		case !errors.Is(err, domain.ErrNotFound):
			logger.Warn("unsubscribe sent email lookup failed", "message_id", messageID, "error", err)
		}
	}
	h.publish(ctx, n)
	h.metrics.TrackingHit("unsubscribe", "ok")
	logger.Info("unsubscribe request processed", "email", email, "message_id", n.MessageID)

	if h.redirectURL != "" {
		http.Redirect(w, r, h.redirectURL, http.StatusFound)
		return
	}
	httputil.OK(w, map[string]interface{}{"success": true, "message": "Unsubscribe request processed"})
}
