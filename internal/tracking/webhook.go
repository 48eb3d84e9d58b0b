package tracking

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/httputil"
	"github.com/ignite/email-tracker/internal/pkg/logger"
	"github.com/ignite/email-tracker/internal/provider"
)

// HandleWebhook dispatches POST /webhook/{provider}[/{event}].
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	h.serveWebhook(w, r, chi.URLParam(r, "provider"), chi.URLParam(r, "event"))
}

// HandleLegacySES serves POST /ses/notification/{event}.
func (h *Handler) HandleLegacySES(w http.ResponseWriter, r *http.Request) {
	h.serveWebhook(w, r, string(domain.ProviderSES), chi.URLParam(r, "event"))
}

func (h *Handler) serveWebhook(w http.ResponseWriter, r *http.Request, name, hint string) {
	start := time.Now()

	// Unknown and disabled providers get the same answer, before any
	// verification work.
	handler, err := h.registry.Resolve(name)
	if err != nil {
		h.metrics.ObserveWebhook("unknown", "not_found", time.Since(start).Seconds())
		httputil.NotFound(w, "Not found")
		return
	}

	body, err := httputil.ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.ObserveWebhook(name, "rejected", time.Since(start).Seconds())
			httputil.Error(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		h.metrics.ObserveWebhook(name, "rejected", time.Since(start).Seconds())
		httputil.BadRequest(w, "Invalid payload")
		return
	}

	req := provider.NewRequest(r, body, hint, httputil.ClientIP(r))
	if !handler.Verify(req) {
		logger.Warn("webhook signature rejected", "provider", name, "remote_ip", req.RemoteIP)
		h.metrics.ObserveWebhook(name, "forbidden", time.Since(start).Seconds())
		httputil.JSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "error": "Invalid signature"})
		return
	}
	h.archiver.Archive(domain.Provider(name), body, req.ReceivedAt)

	resp := handler.Handle(r.Context(), req)
	if resp.Status >= http.StatusInternalServerError {
		logger.Error("webhook processing failed", "provider", name, "status", resp.Status, "body", resp.Body["error"])
	}
	h.metrics.ObserveWebhook(name, resp.Outcome(), time.Since(start).Seconds())
	httputil.JSON(w, resp.Status, resp.Body)
}
