// Package tracking is the tracker's HTTP surface: provider webhooks, the open
// beacon, link redirects and signed unsubscribe links.
package tracking

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ignite/email-tracker/internal/archive"
	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/httputil"
	"github.com/ignite/email-tracker/internal/pkg/metrics"
	"github.com/ignite/email-tracker/internal/provider"
	"github.com/ignite/email-tracker/internal/service/events"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Store is the persistence the controllers need.
type Store interface {
	FindOpenByBeacon(ctx context.Context, beacon string) (*domain.EmailOpen, error)
	// MarkOpened sets opened_at if unset and reports whether it did.
	MarkOpened(ctx context.Context, openID int64, at time.Time) (bool, error)
	FindLinkByIdentifier(ctx context.Context, identifier string) (*domain.EmailLink, error)
	// RecordClick sets clicked and increments click_count, returning the new count.
	RecordClick(ctx context.Context, linkID int64) (int64, error)
	FindSentEmail(ctx context.Context, id int64) (*domain.SentEmail, error)
	FindByMessageID(ctx context.Context, messageID string) (*domain.SentEmail, error)
}

// UnsubscribeVerifier checks signed unsubscribe URLs.
type UnsubscribeVerifier interface {
	Verify(u *url.URL) error
}

// Handler serves every tracking route.
type Handler struct {
	store        Store
	registry     *provider.Registry
	publisher    events.Publisher
	metrics      *metrics.Metrics
	archiver     archive.Archiver
	unsubscribe  UnsubscribeVerifier
	redirectURL  string
	maxBodyBytes int64
	validate     *validator.Validate
	now          func() time.Time
}

// Option customises a Handler.
type Option func(*Handler)

// WithPublisher receives opened, clicked and unsubscribed notifications.
func WithPublisher(p events.Publisher) Option { return func(h *Handler) { h.publisher = p } }

// WithMetrics records webhook and tracking hit metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(h *Handler) { h.metrics = m } }

// WithArchiver stores every verified webhook body.
func WithArchiver(a archive.Archiver) Option { return func(h *Handler) { h.archiver = a } }

// WithUnsubscribe enables the unsubscribe route. redirectURL, when set, is
// where successful requests are sent.
func WithUnsubscribe(v UnsubscribeVerifier, redirectURL string) Option {
	return func(h *Handler) {
		h.unsubscribe = v
		h.redirectURL = redirectURL
	}
}

// WithMaxBodyBytes bounds webhook bodies.
func WithMaxBodyBytes(n int64) Option { return func(h *Handler) { h.maxBodyBytes = n } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

// NewHandler creates a Handler.
func NewHandler(store Store, registry *provider.Registry, opts ...Option) *Handler {
	h := &Handler{
		store:        store,
		registry:     registry,
		archiver:     archive.Nop{},
		maxBodyBytes: httputil.DefaultMaxBodyBytes,
		validate:     validator.New(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) publish(ctx context.Context, n domain.Notification) {
	if h.publisher != nil {
		h.publisher.Publish(ctx, n)
	}
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}
