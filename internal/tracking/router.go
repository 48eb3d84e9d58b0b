package tracking

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RouteConfig selects which route groups are mounted.
type RouteConfig struct {
	// Enabled mounts the webhook, beacon, link and unsubscribe routes under Prefix.
	Enabled bool
	Prefix  string
	// Legacy mounts the SES-only routes at /ses.
	Legacy bool
	// RateLimit is a limiter rate such as "600-M" applied per client IP to the
	// public beacon, link and unsubscribe routes. Empty disables limiting.
	RateLimit string
	// Redis, when set, shares rate limit counters between instances.
	Redis *redis.Client
}

// Routes builds the router.
func (h *Handler) Routes(cfg RouteConfig) (chi.Router, error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", h.HandleHealth)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	public, err := publicMiddleware(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Enabled {
		routes := func(r chi.Router) {
			r.Post("/webhook/{provider}", h.HandleWebhook)
			r.Post("/webhook/{provider}/{event}", h.HandleWebhook)
			r.Group(func(r chi.Router) {
				r.Use(public...)
				r.Get("/beacon/{id}", h.HandleBeacon)
				r.Get("/link/{id}", h.HandleLink)
				r.Get("/unsubscribe", h.HandleUnsubscribe)
				r.Post("/unsubscribe", h.HandleUnsubscribe)
			})
		}
		if prefix := strings.Trim(cfg.Prefix, "/"); prefix != "" {
			r.Route("/"+prefix, routes)
		} else {
			routes(r)
		}
	}

	if cfg.Legacy {
		r.Route("/ses", func(r chi.Router) {
			r.Post("/notification/{event}", h.HandleLegacySES)
			r.Group(func(r chi.Router) {
				r.Use(public...)
				r.Get("/beacon/{id}", h.HandleBeacon)
				r.Get("/link/{id}", h.HandleLink)
			})
		})
	}
	return r, nil
}

// publicMiddleware is applied to routes recipients hit directly from mail
// clients and browsers.
func publicMiddleware(cfg RouteConfig) ([]func(http.Handler) http.Handler, error) {
	mw := []func(http.Handler) http.Handler{
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}),
	}
	if cfg.RateLimit == "" {
		return mw, nil
	}

	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", cfg.RateLimit, err)
	}
	var store limiter.Store
	if cfg.Redis != nil {
		store, err = sredis.NewStoreWithOptions(cfg.Redis, limiter.StoreOptions{Prefix: "email-tracker:limiter"})
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
	} else {
		store = memory.NewStore()
	}
	lim := limiter.New(store, rate, limiter.WithTrustForwardHeader(true))
	return append(mw, stdlib.NewMiddleware(lim).Handler), nil
}
