package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/email-tracker/internal/config"
	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/mailing"
	"github.com/ignite/email-tracker/internal/pkg/httpretry"
	"github.com/ignite/email-tracker/internal/pkg/logger"
	"github.com/ignite/email-tracker/internal/pkg/metrics"
	"github.com/ignite/email-tracker/internal/repository/postgres"
	"github.com/ignite/email-tracker/internal/service/events"
	"github.com/ignite/email-tracker/internal/service/sending"
	"github.com/ignite/email-tracker/internal/service/suppression"
	"github.com/ignite/email-tracker/internal/transport"
)

// app holds the dependencies shared by every command.
type app struct {
	cfg     *config.Config
	db      *sql.DB
	store   *postgres.Store
	redis   *redis.Client
	metrics *metrics.Metrics
	http    httpretry.HTTPDoer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetOutput(os.Stderr, cfg.LogPrefix)
	if cfg.Debug {
		logger.SetLevel(logger.DEBUG)
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{
		cfg:   cfg,
		db:    db,
		store: postgres.New(db, cfg.Database.TablePrefix),
		http:  httpretry.NewRetryClient(nil, 2),
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, continuing without it", "error", err)
			a.redis.Close()
			a.redis = nil
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(reg)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}

func (a *app) validator() *suppression.Validator {
	return suppression.NewValidator(a.store, suppression.Policy{
		SkipBounced:    a.cfg.Validation.SkipBounced,
		SkipComplained: a.cfg.Validation.SkipComplained,
	})
}

// unsubscribeSigner returns nil when unsubscribe links are disabled.
func (a *app) unsubscribeSigner() *mailing.UnsubscribeSigner {
	u := a.cfg.Unsubscribe
	if !u.Enabled {
		return nil
	}
	return mailing.NewUnsubscribeSigner(u.SigningKey, a.publicURL("unsubscribe"), u.SignatureExpiration())
}

// publicURL returns the absolute URL of a route under the tracking prefix.
func (a *app) publicURL(p string) string {
	return strings.TrimRight(a.cfg.Server.BaseURL, "/") + a.cfg.RoutePath(p)
}

// pipeline builds the tracked send pipeline over every configured transport.
func (a *app) pipeline(ctx context.Context, pub events.Publisher) (*sending.Pipeline, error) {
	transports, err := transport.FromConfig(ctx, a.cfg, a.http)
	if err != nil {
		return nil, fmt.Errorf("build transports: %w", err)
	}
	if len(transports) == 0 {
		logger.Warn("no transport has sending credentials")
	}

	pc := sending.Config{
		DefaultProvider:     domain.Provider(a.cfg.DefaultProvider),
		Tracking:            a.cfg.Tracking.TrackingOptions,
		UnsubscribeHeaders:  a.cfg.Unsubscribe.Enabled,
		UnsubscribeMailto:   a.cfg.Unsubscribe.Mailto,
		SESConfigurationSet: a.cfg.Providers.SES.ConfigurationSet,
	}
	if u, err := url.Parse(a.cfg.Server.BaseURL); err == nil {
		pc.MessageIDDomain = u.Hostname()
	}

	opts := []sending.Option{
		sending.WithRewriter(mailing.NewRewriter(a.store, strings.TrimSuffix(a.publicURL(""), "/"))),
		sending.WithPublisher(pub),
		sending.WithMetrics(a.metrics),
	}
	if v := a.validator(); v.Policy().Enabled() {
		opts = append(opts, sending.WithSuppression(v))
	}
	if s := a.unsubscribeSigner(); s != nil {
		opts = append(opts, sending.WithUnsubscribe(s))
	}
	return sending.NewPipeline(a.store, transports, pc, opts...), nil
}
