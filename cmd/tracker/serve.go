package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/spf13/cobra"

	"github.com/ignite/email-tracker/internal/archive"
	"github.com/ignite/email-tracker/internal/notify"
	"github.com/ignite/email-tracker/internal/pkg/dedupe"
	"github.com/ignite/email-tracker/internal/pkg/logger"
	"github.com/ignite/email-tracker/internal/provider"
	"github.com/ignite/email-tracker/internal/service/events"
	"github.com/ignite/email-tracker/internal/tracking"
	"github.com/ignite/email-tracker/internal/transport"
)

func init() {
	rootCommand.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve webhook, beacon, link and unsubscribe routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	// AWS is only needed for the optional sinks, so it is loaded lazily.
	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := transport.LoadAWSConfig(ctx, cfg.AWS)
			if err != nil {
				return aws.Config{}, err
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	bus := notify.NewBus(a.metrics)
	if cfg.Debug {
		bus.OnAll(notify.LogSubscriber)
	}
	if cfg.Notifications.SQSQueueURL != "" {
		c, err := loadAWS()
		if err != nil {
			return fmt.Errorf("aws config: %w", err)
		}
		pub := notify.NewSQSPublisher(sqs.NewFromConfig(c), cfg.Notifications.SQSQueueURL, a.metrics)
		defer pub.Close()
		bus.OnAll(pub.Publish)
	}
	if cfg.Notifications.RedisChannel != "" {
		if a.redis == nil {
			logger.Warn("redis_channel set without a reachable redis, notifications will not be published there")
		} else {
			bus.OnAll(notify.NewRedisPublisher(a.redis, cfg.Notifications.RedisChannel, a.metrics).Publish)
		}
	}

	procOpts := []events.Option{events.WithMetadata(cfg.Tracking.StoreMetadata)}
	if cfg.Dedupe.Enabled {
		if a.redis == nil {
			logger.Warn("dedupe enabled without a reachable redis, replays will not be filtered")
		} else {
			procOpts = append(procOpts, events.WithGuard(dedupe.NewRedisGuard(a.redis, cfg.Dedupe.TTL)))
		}
	}
	proc := events.NewProcessor(a.store, bus, procOpts...)

	registry, err := provider.NewFromConfig(cfg, proc, a.http)
	if err != nil {
		return fmt.Errorf("providers: %w", err)
	}

	opts := []tracking.Option{
		tracking.WithPublisher(bus),
		tracking.WithMetrics(a.metrics),
		tracking.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	if s := a.unsubscribeSigner(); s != nil {
		opts = append(opts, tracking.WithUnsubscribe(s, cfg.Unsubscribe.RedirectURL))
	}
	if cfg.Archive.S3Bucket != "" {
		c, err := loadAWS()
		if err != nil {
			return fmt.Errorf("aws config: %w", err)
		}
		arch := archive.NewS3Archiver(s3.NewFromConfig(c), cfg.Archive.S3Bucket, cfg.Archive.S3Prefix)
		defer arch.Close()
		opts = append(opts, tracking.WithArchiver(arch))
	}

	handler := tracking.NewHandler(a.store, registry, opts...)
	router, err := handler.Routes(tracking.RouteConfig{
		Enabled:   cfg.Routes.Enabled,
		Prefix:    cfg.Routes.Prefix,
		Legacy:    cfg.LegacyRoutes.Enabled,
		RateLimit: cfg.RateLimit.Tracking,
		Redis:     a.redis,
	})
	if err != nil {
		return fmt.Errorf("routes: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("tracking service listening", "addr", srv.Addr, "providers", registry.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Info("shutting down tracking service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
