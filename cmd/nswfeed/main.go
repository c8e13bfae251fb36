package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/nsw-incident-feed/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/nsw-incident-feed/internal/adapter/kafka"
	"github.com/couchcryptid/nsw-incident-feed/internal/adapter/mapbox"
	"github.com/couchcryptid/nsw-incident-feed/internal/config"
	"github.com/couchcryptid/nsw-incident-feed/internal/dispatch"
	"github.com/couchcryptid/nsw-incident-feed/internal/domain"
	"github.com/couchcryptid/nsw-incident-feed/internal/feed"
	"github.com/couchcryptid/nsw-incident-feed/internal/geolocation"
	"github.com/couchcryptid/nsw-incident-feed/internal/host"
	"github.com/couchcryptid/nsw-incident-feed/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var (
		sink      host.StateSink
		publisher *kafkaadapter.Publisher
	)
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		sink = publisher
		logger.Info("kafka state publisher enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	loop := host.NewLoop(logger)
	bus := host.NewBus(logger)
	registry := host.NewRegistry(loop, sink, logger, metrics)

	manager := geolocation.NewEntityManager(
		feed.NewClient(cfg.FeedBaseURL, cfg.FeedTimeout, logger, metrics),
		registry,
		loop,
		dispatch.NewHub(),
		geolocation.Options{
			Hazard: cfg.HazardKey(),
			Filter: feed.Filter{
				Home:       domain.Coordinates{Lat: cfg.Latitude, Lon: cfg.Longitude},
				RadiusKM:   cfg.RadiusKM,
				Categories: cfg.Categories,
			},
			ScanInterval: cfg.ScanInterval,
			Geocoder:     geocoder,
		},
		logger,
		metrics,
	)

	bus.ListenOnce(host.EventStart, func(ctx context.Context) error {
		manager.Init(ctx)
		return nil
	})
	bus.ListenOnce(host.EventStop, func(_ context.Context) error {
		manager.Stop()
		return nil
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, manager, httpadapter.Options{
		Entities:         registry,
		Refresher:        manager,
		RefreshPerMinute: cfg.RefreshRateLimit,
	}, logger, metrics)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return loop.Run(gctx) })

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := bus.Fire(gctx, host.EventStart); err != nil {
			return err
		}
		// First refresh runs now rather than after one scan interval.
		_ = manager.Update(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := bus.Fire(shutdownCtx, host.EventStop); err != nil {
			errs = append(errs, err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
			errs = append(errs, err)
		}
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
