package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/minesite-climate-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/minesite-climate-service/internal/adapter/mapbox"
	"github.com/couchcryptid/minesite-climate-service/internal/config"
	"github.com/couchcryptid/minesite-climate-service/internal/dashboard"
	"github.com/couchcryptid/minesite-climate-service/internal/domain"
	"github.com/couchcryptid/minesite-climate-service/internal/observability"
	"github.com/couchcryptid/minesite-climate-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources := pipeline.SourcesFromConfig(cfg)
	loader := pipeline.NewLoader(sources, cfg.LoadConcurrency, geocoder, logger)
	p := pipeline.New(loader, &pipeline.Store{}, logger, metrics)

	// The catalog must load before serving; bad data is a start-up failure.
	if err := p.Load(ctx); err != nil {
		logger.Error("failed to load data", "error", err)
		os.Exit(1)
	}

	svc := dashboard.NewService(p.Store(), dashboard.Options{
		CacheSize:   cfg.QueryCacheSize,
		MapboxToken: cfg.MapboxToken,
		Region:      cfg.MapRegion,
	}, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, svc, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Watch data sources for refresh.
	watchDone := make(chan struct{})
	if cfg.WatchData {
		w, err := pipeline.NewWatcher(sources.Paths(), cfg.WatchDebounce, p, logger)
		if err != nil {
			logger.Error("failed to start data watcher", "error", err)
			os.Exit(1)
		}
		go func() {
			defer close(watchDone)
			if err := w.Run(ctx); err != nil {
				logger.Error("data watcher error", "error", err)
			}
		}()
	} else {
		close(watchDone)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-watchDone:
	case <-shutdownCtx.Done():
		logger.Warn("data watcher did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
}
