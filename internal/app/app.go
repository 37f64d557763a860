/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package app assembles the card service: it owns the process-wide singletons
// (cache tiers, browser manager, limiters, token store), wires them into the
// HTTP layer and the background sweeps, and tears everything down on stop.
// Request handlers borrow these through the HTTP layer and never own them.
package app

import (
	"context"
	"fmt"

	"github.com/acronis/go-appkit/httpserver"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardkit/cardkit/internal/browser"
	"github.com/cardkit/cardkit/internal/cache"
	"github.com/cardkit/cardkit/internal/csrftoken"
	"github.com/cardkit/cardkit/internal/httpapi"
	"github.com/cardkit/cardkit/internal/janitor"
	"github.com/cardkit/cardkit/internal/lrumap"
	"github.com/cardkit/cardkit/internal/profile"
	"github.com/cardkit/cardkit/internal/ratelimit"
	"github.com/cardkit/cardkit/internal/render"
)

// App is the root service unit. Stopping it stops the HTTP servers and the
// sweeps first, then closes the browser process and the durable storage.
type App struct {
	logger  log.FieldLogger
	store   *cache.Store
	manager *browser.Manager
	unit    *service.CompositeUnit
}

var _ service.Unit = (*App)(nil)

// New constructs the whole service from its configuration.
func New(cfg *Config, logger log.FieldLogger) (*App, error) {
	if cfg.Profile.ProviderURL == "" {
		return nil, fmt.Errorf("profileProvider.url must be configured")
	}

	store, err := cache.OpenStore(cfg.Cache.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	disk, err := cache.NewDiskStore(cfg.Cache.AssetsDir, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open disk store: %w", err)
	}

	broadLimiter, err := ratelimit.NewSlidingWindow(
		cfg.RateLimitBroad.Rate(), cfg.RateLimitBroad.MaxKeys, newStoreMetrics("rate_limit_broad"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("new broad rate limiter: %w", err)
	}
	narrowLimiter, err := ratelimit.NewSlidingWindow(
		cfg.RateLimitNarrow.Rate(), cfg.RateLimitNarrow.MaxKeys, newStoreMetrics("rate_limit_narrow"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("new narrow rate limiter: %w", err)
	}
	tokens, err := csrftoken.NewStore(cfg.CSRF.TokenTTL, cfg.CSRF.MaxSessions, newStoreMetrics("csrf_tokens"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("new token store: %w", err)
	}

	manager := browser.NewManager(cfg.Browser, logger)
	pipeline := render.NewPipeline(cfg.Render, logger, manager, store)
	fetcher := profile.NewFetcher(cfg.Profile, logger, store, disk)

	handler := httpapi.NewHandler(httpapi.Opts{
		Logger:        logger,
		Pipeline:      pipeline,
		Fetcher:       fetcher,
		Store:         store,
		Disk:          disk,
		BroadLimiter:  broadLimiter,
		NarrowLimiter: narrowLimiter,
		Tokens:        tokens,
		ProfileTTL:    cfg.Cache.ProfileTTL,
		ScreenshotTTL: cfg.Cache.ScreenshotTTL,
		AssetTTL:      cfg.Cache.AssetTTL,
	})

	units := []service.Unit{
		httpserver.NewWithHandler(cfg.Server, logger, handler),
		httpserver.NewWithHandler(cfg.MetricsServer, logger, promhttp.Handler()),

		// In-memory stores are swept hourly, durable and disk tiers daily.
		janitor.NewUnit("rate-limit-broad", cfg.RateLimitBroad.SweepInterval, logger,
			func(context.Context) (int64, error) { return int64(broadLimiter.Sweep()), nil }),
		janitor.NewUnit("rate-limit-narrow", cfg.RateLimitNarrow.SweepInterval, logger,
			func(context.Context) (int64, error) { return int64(narrowLimiter.Sweep()), nil }),
		janitor.NewUnit("csrf-tokens", cfg.CSRF.SweepInterval, logger,
			func(context.Context) (int64, error) { return int64(tokens.Sweep()), nil }),
		janitor.NewUnit("profile-cache", cfg.Cache.SweepInterval, logger,
			func(ctx context.Context) (int64, error) {
				return store.PruneProfilesOlderThan(ctx, cfg.Cache.ProfileTTL)
			}),
		janitor.NewUnit("screenshot-cache", cfg.Cache.SweepInterval, logger,
			func(ctx context.Context) (int64, error) {
				return store.PruneScreenshotsOlderThan(ctx, cfg.Cache.ScreenshotTTL)
			}),
		janitor.NewUnit("disk-assets", cfg.Cache.SweepInterval, logger,
			func(context.Context) (int64, error) {
				removed, pruneErr := disk.PruneOlderThan(cfg.Cache.AssetTTL)
				return int64(removed), pruneErr
			}),
	}

	return &App{
		logger:  logger,
		store:   store,
		manager: manager,
		unit:    service.NewCompositeUnit(units...),
	}, nil
}

// Start is a part of service.Unit interface.
func (a *App) Start(fatalErr chan<- error) {
	a.unit.Start(fatalErr)
}

// Stop is a part of service.Unit interface.
// The browser close error is intentionally swallowed: it occurs after every
// response has already been determined.
func (a *App) Stop(gracefully bool) error {
	stopErr := a.unit.Stop(gracefully)

	a.manager.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("closing cache store", log.Error(err))
	}
	return stopErr
}

func newStoreMetrics(name string) *lrumap.PrometheusMetrics {
	m := lrumap.NewPrometheusMetricsWithOpts(lrumap.PrometheusMetricsOpts{
		Namespace:   "cardkit",
		ConstLabels: prometheus.Labels{"store": name},
	})
	m.MustRegister(prometheus.DefaultRegisterer)
	return m
}
