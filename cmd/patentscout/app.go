package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/patentscout/internal/config"
	"github.com/FranksOps/patentscout/internal/fingerprint"
	"github.com/FranksOps/patentscout/internal/pipeline"
	"github.com/FranksOps/patentscout/internal/scraper"
	"github.com/FranksOps/patentscout/internal/serp"
	"github.com/FranksOps/patentscout/internal/storage"
	"github.com/FranksOps/patentscout/internal/storage/csvbackend"
	"github.com/FranksOps/patentscout/internal/storage/jsonbackend"
	"github.com/FranksOps/patentscout/internal/storage/postgres"
	"github.com/FranksOps/patentscout/internal/storage/sqlite"
	"github.com/FranksOps/patentscout/pkg/proxy"
	"github.com/FranksOps/patentscout/pkg/ratelimit"
	"github.com/FranksOps/patentscout/pkg/useragent"
)

// openBackend returns the configured history backend, or nil for "none".
func openBackend(ctx context.Context, sc config.StorageConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch sc.Type {
	case "none", "":
		return nil, nil
	case "sqlite":
		b, err = sqlite.New(sc.DSN)
	case "postgres":
		b, err = postgres.New(ctx, sc.DSN)
	case "json":
		b, err = jsonbackend.New(sc.DSN)
	case "csv":
		b, err = csvbackend.New(sc.DSN)
	default:
		return nil, fmt.Errorf("unknown storage type %q", sc.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", sc.Type, err)
	}
	return b, nil
}

// newEnricher builds the page fetcher and enricher from the enrich settings.
func newEnricher(ec config.EnrichConfig, logger *slog.Logger) (*scraper.Enricher, error) {
	profile, err := fingerprint.Parse(ec.Fingerprint)
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if ec.ProxiesFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.LoadFile(ec.ProxiesFile); err != nil {
			return nil, fmt.Errorf("loading proxies: %w", err)
		}
		logger.Info("proxy rotation enabled", "proxies", proxies.Len())
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:       ec.Timeout,
		UseCookieJar:  ec.CookieJar,
		ProxyPool:     proxies,
		UAPool:        useragent.NewPool(ec.UserAgents),
		RandomUA:      ec.RandomUserAgent,
		Fingerprint:   profile,
		Limiter:       ratelimit.NewLimiter(ec.RequestsPerSecond, ec.Jitter),
		RespectRobots: ec.RespectRobots,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}

	return scraper.NewEnricher(fetcher, scraper.EnricherConfig{
		Timeout:     ec.Timeout,
		Concurrency: ec.Concurrency,
		Logger:      logger,
	}), nil
}

// newPipeline wires provider, enricher and backend. The returned close
// function releases the backend.
func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, save bool) (*pipeline.Pipeline, func() error, error) {
	provider, err := serp.NewGooglePatents(serp.GooglePatentsConfig{
		APIKey:   cfg.APIKey,
		Endpoint: cfg.Search.Endpoint,
		Timeout:  cfg.Search.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	p := &pipeline.Pipeline{Provider: provider, Logger: logger}

	if cfg.Enrich.Enabled {
		enricher, err := newEnricher(cfg.Enrich, logger)
		if err != nil {
			return nil, nil, err
		}
		p.Enricher = enricher
	}

	closeFn := func() error { return nil }
	if save {
		backend, err := openBackend(ctx, cfg.Storage)
		if err != nil {
			return nil, nil, err
		}
		if backend != nil {
			p.Backend = backend
			closeFn = backend.Close
		}
	}

	return p, closeFn, nil
}
