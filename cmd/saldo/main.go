package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/cache"
	"saldo/internal/cli"
	"saldo/internal/currency"
	apphttp "saldo/internal/http"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/services"
)

const (
	shutdownTimeout   = 30 * time.Second
	cacheCleanupEvery = time.Minute
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	logger.Info("Starting saldo", "port", cfg.Port, "reference_currency", cfg.ReferenceCurrency)

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath, cfg.SnapshotRetention)
	defer repo.Close()

	var publisher services.EventPublisher
	if client := cli.ConnectAMQP(logger, cfg); client != nil {
		defer client.Close()
		publisher = client
	} else {
		logger.Info("Ledger events will not be published")
	}

	rates := currency.NewCache(cfg.ReferenceCurrency)
	var refresher *currency.Refresher
	if cfg.RatesURL != "" {
		refresher = currency.NewRefresher(currency.NewHTTPFetcher(cfg.RatesURL, nil), rates, repo, cfg.RatesRefreshInterval, cfg.RatesTimeout)
		if err := refresher.Warm(ctx); err != nil {
			logger.Warn("Failed to warm rate cache", "error", err)
		}
	} else {
		logger.Warn("RATES_URL not set, conversions use identity rates", "reference_currency", cfg.ReferenceCurrency)
	}

	ledgerService := services.NewLedgerService(ledger.New(), repo, publisher, rates)
	if err := ledgerService.Load(ctx); err != nil {
		logger.Error("Failed to load ledger", "error", err)
		os.Exit(1)
	}

	deps := apphttp.Deps{
		Ledger:    ledgerService,
		Logger:    logger,
		RateLimit: ratelimit.DefaultConfig(),
		Checks: []apphttp.ReadinessCheck{
			{Name: "sqlite", Check: repo.Ping},
		},
	}
	if refresher != nil {
		deps.Rates = refresher
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps)

	cacheManager := cache.NewManager(ledgerService.ProjectionCache())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		return cli.ShutdownWithin(shutdownTimeout, srv.Shutdown)
	})
	if refresher != nil {
		g.Go(func() error { return refresher.Run(gctx) })
	}
	g.Go(func() error { return cacheManager.Run(gctx, cacheCleanupEvery) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully", "ledger_version", ledgerService.Ledger().Version())
}
