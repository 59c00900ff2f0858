package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/log"
	"saldo/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting saldo-worker", "backend", cfg.ExportBackend, "batch_size", cfg.SyncBatchSize)

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath, cfg.SnapshotRetention)
	defer repo.Close()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to create export backend", "error", err, "backend", backendConfig.Type)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", "error", err)
			}
		}()
	}

	exportWorker := worker.NewExportWorker(repo, repo, result.Backend, cfg.SyncBatchSize)

	g, gctx := errgroup.WithContext(ctx)
	if client := cli.ConnectAMQP(logger, cfg); client != nil {
		defer client.Close()
		g.Go(func() error {
			logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
			return client.ConsumeLedgerEvents(gctx, exportWorker.HandleLedgerEvent)
		})
	} else {
		logger.Warn("Running without AMQP, exports rely on periodic polling", "interval", cfg.SyncInterval)
	}
	g.Go(func() error { return exportWorker.Run(gctx, cfg.SyncInterval) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("saldo-worker stopped")
}
