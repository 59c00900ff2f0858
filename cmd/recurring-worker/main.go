package main

import (
	"os"

	"saldo/internal/cli"
	"saldo/internal/log"
	"saldo/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentRecurring)
	logger.Info("Starting recurring-worker", "interval", cfg.RecurringProcessorInterval)

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath, cfg.SnapshotRetention)
	defer repo.Close()

	// reminders have nowhere to go without a broker
	client := cli.ConnectAMQP(logger, cfg)
	if client == nil {
		logger.Error("recurring-worker requires AMQP")
		os.Exit(1)
	}
	defer client.Close()

	processor := services.NewRecurringProcessor(repo, repo, client)
	logger.Info("Publishing reminders", "queue", client.ReminderQueue())
	if err := processor.Run(ctx, cfg.RecurringProcessorInterval); err != nil {
		logger.Error("Reminder processor stopped with error", "error", err)
	}
	logger.Info("recurring-worker stopped")
}
