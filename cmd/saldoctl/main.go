package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"saldo/internal/cli"
	"saldo/internal/config"
	"saldo/internal/log"
	"saldo/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	// stdout carries command output, logs go to stderr
	logCfg := log.DefaultConfig()
	logCfg.Component = log.ComponentCLI
	logCfg.Output = os.Stderr
	logCfg.Level = slog.LevelWarn
	if v := os.Getenv("SALDOCTL_LOG_LEVEL"); v != "" {
		if level, err := log.ParseLevel(v); err == nil {
			logCfg.Level = level
		}
	}
	log.SetDefault(log.New(logCfg))

	a := &app{
		dbPath:    cfg.SQLiteDBPath,
		reference: cfg.ReferenceCurrency,
		now:       time.Now,
		open: func(path string) (store, func() error, error) {
			repo, err := storage.NewSQLiteRepository(path, cfg.SnapshotRetention)
			if err != nil {
				return nil, nil, err
			}
			return repo, repo.Close, nil
		},
	}

	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
