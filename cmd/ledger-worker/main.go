package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetbook/internal/amqp"
	"budgetbook/internal/backend"
	"budgetbook/internal/cache"
	"budgetbook/internal/cli"
	applog "budgetbook/internal/log"
	"budgetbook/internal/worker"
)

const (
	dialAttempts    = 5
	shutdownTimeout = 10 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.LogLevel != "" {
		logger = cli.SetupLogger(cfg.LogLevel)
	}
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", "error", err)
		os.Exit(1)
	}

	primaryCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid primary backend configuration", "error", err)
		os.Exit(1)
	}
	mirrorCfg, err := backend.MirrorFromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror backend configuration", "error", err)
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	defer startCancel()

	primary, err := cli.OpenBackend(startCtx, logger, primaryCfg)
	if err != nil {
		logger.Error("Failed to open primary backend", "error", err, "backend", primaryCfg.Type)
		os.Exit(1)
	}
	defer primary.Close()

	mirror, err := cli.OpenBackend(startCtx, logger, mirrorCfg)
	if err != nil {
		logger.Error("Failed to open mirror backend", "error", err, "backend", mirrorCfg.Type)
		os.Exit(1)
	}
	defer mirror.Close()

	client, err := amqp.Dial(startCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, dialAttempts)
	if err != nil {
		logger.Error("Failed to connect to AMQP broker", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	var cacheManager *cache.Manager
	if c, ok := primary.Store.(cache.Cleaner); ok {
		cacheManager = cache.NewManager()
		cacheManager.Register(c)
		cacheManager.StartCleanup(cfg.CacheTTL)
	}

	syncWorker := worker.NewSyncWorker(primary.Store, mirror.Store, logger.WithComponent(applog.ComponentWorker))
	periodic := worker.NewPeriodic(syncWorker, cfg.SyncInterval)

	ctx, stop, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := periodic.Stop(ctx); err != nil {
			logger.Warn("Periodic sync did not stop cleanly", "error", err)
		}
		if cacheManager != nil {
			cacheManager.Stop()
		}
	})

	// Catch up on anything written while the worker was down.
	if err := syncWorker.SyncAll(ctx); err != nil {
		logger.Error("Startup sync failed", "error", err)
	}

	if err := periodic.Start(ctx); err != nil {
		logger.Error("Failed to start periodic sync", "error", err)
		stop()
	}

	go func() {
		if err := client.ConsumeSnapshotSaved(ctx, syncWorker.HandleSyncMessage); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		stop()
	}()

	logger.Info("Worker running",
		applog.FieldBackend, primaryCfg.Type,
		"mirror", mirrorCfg.Type,
		"interval", cfg.SyncInterval)
	cli.WaitForShutdown(ctx, done)
}
