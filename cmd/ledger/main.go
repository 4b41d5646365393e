package main

import (
	"context"
	"os"
	"time"

	"budgetbook/internal/backend"
	"budgetbook/internal/cli"
	"budgetbook/internal/core"
	applog "budgetbook/internal/log"
	"budgetbook/internal/services"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.LogLevel != "" {
		logger = cli.SetupLogger(cfg.LogLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		return 1
	}
	res, err := cli.OpenBackend(ctx, logger, bcfg)
	if err != nil {
		logger.Error("Failed to open data backend", "error", err, "backend", bcfg.Type)
		return 1
	}
	defer res.Close()

	opts := []services.Option{services.WithLogger(logger.WithComponent(applog.ComponentStore))}
	if notifier := cli.OpenNotifier(logger, cfg); notifier != nil {
		defer notifier.Close()
		opts = append(opts, services.WithNotifier(notifier))
	}

	store := services.NewRecordStore(res.Store, core.DefaultConverter(), opts...)
	if err := store.Load(ctx); err != nil {
		logger.Error("Failed to load ledger", "error", err)
		return 1
	}

	a := &app{
		store:  store,
		agg:    core.NewAggregator(store.Converter()),
		now:    time.Now,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	return a.run(ctx, os.Args[1:])
}
