package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"firmpulse/internal/config"
	"firmpulse/internal/infrastructure"
	"firmpulse/internal/operations"
)

func main() {
	configFile := flag.String("config", "", "path to config file (defaults to firmpulse.yaml or FIRMPULSE_CONFIG)")
	refresh := flag.Bool("refresh", false, "ignore cached copies and download all sources again")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *refresh {
		cfg.Sources.CacheMaxAge = 0
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := operations.NewManager([]operations.Step{
		operations.NewFetchStep(cfg, logger),
	}, nil, logger)

	state, err := manager.Run(ctx)
	if err != nil {
		logger.Error("Fetch failed", "error", err)
		os.Exit(1)
	}

	for name, path := range state.Artifacts.InputFiles {
		logger.Info("source cached", slog.String("source", name), slog.String("path", path))
	}
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	return config.Load()
}
