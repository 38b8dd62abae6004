package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"firmpulse/internal/config"
	"firmpulse/internal/exporter"
	"firmpulse/internal/infrastructure"
	"firmpulse/internal/operations"
)

func main() {
	configFile := flag.String("config", "", "path to config file (defaults to firmpulse.yaml or FIRMPULSE_CONFIG)")
	minFirms := flag.Int("min-firms", 0, "override the minimum firm count per country-year cell")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *minFirms > 0 {
		cfg.Analysis.MinFirmsPerCell = *minFirms
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
		operations.NewLoadStep(cfg, logger),
		operations.NewMetricsStep(cfg, logger),
		operations.NewAggregateStep(cfg, logger),
	}, nil, logger)

	state, err := manager.Run(ctx)
	if err != nil {
		logger.Error("Aggregation failed", "error", err)
		os.Exit(1)
	}

	path, err := exporter.NewCSVWriter(cfg.Paths).WriteAnalysisRows(state.Artifacts.AnalysisRows)
	if err != nil {
		logger.Error("Failed to write analysis dataset", "error", err)
		os.Exit(1)
	}

	logger.Info("analysis dataset written",
		slog.String("path", path),
		slog.Int("rows", len(state.Artifacts.AnalysisRows)))
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	return config.Load()
}
