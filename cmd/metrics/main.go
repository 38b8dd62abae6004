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
	winsorLower := flag.Float64("winsor-lower", -1, "override lower winsorization percentile (0..1)")
	winsorUpper := flag.Float64("winsor-upper", -1, "override upper winsorization percentile (0..1)")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *winsorLower >= 0 {
		cfg.Analysis.WinsorLower = *winsorLower
	}
	if *winsorUpper >= 0 {
		cfg.Analysis.WinsorUpper = *winsorUpper
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
	}, nil, logger)

	state, err := manager.Run(ctx)
	if err != nil {
		logger.Error("Metric construction failed", "error", err)
		os.Exit(1)
	}

	path, err := exporter.NewCSVWriter(cfg.Paths).WriteFirmMetrics(state.Artifacts.Panel)
	if err != nil {
		logger.Error("Failed to write firm metrics", "error", err)
		os.Exit(1)
	}

	logger.Info("firm metrics written",
		slog.String("path", path),
		slog.Int("rows", len(state.Artifacts.Panel)))
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	return config.Load()
}
