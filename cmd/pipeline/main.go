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
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := operations.NewManager(operations.DefaultSteps(cfg, logger), nil, logger)

	state, err := manager.Run(ctx)
	if state != nil {
		for _, snap := range state.StepSnapshots() {
			logger.Info("step finished",
				slog.String("step", snap.ID),
				slog.String("status", string(snap.Status)),
				slog.String("message", snap.Message))
		}
	}
	if err != nil {
		logger.Error("Pipeline run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("pipeline completed",
		slog.Int("countries", len(state.Artifacts.CountryResults)),
		slog.Int("report_files", len(state.Artifacts.ReportFiles)))
	for _, file := range state.Artifacts.ReportFiles {
		logger.Info("report written", slog.String("path", file))
	}
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	return config.Load()
}
