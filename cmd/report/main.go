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
	reportsDir := flag.String("out", "", "override the reports output directory")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *reportsDir != "" {
		cfg.Paths.ReportsDir = *reportsDir
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
	if err != nil {
		logger.Error("Report generation failed", "error", err)
		os.Exit(1)
	}

	for _, file := range state.Artifacts.ReportFiles {
		logger.Info("report written", slog.String("path", file))
	}
	logger.Info("reports completed", slog.Int("files", len(state.Artifacts.ReportFiles)))
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	return config.Load()
}
