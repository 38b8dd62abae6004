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
	metric := flag.String("metric", "", "override the metric to model (defaults to the configured model metric)")
	maxAR := flag.Int("max-ar", -1, "override the maximum AR order in the selection grid")
	maxMA := flag.Int("max-ma", -1, "override the maximum MA order in the selection grid")
	criterion := flag.String("criterion", "", "override the selection criterion (aic or bic)")
	horizon := flag.Int("horizon", 0, "override the forecast horizon in years")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *metric != "" {
		cfg.Analysis.ModelMetric = *metric
	}
	if *maxAR >= 0 {
		cfg.Analysis.MaxAR = *maxAR
	}
	if *maxMA >= 0 {
		cfg.Analysis.MaxMA = *maxMA
	}
	if *criterion != "" {
		cfg.Analysis.Criterion = *criterion
	}
	if *horizon > 0 {
		cfg.Analysis.Horizon = *horizon
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
		operations.NewModelStep(cfg, logger),
	}, nil, logger)

	state, err := manager.Run(ctx)
	if err != nil {
		logger.Error("Modeling failed", "error", err)
		os.Exit(1)
	}

	csvWriter := exporter.NewCSVWriter(cfg.Paths)
	for _, result := range state.Artifacts.CountryResults {
		if result.Selection == nil {
			logger.Warn("country skipped",
				slog.String("country", result.Country),
				slog.String("reason", result.SkipReason))
			continue
		}

		best := result.Selection.Best
		logger.Info("model selected",
			slog.String("country", result.Country),
			slog.String("order", best.Order.String()),
			slog.Float64("aic", best.AIC),
			slog.Float64("bic", best.BIC),
			slog.Float64("sigma2", best.Sigma2))

		if len(result.Forecast) == 0 {
			continue
		}
		path, err := csvWriter.WriteForecast(result.Country, result.LastYear, result.Forecast)
		if err != nil {
			logger.Error("Failed to write forecast", "country", result.Country, "error", err)
			os.Exit(1)
		}
		logger.Info("forecast written", slog.String("country", result.Country), slog.String("path", path))
	}
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	return config.Load()
}
