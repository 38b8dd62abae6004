package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"firmpulse/internal/aggregate"
	"firmpulse/internal/config"
	"firmpulse/internal/decompose"
	"firmpulse/internal/exporter"
	"firmpulse/internal/infrastructure"
	"firmpulse/internal/operations"
)

func main() {
	configFile := flag.String("config", "", "path to config file (defaults to firmpulse.yaml or FIRMPULSE_CONFIG)")
	metric := flag.String("metric", "", "override the metric to decompose (defaults to the configured model metric)")
	degree := flag.Int("degree", -1, "override the polynomial trend degree")
	period := flag.Int("period", 0, "override the seasonal period (1 disables the seasonal component)")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *metric != "" {
		cfg.Analysis.ModelMetric = *metric
	}
	if *degree >= 0 {
		cfg.Analysis.TrendDegree = *degree
	}
	if *period >= 1 {
		cfg.Analysis.SeasonalPeriod = *period
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
		logger.Error("Data preparation failed", "error", err)
		os.Exit(1)
	}

	csvWriter := exporter.NewCSVWriter(cfg.Paths)
	chartWriter := exporter.NewChartWriter(cfg.Paths)
	opts := decompose.Options{
		TrendDegree: cfg.Analysis.TrendDegree,
		Period:      cfg.Analysis.SeasonalPeriod,
	}

	written := 0
	for _, country := range countries(state.Artifacts.AnalysisRows) {
		years, values := aggregate.Series(state.Artifacts.AnalysisRows, country, cfg.Analysis.ModelMetric)

		result, err := decompose.Decompose(ctx, logger, values, opts)
		if err != nil {
			logger.Warn("decomposition skipped",
				slog.String("country", country),
				slog.String("reason", err.Error()))
			continue
		}

		path, err := csvWriter.WriteDecomposition(country, years, values, result)
		if err != nil {
			logger.Error("Failed to write decomposition", "country", country, "error", err)
			os.Exit(1)
		}
		chart, err := chartWriter.WriteDecompositionChart(country, cfg.Analysis.ModelMetric, years, values, result)
		if err != nil {
			logger.Error("Failed to write decomposition chart", "country", country, "error", err)
			os.Exit(1)
		}

		logger.Info("decomposition written",
			slog.String("country", country),
			slog.Float64("trend_r2", result.RSquared),
			slog.String("csv", path),
			slog.String("chart", chart))
		written++
	}

	if written == 0 {
		logger.Error("No country series could be decomposed")
		os.Exit(1)
	}
}

func countries(rows []aggregate.AnalysisRow) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if !seen[r.Country] {
			seen[r.Country] = true
			out = append(out, r.Country)
		}
	}
	return out
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	return config.Load()
}
