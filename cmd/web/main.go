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
	"firmpulse/internal/services"
	transporthttp "firmpulse/internal/transport/http"
	"firmpulse/internal/websocket"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	configFile := flag.String("config", "", "path to config file (defaults to firmpulse.yaml or FIRMPULSE_CONFIG)")
	port := flag.Int("port", 0, "override the HTTP listen port")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.EnableTracing {
		providers, err := infrastructure.InitializeTracing(ctx, logger)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := providers.Shutdown(context.Background()); err != nil {
				logger.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	hub := websocket.NewHub(logger)
	hub.Start()
	defer hub.Shutdown()

	manager := operations.NewManager(operations.DefaultSteps(cfg, logger), hub, logger)
	service := services.NewAnalysisService(manager, logger)

	server := transporthttp.NewServer(cfg.Server, service, hub, Version, logger)

	logger.Info("starting web server",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))
	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	return config.Load()
}
