package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"firmpulse/internal/config"
	"firmpulse/internal/middleware"
	"firmpulse/internal/services"
	"firmpulse/internal/websocket"
)

// Server assembles the router and runs the HTTP server with graceful
// shutdown.
type Server struct {
	httpServer *http.Server
	cfg        config.ServerConfig
	logger     *slog.Logger
}

// NewServer builds the full middleware chain and route tree.
func NewServer(cfg config.ServerConfig, service *services.AnalysisService, hub *websocket.Hub, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	metrics := middleware.NewMetrics()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.EnableTracing {
		r.Use(middleware.Tracing)
	}
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger).Handler)
	}
	r.Use(metrics.Handler)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(cfg.WriteTimeout))

	health := NewHealthHandler(version)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.GetHealth)
		r.Mount("/analysis", NewAnalysisHandler(service, logger).Routes())
		r.Mount("/runs", NewRunsHandler(service, logger).Routes())
	})
	r.Handle("/metrics", metrics.Endpoint())
	r.Get("/ws", websocket.ServeWS(hub, logger))

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts down gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
