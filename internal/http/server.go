// Package http provides the HTTP server and API for memmux.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/memmux/internal/config"
	"github.com/jmylchreest/memmux/internal/http/handlers"
	"github.com/jmylchreest/memmux/internal/http/middleware"
	"github.com/jmylchreest/memmux/internal/remux"
)

// Server represents the HTTP server.
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers every route.
// The version parameter is used in the OpenAPI document and health report.
func NewServer(cfg *config.Config, converter *remux.Converter, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.NewLoggingMiddleware(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)))
	router.Use(middleware.Decompress(cfg.Server.MaxBodySize.Bytes()))
	router.Use(chimiddleware.Compress(5, "application/json", "application/problem+json", "text/plain"))

	humaConfig := huma.DefaultConfig("memmux API", version)
	humaConfig.Info.Description = "In-memory audio remuxing and transcoding API"
	api := humachi.New(router, humaConfig)

	router.Handle("/metrics", promhttp.Handler())

	handlers.NewHealthHandler(version, converter).Register(api)
	handlers.NewConvertHandler(converter, cfg).Register(api)
	handlers.NewProbeHandler(converter, cfg).Register(api)
	handlers.NewFormatsHandler(converter).Register(api)

	return &Server{
		config: cfg.Server,
		router: router,
		api:    api,
		logger: logger,
	}
}

// API returns the Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout.Duration(),
		WriteTimeout: s.config.WriteTimeout.Duration(),
	}

	s.logger.Info("starting HTTP server", slog.String("address", addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout.Duration()
	s.logger.Info("shutting down HTTP server", slog.Duration("timeout", timeout))

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// ListenAndServe starts the server and shuts it down when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}
