package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	internalhttp "github.com/jmylchreest/memmux/internal/http"
	"github.com/jmylchreest/memmux/internal/remux"
	"github.com/jmylchreest/memmux/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the memmux server",
	Long: `Start the memmux HTTP server.

The server provides:
- POST /api/v1/convert  multipart upload, returns the converted container
- POST /api/v1/probe    raw body, returns the probe result
- GET  /api/v1/formats  supported containers and codecs
- GET  /health, /livez  health checks
- GET  /metrics         Prometheus metrics
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("max-body-size", "256MB", "Largest accepted request body after decompression")
	bindConfigFlag(serveCmd.Flags(), "host", "server.host")
	bindConfigFlag(serveCmd.Flags(), "port", "server.port")
	bindConfigFlag(serveCmd.Flags(), "max-body-size", "server.max_body_size")
}

func runServe(cmd *cobra.Command, _ []string) error {
	converter := remux.New(remux.Config{Logger: logger})
	server := internalhttp.NewServer(cfg, converter, logger, version.Version)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting memmux",
		slog.String("version", version.Short()),
		slog.String("address", cfg.Server.Address()),
		slog.String("max_body_size", cfg.Server.MaxBodySize.String()),
		slog.String("default_format", cfg.Convert.DefaultFormat),
	)

	return server.ListenAndServe(ctx)
}
