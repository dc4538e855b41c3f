package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/app"
	"github.com/kailas-cloud/llmrank/internal/config"
	chiTransport "github.com/kailas-cloud/llmrank/internal/transport/chi"
	"github.com/kailas-cloud/llmrank/internal/version"
)

// servePort overrides http.port from the config
var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (default http.port, 8080)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve POST /v1/rerank (NDJSON stream), GET /health, GET /usage and GET /metrics.

Examples:
  ENV=prod llmrank serve
  llmrank serve --config ./llmrank.yaml --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, env, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.HTTP.Port = servePort
	}

	a, logger, err := bootstrap(cmd.Context(), cfg, env)
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting llmrank API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("provider", a.Backend.Provider),
		zap.String("model", a.Backend.Model),
		zap.String("backend_source", a.Backend.Source),
		zap.Bool("skip_if_unavailable", cfg.SkipIfUnavailable),
	)

	srv := newHTTPServer(a, cfg, logger)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// newHTTPServer wires the API handler onto an http.Server configured from cfg.HTTP.
func newHTTPServer(a *app.App, cfg config.Config, logger *zap.Logger) *http.Server {
	server := chiTransport.NewServer(a.Scoring, a.Ready, a.Usage, a.Health, logger).
		WithMaxDocuments(cfg.Scoring.MaxDocuments)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
}
