// Package main implements the llmrank CLI: score documents from a file or
// stdin, probe the backend, or serve the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/app"
	"github.com/kailas-cloud/llmrank/internal/config"
	logpkg "github.com/kailas-cloud/llmrank/internal/logger"
	"github.com/kailas-cloud/llmrank/internal/version"
)

var (
	// configPath overrides the ENV-based config lookup
	configPath string
	// logLevel overrides logging.level from the config
	logLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "llmrank",
	Short: "Rerank documents by asking an LLM how relevant each one is",
	Long: `llmrank scores every document against a query with a text-generation
backend and streams one result per document.

The backend is resolved from the config file, then LLMRANK_BASE_URL /
LLMRANK_API_KEY, OPENAI_API_KEY, OLLAMA_HOST and finally a local Ollama.
The config file is config/$ENV.yaml (ENV defaults to "local"); without it
built-in defaults apply.`,
	Version:       version.Version,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default config/$ENV.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.SetVersionTemplate(fmt.Sprintf("llmrank %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.Date))
}

// loadConfig reads --config, or the ENV config file, or falls back to defaults.
func loadConfig() (config.Config, string, error) {
	env := config.GetEnv()
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		return cfg, env, err //nolint:wrapcheck // already carries the path
	}
	cfg, err := config.LoadOrDefault(env)
	return cfg, env, err //nolint:wrapcheck // already carries the path
}

// newLogger builds the process logger. Log lines go to stderr.
func newLogger(env string, cfg config.Config) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	l, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return l, nil
}

// bootstrap validates cfg after flag overrides and wires the application.
func bootstrap(ctx context.Context, cfg config.Config, env string) (*app.App, *zap.Logger, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := newLogger(env, cfg)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("init: %w", err)
	}
	return a, logger, nil
}
