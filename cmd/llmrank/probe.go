package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/llmrank/internal/app"
	"github.com/kailas-cloud/llmrank/internal/domain"
)

// probeTimeout overrides probe.timeout from the config
var probeTimeout time.Duration

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 0, "Probe timeout (default probe.timeout, 5s)")
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the backend returns a usable score",
	Long: `Score a canned query/document pair through the full pipeline.

Exits 0 when a real score came back within the timeout, 1 otherwise.
Useful as a container health check or before a batch job.

Examples:
  llmrank probe
  OLLAMA_HOST=gpu-box llmrank probe --timeout 10s`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfg, env, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Probe.Timeout = probeTimeout
	}

	a, logger, err := bootstrap(cmd.Context(), cfg, env)
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = logger.Sync() }()

	return probe(cmd.Context(), a, cmd.OutOrStdout())
}

// probe reports the backend status on out and returns
// domain.ErrBackendUnavailable when it is unusable.
func probe(ctx context.Context, a *app.App, out io.Writer) error {
	start := time.Now()
	ok := a.Health.IsAvailable(ctx)
	status := "available"
	if !ok {
		status = "unavailable"
	}
	_, _ = fmt.Fprintf(out, "%s: %s model=%s source=%s took=%s\n",
		status, a.Backend.Provider, a.Backend.Model, a.Backend.Source,
		time.Since(start).Round(time.Millisecond))
	if !ok {
		return domain.ErrBackendUnavailable
	}
	return nil
}
