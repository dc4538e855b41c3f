package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/llmrank/internal/app"
	"github.com/kailas-cloud/llmrank/internal/config"
	chiTransport "github.com/kailas-cloud/llmrank/internal/transport/chi"
)

// maxLineBytes bounds a single input document.
const maxLineBytes = 1 << 20

var (
	// score command flags
	scQuery           string
	scFile            string
	scConcurrency     int
	scPreserveOrder   bool
	scRunTimeout      time.Duration
	scDeadlinePolicy  string
	scSkipUnavailable bool
	scReturnDocuments bool
)

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVarP(&scQuery, "query", "q", "", "Query to score documents against (required)")
	scoreCmd.Flags().StringVarP(&scFile, "file", "f", "", "Read documents from file, one per line (default stdin)")
	scoreCmd.Flags().IntVar(&scConcurrency, "concurrency", 0, "Backend calls in flight (overrides scoring.max_in_flight)")
	scoreCmd.Flags().BoolVar(&scPreserveOrder, "preserve-order", false, "Emit results in input order when concurrent")
	scoreCmd.Flags().DurationVar(&scRunTimeout, "run-timeout", 0, "Bound the whole run, e.g. 30s")
	scoreCmd.Flags().StringVar(&scDeadlinePolicy, "deadline-policy", "", "On run timeout: fallback or drop")
	scoreCmd.Flags().BoolVar(&scSkipUnavailable, "skip-if-unavailable", false, "Probe the backend first and skip scoring if it fails")
	scoreCmd.Flags().BoolVar(&scReturnDocuments, "return-documents", false, "Echo each document in its result line")
	_ = scoreCmd.MarkFlagRequired("query")
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score documents read line by line",
	Long: `Score every non-blank input line as a document against the query.

One JSON result per document is written to stdout as soon as it is ready,
followed by a summary line. The exit status is non-zero when the run was
cut short (run timeout, backend unavailable, interrupted); per-document
failures only show up as score 0 with a failure outcome.

Examples:
  # Score a file of documents
  llmrank score -q "reset password" -f docs.txt

  # Four calls in flight, results in input order
  cat docs.txt | llmrank score -q "reset password" --concurrency 4 --preserve-order

  # Give up after 20s, dropping whatever is not scored yet
  llmrank score -q "reset password" -f docs.txt --run-timeout 20s --deadline-policy drop`,
	Args: cobra.NoArgs,
	RunE: runScore,
}

func runScore(cmd *cobra.Command, _ []string) error {
	cfg, env, err := loadConfig()
	if err != nil {
		return err
	}
	applyScoreFlags(cmd, &cfg)

	in := io.Reader(os.Stdin)
	if scFile != "" {
		f, err := os.Open(filepath.Clean(scFile))
		if err != nil {
			return fmt.Errorf("open documents: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, logger, err := bootstrap(ctx, cfg, env)
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = logger.Sync() }()

	return scoreStream(ctx, a, scQuery, in, cmd.OutOrStdout(), scReturnDocuments)
}

// applyScoreFlags overrides config with the flags the user actually set.
func applyScoreFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.Scoring.MaxInFlight = scConcurrency
	}
	if flags.Changed("preserve-order") {
		cfg.Scoring.PreserveOrder = scPreserveOrder
	}
	if flags.Changed("run-timeout") {
		cfg.Scoring.RunTimeout = scRunTimeout
	}
	if flags.Changed("deadline-policy") {
		cfg.Scoring.DeadlinePolicy = scDeadlinePolicy
	}
	if flags.Changed("skip-if-unavailable") {
		cfg.SkipIfUnavailable = scSkipUnavailable
	}
}

// scoreStream scores the lines of in and writes NDJSON to out: one result
// line per document, then a summary line. It returns the run error, if any.
func scoreStream(ctx context.Context, a *app.App, query string, in io.Reader, out io.Writer, returnDocs bool) error {
	w := bufio.NewWriter(out)
	defer func() { _ = w.Flush() }()
	enc := json.NewEncoder(w)

	n := 0
	runErr := a.Ready(ctx)

	lines := &lineReader{r: in}
	if runErr == nil {
		st := a.Scoring.Score(ctx, query, lines.All())
		for r := range st.All() {
			line := chiTransport.ResultLine{
				Position: r.Position,
				Score:    r.Score.Float64(),
				Outcome:  string(r.Outcome),
			}
			if returnDocs {
				doc := r.Document
				line.Document = &doc
			}
			if err := enc.Encode(line); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			n++
			// Flush per line so a downstream consumer sees results as they arrive.
			if err := w.Flush(); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
		}
		runErr = errors.Join(st.Err(), lines.Err())
	}

	if err := enc.Encode(chiTransport.NewSummary(n, runErr)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return runErr
}

// lineReader yields non-blank lines lazily and remembers the read error.
type lineReader struct {
	r   io.Reader
	err error
}

func (l *lineReader) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		sc := bufio.NewScanner(l.r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			line := sc.Text()
			if isBlank(line) {
				continue
			}
			if !yield(line) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			l.err = fmt.Errorf("read documents: %w", err)
		}
	}
}

func (l *lineReader) Err() error { return l.err }

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\r' {
			return false
		}
	}
	return true
}
