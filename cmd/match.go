package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/ottermatch/config"
	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/ingest/events"
	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
	"github.com/otherjamesbrown/ottermatch/pkg/ingest/storage"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
	"github.com/otherjamesbrown/ottermatch/pkg/matching"
	"github.com/otherjamesbrown/ottermatch/pkg/observability"
)

// RunPublisher announces completed runs.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, run *matching.Run, records []matching.MatchedRecord) error
	Close() error
}

// MatchCommandDeps holds the dependencies for the match command.
type MatchCommandDeps struct {
	LoadConfig   ConfigLoader
	NewLogger    func(*config.CLIConfig) logging.Logger
	OpenStore    func(context.Context, *config.CLIConfig, logging.Logger) (storage.Store, error)
	NewPublisher func(context.Context, *config.CLIConfig, logging.Logger) (RunPublisher, error)
	Stdout       io.Writer
	Stderr       io.Writer
}

// DefaultMatchDeps returns the default dependencies for production use.
func DefaultMatchDeps(load ConfigLoader) *MatchCommandDeps {
	return &MatchCommandDeps{
		LoadConfig:   load,
		NewLogger:    NewLogger,
		OpenStore:    openRunStore,
		NewPublisher: newRedisPublisher,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}
}

func newRedisPublisher(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (RunPublisher, error) {
	pub, err := events.NewPublisherFromConfig(ctx, events.PublisherConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Channel:  cfg.Redis.Channel,
	}, logger)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// matchFlags are the per-invocation options of the match command.
type matchFlags struct {
	out         string
	save        bool
	noSave      bool
	noOverrides bool
	noPublish   bool
	metricsFile string
	metric      string
	fallback    string
}

// NewMatchCommand creates the match command.
func NewMatchCommand(deps *MatchCommandDeps) *cobra.Command {
	var flags matchFlags

	cmd := &cobra.Command{
		Use:   "match <listing.html> <recordings-dir>",
		Short: "Match listing events to recordings and transcripts",
		Long: `Match every event of a saved meeting listing to at most one recording
in a directory.

Events are grouped by normalized name and paired with the files of the
matching file group. Pairings are validated against transcript content where
a summary is available, then filled in by listing order. Unpaired events are
retried through name variations and a final fuzzy fallback.

One record is produced per event, in listing order. Records go to stdout as
JSON (YAML with --output yaml) unless --out names a file, in which case a
summary is printed instead. The output file is locked for the duration of
the run.

Examples:
  # Write results to a file
  ottermatch match listing.html ~/Recordings --out results.json

  # Store the run for later inspection
  ottermatch match listing.html ~/Recordings --out results.json --save

  # Pair every event without a summary while files remain
  ottermatch match listing.html ~/Recordings --no-summary-fallback drain`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runMatch(cmd.Context(), deps, args[0], args[1], flags)
			return err
		},
	}

	cmd.Flags().StringVar(&flags.out, "out", "", "Write records to this JSON file")
	cmd.Flags().BoolVar(&flags.save, "save", false, "Store the run in the run store")
	cmd.Flags().BoolVar(&flags.noSave, "no-save", false, "Do not store the run even when storage.auto_save is set")
	cmd.Flags().BoolVar(&flags.noOverrides, "no-overrides", false, "Ignore manual overrides")
	cmd.Flags().BoolVar(&flags.noPublish, "no-publish", false, "Do not publish the run-completed event")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	cmd.Flags().StringVar(&flags.metric, "similarity", "", "Name similarity metric: lcs, jaro_winkler")
	cmd.Flags().StringVar(&flags.fallback, "no-summary-fallback", "", "Events without a summary per group: one, drain")

	return cmd
}

func runMatch(ctx context.Context, deps *MatchCommandDeps, listingPath, dir string, flags matchFlags) (*matching.Result, error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, err
	}
	if flags.metric != "" {
		cfg.Matching.SimilarityMetric = flags.metric
	}
	if flags.fallback != "" {
		cfg.Matching.NoSummaryFallback = flags.fallback
	}
	if err := cfg.Matching.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pferrors.ErrValidation, err)
	}

	logger := deps.NewLogger(cfg)
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	evs, err := loadListing(listingPath, cfg.Listing.DefaultYear)
	if err != nil {
		return nil, pferrors.ClassifyError(err, "listing")
	}
	index, err := meeting.BuildFileIndex(dir)
	if err != nil {
		return nil, pferrors.ClassifyError(err, "index")
	}

	opts := matchingOptions(cfg.Matching)
	if flags.noOverrides {
		opts.Overrides = nil
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMatchMetrics(reg)
	texts := meeting.NewTranscriptReader(cfg.Matching.MaxTextBytes)

	run := matching.NewRun(absPath(listingPath), absPath(dir))
	result := matching.NewReconciler(index, texts, opts, logger).
		WithMetrics(metrics).
		Reconcile(ctx, run, evs)

	if flags.out != "" {
		if err := writeResultsFile(flags.out, result.Records); err != nil {
			return result, err
		}
		if err := WriteFormatted(deps.Stdout, cfg.OutputFormat, result.Run, func(w io.Writer) error {
			return printMatchSummary(w, result.Run, flags.out)
		}); err != nil {
			return result, err
		}
	} else {
		format := cfg.OutputFormat
		if format != config.OutputFormatYAML {
			format = config.OutputFormatJSON
		}
		if err := WriteFormatted(deps.Stdout, format, result.Records, nil); err != nil {
			return result, err
		}
		if cfg.OutputFormat == config.OutputFormatText {
			if err := printMatchSummary(deps.Stderr, result.Run, ""); err != nil {
				return result, err
			}
		}
	}

	metricsFile := valueOrDefault(flags.metricsFile, cfg.MetricsFile)
	if (flags.save || cfg.Storage.AutoSave) && !flags.noSave {
		if err := saveRun(ctx, deps, cfg, logger, result, reg); err != nil {
			return result, pferrors.ClassifyError(err, "store")
		}
	}

	if metricsFile != "" {
		if err := observability.WriteTextfile(metricsFile, reg); err != nil {
			logger.Warn("Failed to write metrics", logging.F("path", metricsFile), logging.Err(err))
		}
	}

	if cfg.Redis.Enabled() && !flags.noPublish {
		publishRun(ctx, deps, cfg, logger, result)
	}

	return result, nil
}

func loadListing(path string, defaultYear int) ([]meeting.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return meeting.ParseListing(f, meeting.ListingOptions{DefaultYear: defaultYear})
}

// writeResultsFile writes records to path under an exclusive lock, replacing
// the file atomically.
func writeResultsFile(path string, records []matching.MatchedRecord) error {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock on %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%s is being written by another run: %w", path, pferrors.ErrConflict)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(path + ".lock")
	}()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// metricsRegisterer is implemented by stores that export their own metrics.
type metricsRegisterer interface {
	RegisterMetrics(reg prometheus.Registerer) error
}

func saveRun(ctx context.Context, deps *MatchCommandDeps, cfg *config.CLIConfig, logger logging.Logger, result *matching.Result, reg prometheus.Registerer) error {
	store, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()

	if mr, ok := store.(metricsRegisterer); ok && reg != nil {
		if err := mr.RegisterMetrics(reg); err != nil {
			logger.Warn("Failed to register store metrics", logging.Err(err))
		}
	}

	if err := store.SaveRun(ctx, result.Run, result.Records); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	logger.Info("Run stored", logging.F("run_id", result.Run.ID), logging.F("driver", cfg.Storage.Driver))
	return nil
}

// publishRun announces the run. Failures are logged; the results are
// already written.
func publishRun(ctx context.Context, deps *MatchCommandDeps, cfg *config.CLIConfig, logger logging.Logger, result *matching.Result) {
	pub, err := deps.NewPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Warn("Event publisher unavailable", logging.Err(pferrors.ClassifyError(err, "publish")))
		return
	}
	defer pub.Close()

	if err := pub.PublishRunCompleted(ctx, result.Run, result.Records); err != nil {
		logger.Warn("Failed to publish run", logging.F("run_id", result.Run.ID), logging.Err(err))
	}
}

func printMatchSummary(w io.Writer, run *matching.Run, out string) error {
	s := run.Stats
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  Total events:      %d\n", s.Total)
	fmt.Fprintf(w, "  With recording:    %d\n", s.WithRecording)
	fmt.Fprintf(w, "  Without recording: %d\n", s.WithoutRecording)

	for _, m := range matching.AllMethods {
		if n := s.ByMethod[m]; n > 0 {
			fmt.Fprintf(w, "    %-16s %d\n", string(m)+":", n)
		}
	}
	if out != "" {
		fmt.Fprintf(w, "Results written to %s\n", out)
	}
	return nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
