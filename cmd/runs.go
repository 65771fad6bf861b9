package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/ottermatch/config"
	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/ingest/storage"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
	"github.com/otherjamesbrown/ottermatch/pkg/matching"
)

// RunsCommandDeps holds the dependencies for the runs commands.
type RunsCommandDeps struct {
	LoadConfig ConfigLoader
	NewLogger  func(*config.CLIConfig) logging.Logger
	OpenStore  func(context.Context, *config.CLIConfig, logging.Logger) (storage.Store, error)
	Stdout     io.Writer
}

// DefaultRunsDeps returns the default dependencies for production use.
func DefaultRunsDeps(load ConfigLoader) *RunsCommandDeps {
	return &RunsCommandDeps{
		LoadConfig: load,
		NewLogger:  NewLogger,
		OpenStore:  openRunStore,
		Stdout:     os.Stdout,
	}
}

// NewRunsCommand creates the runs command group.
func NewRunsCommand(deps *RunsCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored match runs",
		Long: `Inspect runs stored with match --save or storage.auto_save.

Runs are kept in a local SQLite database by default. Set storage.driver to
postgres and storage.dsn to a connection string to share runs.`,
	}

	cmd.AddCommand(newRunsListCommand(deps))
	cmd.AddCommand(newRunsShowCommand(deps))
	return cmd
}

func newRunsListCommand(deps *RunsCommandDeps) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(cmd.Context(), deps, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", storage.DefaultListLimit, "Maximum number of runs to list")
	return cmd
}

func newRunsShowCommand(deps *RunsCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(cmd.Context(), deps, args[0])
		},
	}
}

func withRunStore(ctx context.Context, deps *RunsCommandDeps, fn func(context.Context, *config.CLIConfig, storage.Store) error) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	store, err := deps.OpenStore(ctx, cfg, deps.NewLogger(cfg))
	if err != nil {
		return pferrors.ClassifyError(err, "store")
	}
	defer store.Close()

	return fn(ctx, cfg, store)
}

func runRunsList(ctx context.Context, deps *RunsCommandDeps, limit int) error {
	return withRunStore(ctx, deps, func(ctx context.Context, cfg *config.CLIConfig, store storage.Store) error {
		runs, err := store.ListRuns(ctx, limit)
		if err != nil {
			return pferrors.ClassifyError(err, "store")
		}

		return WriteFormatted(deps.Stdout, cfg.OutputFormat, runs, func(w io.Writer) error {
			if len(runs) == 0 {
				fmt.Fprintln(w, "No stored runs.")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					strconv.Itoa(r.Stats.Total),
					strconv.Itoa(r.Stats.WithRecording),
					r.Duration().Round(time.Millisecond).String(),
					truncate(r.Directory, 40),
				})
			}
			fmt.Fprintln(w, renderTable(
				[]string{"Run", "Started", "Events", "Matched", "Took", "Directory"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		})
	})
}

func runRunsShow(ctx context.Context, deps *RunsCommandDeps, id string) error {
	return withRunStore(ctx, deps, func(ctx context.Context, cfg *config.CLIConfig, store storage.Store) error {
		stored, err := store.GetRun(ctx, id)
		if err != nil {
			return pferrors.ClassifyError(err, "store")
		}

		return WriteFormatted(deps.Stdout, cfg.OutputFormat, stored, func(w io.Writer) error {
			printRunHeader(w, &stored.Run)
			rows := make([][]string, 0, len(stored.Records))
			for _, r := range stored.Records {
				file := "-"
				if r.File != nil {
					file = truncate(r.File.Stem, 40)
				}
				rows = append(rows, []string{
					strconv.Itoa(r.ID),
					truncate(r.Name, 40),
					file,
					valueOrDefault(string(r.MatchMethod), "-"),
				})
			}
			fmt.Fprintln(w, renderTable(
				[]string{"ID", "Name", "File", "Method"},
				rows,
				[]columnAlignment{alignRight},
			))
			return printStats(w, stored.Run.Stats)
		})
	})
}

func printRunHeader(w io.Writer, run *matching.Run) {
	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "Listing:   %s\n", valueOrDefault(run.ListingPath, "-"))
	fmt.Fprintf(w, "Directory: %s\n", valueOrDefault(run.Directory, "-"))
	fmt.Fprintf(w, "Started:   %s\n", run.StartedAt.Local().Format(time.RFC3339))
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(w, "Took:      %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintln(w)
}
