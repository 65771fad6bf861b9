package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/ottermatch/config"
	"github.com/otherjamesbrown/ottermatch/credentials"
	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/fathom"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
)

// FathomCommandDeps holds the dependencies for the fathom commands.
type FathomCommandDeps struct {
	LoadConfig ConfigLoader
	NewLogger  func(*config.CLIConfig) logging.Logger
	NewStore   func() (*credentials.Store, error)
	NewClient  func(cfg *config.CLIConfig, apiKey string, logger logging.Logger) (MeetingLister, error)
	Stdout     io.Writer
}

// DefaultFathomDeps returns the default dependencies for production use.
func DefaultFathomDeps(load ConfigLoader) *FathomCommandDeps {
	return &FathomCommandDeps{
		LoadConfig: load,
		NewLogger:  NewLogger,
		NewStore:   credentials.NewStore,
		NewClient:  newFathomClient,
		Stdout:     os.Stdout,
	}
}

type fathomFlags struct {
	apiKey    string
	limit     int
	dryRun    bool
	overwrite bool
}

// NewFathomCommand creates the fathom command group.
func NewFathomCommand(deps *FathomCommandDeps) *cobra.Command {
	var flags fathomFlags

	cmd := &cobra.Command{
		Use:   "fathom",
		Short: "Fetch meetings from the Fathom API",
		Long: `Fetch meetings and transcripts from the Fathom API.

The API key comes from --api-key, FATHOM_API_KEY, or the key stored with
'ottermatch auth login', in that order.`,
	}
	cmd.PersistentFlags().StringVar(&flags.apiKey, "api-key", "", "Fathom API key")
	cmd.PersistentFlags().IntVar(&flags.limit, "limit", 0, "Maximum number of meetings to fetch (0 for all)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFathomList(cmd.Context(), deps, flags)
		},
	}

	export := &cobra.Command{
		Use:   "export [dir]",
		Short: "Write meeting transcripts and summaries to a directory",
		Long: `Write each meeting to a directory as three files sharing a base name
"<date> - <title>":

  <base>.txt          transcript, one "[seconds] speaker: text" line per entry
  <base>_summary.md   default summary
  <base>.json         meeting metadata

The metadata file is written last; meetings whose metadata file already
exists are skipped unless --overwrite is given. A download_report.json with
per-meeting results is written to the directory.

The directory defaults to fathom.output_dir. The transcripts can be matched
with 'ottermatch match <listing.html> <dir>'.

Examples:
  ottermatch fathom export ./fathom
  ottermatch fathom export ./fathom --limit 10 --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			_, err := runFathomExport(cmd.Context(), deps, dir, flags)
			return err
		},
	}
	export.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Report what would be written without writing")
	export.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Rewrite meetings that were already exported")

	cmd.AddCommand(list)
	cmd.AddCommand(export)
	return cmd
}

// resolveFathomKey picks the API key from the flag, the environment or the
// credential store.
func resolveFathomKey(deps *FathomCommandDeps, flagKey string) (string, error) {
	if key := strings.TrimSpace(flagKey); key != "" {
		return key, nil
	}
	if key, err := credentials.ResolveAPIKey(nil); err == nil {
		return key, nil
	}
	store, err := deps.NewStore()
	if err != nil {
		return "", fmt.Errorf("initializing credential store: %w", err)
	}
	key, err := credentials.ResolveAPIKey(store)
	if err != nil {
		return "", fmt.Errorf("no Fathom API key; run 'ottermatch auth login' or set %s: %w",
			credentials.EnvAPIKey, pferrors.ErrUnauthorized)
	}
	return key, nil
}

func fetchMeetings(ctx context.Context, deps *FathomCommandDeps, cfg *config.CLIConfig, logger logging.Logger, flags fathomFlags) ([]fathom.Meeting, error) {
	apiKey, err := resolveFathomKey(deps, flags.apiKey)
	if err != nil {
		return nil, err
	}
	client, err := deps.NewClient(cfg, apiKey, logger)
	if err != nil {
		return nil, err
	}
	meetings, err := client.ListMeetings(ctx, fathom.ListOptions{Limit: flags.limit})
	if err != nil {
		return nil, pferrors.ClassifyError(err, "fathom.list")
	}
	return meetings, nil
}

func runFathomList(ctx context.Context, deps *FathomCommandDeps, flags fathomFlags) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	meetings, err := fetchMeetings(ctx, deps, cfg, deps.NewLogger(cfg), flags)
	if err != nil {
		return err
	}

	return WriteFormatted(deps.Stdout, cfg.OutputFormat, meetings, func(w io.Writer) error {
		rows := make([][]string, 0, len(meetings))
		for _, m := range meetings {
			created := "-"
			if t, ok := m.Created(); ok {
				created = t.Local().Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{
				m.ID,
				created,
				truncate(m.DisplayTitle(), 50),
				fmt.Sprintf("%d", len(m.Transcript)),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"ID", "Created", "Title", "Entries"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
		fmt.Fprintf(w, "%d meetings\n", len(meetings))
		return nil
	})
}

func runFathomExport(ctx context.Context, deps *FathomCommandDeps, dir string, flags fathomFlags) (*fathom.ExportReport, error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, err
	}
	dir = valueOrDefault(dir, cfg.Fathom.OutputDir)
	if dir == "" {
		return nil, fmt.Errorf("no output directory; pass one or set fathom.output_dir: %w", pferrors.ErrValidation)
	}
	dir, err = config.ExpandPath(dir)
	if err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	logger := deps.NewLogger(cfg)
	meetings, err := fetchMeetings(ctx, deps, cfg, logger, flags)
	if err != nil {
		return nil, err
	}

	report, err := fathom.NewExporter(dir, logger).Export(ctx, meetings, fathom.ExportOptions{
		DryRun:    flags.dryRun,
		Overwrite: flags.overwrite,
	})
	if err != nil {
		return report, pferrors.ClassifyError(err, "fathom.export")
	}

	reportPath := ""
	if !flags.dryRun {
		reportPath, err = fathom.WriteReport(dir, report)
		if err != nil {
			return report, err
		}
	}

	return report, WriteFormatted(deps.Stdout, cfg.OutputFormat, report, func(w io.Writer) error {
		if flags.dryRun {
			fmt.Fprintln(w, "Dry run; nothing was written.")
		}
		for _, r := range report.Results {
			if r.Status == fathom.StatusFailed {
				fmt.Fprintf(w, "  failed: %s: %s\n", r.Title, r.Error)
			}
		}
		fmt.Fprintf(w, "Meetings: %d  Written: %d  Skipped: %d  Failed: %d\n",
			report.Total, report.Successful, report.Skipped, report.Failed)
		if reportPath != "" {
			fmt.Fprintf(w, "Report written to %s\n", reportPath)
		}
		return nil
	})
}
