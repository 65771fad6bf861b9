package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
)

// InspectCommandDeps holds the dependencies for the listing and index commands.
type InspectCommandDeps struct {
	LoadConfig ConfigLoader
	Stdout     io.Writer
}

// DefaultInspectDeps returns the default dependencies for production use.
func DefaultInspectDeps(load ConfigLoader) *InspectCommandDeps {
	return &InspectCommandDeps{LoadConfig: load, Stdout: os.Stdout}
}

// NewListingCommand creates the listing command.
func NewListingCommand(deps *InspectCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "listing <listing.html>",
		Short: "Parse a saved meeting listing and print its events",
		Long: `Parse a saved meeting listing page and print the events it contains.

Date headers without a year get listing.default_year appended. Cards without
a title are skipped.

Examples:
  ottermatch listing listing.html
  ottermatch listing listing.html --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListing(deps, args[0])
		},
	}
}

func runListing(deps *InspectCommandDeps, path string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return err
	}
	evs, err := loadListing(path, cfg.Listing.DefaultYear)
	if err != nil {
		return pferrors.ClassifyError(err, "listing")
	}

	return WriteFormatted(deps.Stdout, cfg.OutputFormat, evs, func(w io.Writer) error {
		rows := make([][]string, 0, len(evs))
		for _, ev := range evs {
			summary := "-"
			if ev.HasSummary() {
				summary = truncate(ev.Summary, 40)
			}
			rows = append(rows, []string{
				strconv.Itoa(ev.Index),
				ev.Date,
				truncate(ev.Name, 40),
				valueOrDefault(ev.Time, "-"),
				valueOrDefault(ev.Duration, "-"),
				summary,
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"#", "Date", "Name", "Time", "Duration", "Summary"},
			rows,
			[]columnAlignment{alignRight},
		))
		fmt.Fprintf(w, "%d events\n", len(evs))
		return nil
	})
}

// NewIndexCommand creates the index command.
func NewIndexCommand(deps *InspectCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "index <recordings-dir>",
		Short: "Print the file groups found in a recordings directory",
		Long: `Scan a recordings directory and print the file groups matching uses.

Media (.mp3, .m4a, .mp4, .wav, .webm) and transcript (.txt) files sharing a
stem form one artifact. Stems ending in "(n)" join the group of the name
without the suffix, ordered unnumbered first then by n.

Examples:
  ottermatch index ~/Recordings
  ottermatch index ~/Recordings --output yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(deps, args[0])
		},
	}
}

func runIndex(deps *InspectCommandDeps, dir string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return err
	}
	index, err := meeting.BuildFileIndex(dir)
	if err != nil {
		return pferrors.ClassifyError(err, "index")
	}

	groups := index.Groups()
	return WriteFormatted(deps.Stdout, cfg.OutputFormat, groups, func(w io.Writer) error {
		var rows [][]string
		for _, g := range groups {
			for _, a := range g.Artifacts {
				seq := "-"
				if a.Numbered {
					seq = strconv.Itoa(a.Sequence)
				}
				rows = append(rows, []string{
					truncate(g.Name, 40),
					seq,
					yesNo(a.HasMedia()),
					yesNo(a.HasText()),
					a.ModTime.Format("2006-01-02 15:04"),
				})
			}
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Group", "Seq", "Media", "Transcript", "Modified"},
			rows,
			[]columnAlignment{alignLeft, alignRight},
		))
		fmt.Fprintf(w, "%d groups, %d files\n", index.Len(), index.ArtifactCount())
		return nil
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
