package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/matching"
)

// ReportCommandDeps holds the dependencies for the report command.
type ReportCommandDeps struct {
	LoadConfig ConfigLoader
	Stdout     io.Writer
}

// DefaultReportDeps returns the default dependencies for production use.
func DefaultReportDeps(load ConfigLoader) *ReportCommandDeps {
	return &ReportCommandDeps{LoadConfig: load, Stdout: os.Stdout}
}

// reportOutput is the structured form of the report command.
type reportOutput struct {
	Stats   matching.Stats           `json:"stats" yaml:"stats"`
	Records []matching.MatchedRecord `json:"records" yaml:"records"`
}

// NewReportCommand creates the report command.
func NewReportCommand(deps *ReportCommandDeps) *cobra.Command {
	var unmatchedOnly bool

	cmd := &cobra.Command{
		Use:   "report <results.json>",
		Short: "Summarize a results file written by match",
		Long: `Print the records of a results file with per-method statistics.

Examples:
  ottermatch report results.json
  ottermatch report results.json --unmatched
  ottermatch report results.json --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(deps, args[0], unmatchedOnly)
		},
	}

	cmd.Flags().BoolVar(&unmatchedOnly, "unmatched", false, "Only list events without a recording")
	return cmd
}

func runReport(deps *ReportCommandDeps, path string, unmatchedOnly bool) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return err
	}
	records, err := readResultsFile(path)
	if err != nil {
		return err
	}

	out := reportOutput{Stats: matching.ComputeStats(records), Records: records}
	if unmatchedOnly {
		out.Records = matching.Unmatched(records)
	}

	return WriteFormatted(deps.Stdout, cfg.OutputFormat, out, func(w io.Writer) error {
		rows := make([][]string, 0, len(out.Records))
		for _, r := range out.Records {
			file, method, score := "-", "-", "-"
			if r.File != nil {
				file = truncate(r.File.Stem, 40)
				method = string(r.MatchMethod)
				score = formatScore(r.MatchScore)
			}
			rows = append(rows, []string{
				strconv.Itoa(r.ID),
				valueOrDefault(r.Date, "-"),
				truncate(r.Name, 40),
				file,
				method,
				score,
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"ID", "Date", "Name", "File", "Method", "Score"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
		return printStats(w, out.Stats)
	})
}

func readResultsFile(path string) ([]matching.MatchedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pferrors.ClassifyError(err, "report")
	}
	var records []matching.MatchedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, pferrors.ErrValidation)
	}
	return records, nil
}

func printStats(w io.Writer, s matching.Stats) error {
	fmt.Fprintf(w, "Total: %d  With recording: %d  Without recording: %d\n",
		s.Total, s.WithRecording, s.WithoutRecording)
	for _, m := range matching.AllMethods {
		if n := s.ByMethod[m]; n > 0 {
			pct := 0.0
			if s.WithRecording > 0 {
				pct = float64(n) / float64(s.WithRecording) * 100
			}
			fmt.Fprintf(w, "  %-16s %4d  (%.1f%%)\n", string(m)+":", n, pct)
		}
	}
	return nil
}
