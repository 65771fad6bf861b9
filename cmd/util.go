// Package cmd provides CLI commands for the ottermatch tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/ottermatch/config"
	"github.com/otherjamesbrown/ottermatch/pkg/ingest/storage"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
	"github.com/otherjamesbrown/ottermatch/pkg/matching"
)

// ConfigLoader returns the configuration resolved by the root command.
type ConfigLoader func() (*config.CLIConfig, error)

// NewLogger builds the CLI logger from configuration. Logs go to stderr.
func NewLogger(cfg *config.CLIConfig) logging.Logger {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.Config{
		Level:       level,
		ServiceName: "ottermatch",
		JSONFormat:  cfg.LogFormat == config.LogFormatJSON,
		Output:      os.Stderr,
	})
}

// matchingOptions converts the matching section of the configuration.
// Empty override and variation lists keep the built-in tables.
func matchingOptions(mc config.MatchingConfig) matching.Options {
	opts := matching.DefaultOptions()
	opts.FuzzyThreshold = mc.FuzzyThreshold
	opts.CompetitiveThreshold = mc.CompetitiveThreshold
	opts.RecoveryUnusedThreshold = mc.RecoveryUnusedThreshold
	opts.RecoveryReuseThreshold = mc.RecoveryReuseThreshold
	opts.ExcerptChars = mc.ExcerptChars
	opts.Metric = matching.Metric(mc.SimilarityMetric)
	opts.NoSummaryFallback = matching.FallbackMode(mc.NoSummaryFallback)

	if len(mc.Overrides) > 0 {
		opts.Overrides = make([]matching.Override, 0, len(mc.Overrides))
		for _, o := range mc.Overrides {
			opts.Overrides = append(opts.Overrides, matching.Override{
				Name:        o.Name,
				DateKeyword: o.DateKeyword,
				File:        o.File,
			})
		}
	}
	if len(mc.NameVariations) > 0 {
		opts.Variations = make([]matching.NameVariation, 0, len(mc.NameVariations))
		for _, v := range mc.NameVariations {
			opts.Variations = append(opts.Variations, matching.NameVariation{From: v.From, To: v.To})
		}
	}
	return opts
}

// openRunStore opens the configured run store.
func openRunStore(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (storage.Store, error) {
	dsn := cfg.Storage.DSN
	if cfg.Storage.Driver == config.StorageDriverSQLite || cfg.Storage.Driver == "" {
		path, err := cfg.RunsDBPath()
		if err != nil {
			return nil, err
		}
		if err := config.EnsureConfigDir(); err != nil {
			return nil, err
		}
		dsn = path
	}
	return storage.Open(ctx, cfg.Storage.Driver, dsn, logger)
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML writes v as YAML.
func outputYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}

// WriteFormatted writes v as JSON or YAML, or calls textFn for text output.
func WriteFormatted(w io.Writer, format config.OutputFormat, v interface{}, textFn func(io.Writer) error) error {
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(w, v)
	case config.OutputFormatYAML:
		return outputYAML(w, v)
	default:
		return textFn(w)
	}
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// truncate shortens s to n runes with a trailing ellipsis.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.3f", score)
}
