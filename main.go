// Package main provides the ottermatch CLI entry point.
// ottermatch matches a saved Otter.ai meeting listing to the recordings and
// transcripts in a local directory.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/ottermatch/cmd"
	"github.com/otherjamesbrown/ottermatch/config"
	"github.com/otherjamesbrown/ottermatch/pkg/buildinfo"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
)

// rootOptions holds the global flags and the configuration they resolve to.
type rootOptions struct {
	cfgFile      string
	timeout      time.Duration
	outputFormat string
	logFormat    string
	debug        bool

	cfg *config.CLIConfig
}

// loadConfig returns the configuration resolved in PersistentPreRunE.
func (o *rootOptions) loadConfig() (*config.CLIConfig, error) {
	if o.cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return o.cfg, nil
}

// resolve loads the configuration file and environment, then applies the
// command-line overrides.
func (o *rootOptions) resolve() error {
	cfg, err := config.LoadConfigFrom(o.cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if o.timeout != 0 {
		cfg.Timeout = o.timeout
	}
	if o.outputFormat != "" {
		cfg.OutputFormat = config.OutputFormat(o.outputFormat)
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	o.cfg = cfg
	logging.SetGlobal(cmd.NewLogger(cfg))
	return nil
}

// newRootCommand builds the command tree.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ottermatch",
		Short: "Match meeting listings to recordings and transcripts",
		Long: `ottermatch matches a saved Otter.ai meeting listing to the recordings
and transcripts in a local directory.

Each listing event is paired with at most one recording. Events are grouped by
name, validated against transcript content where the listing carries a
summary, and retried through name variations and a fuzzy fallback.

COMMON WORKFLOWS:
  Match:          ottermatch match listing.html ~/Recordings --out results.json
  Review:         ottermatch report results.json --unmatched
  Inspect inputs: ottermatch listing listing.html  |  ottermatch index ~/Recordings
  Stored runs:    ottermatch runs list  ->  ottermatch runs show <id>
  Fathom export:  ottermatch auth login  ->  ottermatch fathom export ./fathom

Commands support --output json for structured data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			// Skip initialization for commands that don't need it.
			if c.Name() == "version" || c.Name() == "help" || c.Name() == "completion" {
				return nil
			}
			return opts.resolve()
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ~/.ottermatch/config.yaml)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "run timeout (e.g., 30s, 5m)")
	root.PersistentFlags().StringVar(&opts.outputFormat, "output", "", "output format: text, json, yaml")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: console, json")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddGroup(
		&cobra.Group{ID: "match", Title: "Matching:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
		&cobra.Group{ID: "fathom", Title: "Fathom:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	load := opts.loadConfig

	matchCmd := cmd.NewMatchCommand(cmd.DefaultMatchDeps(load))
	matchCmd.GroupID = "match"
	root.AddCommand(matchCmd)

	reportCmd := cmd.NewReportCommand(cmd.DefaultReportDeps(load))
	reportCmd.GroupID = "match"
	root.AddCommand(reportCmd)

	runsCmd := cmd.NewRunsCommand(cmd.DefaultRunsDeps(load))
	runsCmd.GroupID = "match"
	root.AddCommand(runsCmd)

	inspectDeps := cmd.DefaultInspectDeps(load)
	listingCmd := cmd.NewListingCommand(inspectDeps)
	listingCmd.GroupID = "inspect"
	root.AddCommand(listingCmd)

	indexCmd := cmd.NewIndexCommand(inspectDeps)
	indexCmd.GroupID = "inspect"
	root.AddCommand(indexCmd)

	fathomCmd := cmd.NewFathomCommand(cmd.DefaultFathomDeps(load))
	fathomCmd.GroupID = "fathom"
	root.AddCommand(fathomCmd)

	authCmd := cmd.NewAuthCommand(cmd.DefaultAuthDeps(load))
	authCmd.GroupID = "fathom"
	root.AddCommand(authCmd)

	configCmd := newConfigCommand(opts)
	configCmd.GroupID = "setup"
	root.AddCommand(configCmd)

	completionCmd := newCompletionCommand(root)
	completionCmd.GroupID = "setup"
	root.AddCommand(completionCmd)

	versionCmd := newVersionCommand(opts)
	versionCmd.GroupID = "setup"
	root.AddCommand(versionCmd)

	return root
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the version, commit hash, and build time of the ottermatch CLI.

Examples:
  ottermatch version
  ottermatch version --output json`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return printVersion(c.OutOrStdout(), config.OutputFormat(opts.outputFormat))
		},
	}
}

func printVersion(w io.Writer, format config.OutputFormat) error {
	info := buildinfo.Get("ottermatch")
	return cmd.WriteFormatted(w, format, info, func(w io.Writer) error {
		fmt.Fprintf(w, "ottermatch version %s\n", info.Version)
		fmt.Fprintf(w, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(w, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(w, "  go:         %s (%s)\n", info.GoVersion, info.Platform)
		return nil
	})
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `View and initialize the ottermatch configuration file.`,
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  `Display the configuration after the file, environment and flags are applied.`,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return showConfig(c.OutOrStdout(), cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  `Create a configuration file with default values if one doesn't exist.`,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return initConfig(c.OutOrStdout())
		},
	})

	return configCmd
}

func showConfig(w io.Writer, cfg *config.CLIConfig) error {
	configPath, _ := config.ConfigPath()
	shown := *cfg
	if shown.Redis.Password != "" {
		shown.Redis.Password = "********"
	}
	return cmd.WriteFormatted(w, cfg.OutputFormat, &shown, func(w io.Writer) error {
		fmt.Fprintln(w, "Current configuration:")
		fmt.Fprintf(w, "  Config file:          %s\n", configPath)
		fmt.Fprintf(w, "  Timeout:              %s\n", cfg.Timeout)
		fmt.Fprintf(w, "  Output format:        %s\n", cfg.OutputFormat)
		fmt.Fprintf(w, "  Log format:           %s\n", valueOrDefault(cfg.LogFormat, config.LogFormatConsole))
		fmt.Fprintf(w, "  Debug:                %t\n", cfg.Debug)
		fmt.Fprintf(w, "  Similarity metric:    %s\n", cfg.Matching.SimilarityMetric)
		fmt.Fprintf(w, "  Fuzzy threshold:      %.2f\n", cfg.Matching.FuzzyThreshold)
		fmt.Fprintf(w, "  No-summary fallback:  %s\n", cfg.Matching.NoSummaryFallback)
		fmt.Fprintf(w, "  Overrides:            %d\n", len(cfg.Matching.Overrides))
		fmt.Fprintf(w, "  Default year:         %d\n", cfg.Listing.DefaultYear)
		fmt.Fprintf(w, "  Storage driver:       %s\n", cfg.Storage.Driver)
		fmt.Fprintf(w, "  Auto-save runs:       %t\n", cfg.Storage.AutoSave)
		fmt.Fprintf(w, "  Redis:                %s\n", valueOrDefault(cfg.Redis.Addr, "(not set)"))
		fmt.Fprintf(w, "  Fathom output dir:    %s\n", valueOrDefault(cfg.Fathom.OutputDir, "(not set)"))
		return nil
	})
}

func initConfig(w io.Writer) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(w, "Configuration file already exists: %s\n", configPath)
		fmt.Fprintln(w, "Use 'ottermatch config show' to view current settings.")
		return nil
	}

	defaultCfg := config.DefaultConfig()
	if err := config.SaveConfig(defaultCfg); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}

	fmt.Fprintf(w, "Created configuration file: %s\n", configPath)
	return nil
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func newCompletionCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for ottermatch.

Bash:
  $ source <(ottermatch completion bash)

Zsh:
  $ ottermatch completion zsh > "${fpath[1]}/_ottermatch"

Fish:
  $ ottermatch completion fish > ~/.config/fish/completions/ottermatch.fish`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

func main() {
	// Cancel in-flight work on SIGINT/SIGTERM; partial results are not written.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
