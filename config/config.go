// Package config provides configuration management for the ottermatch command-line tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Matching policy names.
const (
	SimilarityLCS         = "lcs"
	SimilarityJaroWinkler = "jaro_winkler"

	NoSummaryFallbackOne   = "one"
	NoSummaryFallbackDrain = "drain"

	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"

	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Default configuration values.
const (
	DefaultTimeout      = 5 * time.Minute
	DefaultOutputFormat = OutputFormatText
	DefaultConfigDir    = ".ottermatch"
	DefaultConfigFile   = "config.yaml"
	DefaultRunsDB       = "runs.db"

	DefaultFuzzyThreshold          = 0.8
	DefaultCompetitiveThreshold    = 0.05
	DefaultRecoveryUnusedThreshold = 0.1
	DefaultRecoveryReuseThreshold  = 0.3
	DefaultExcerptChars            = 5000
	DefaultMaxTextBytes            = 4 << 20

	DefaultRedisChannel  = "events.meetings.reconciled"
	DefaultFathomAPIBase = "https://api.fathom.video/api/v1"
)

// OverrideRule pins an event, identified by name and a date keyword, to a
// specific file stem.
type OverrideRule struct {
	Name        string `yaml:"name"`
	DateKeyword string `yaml:"date_keyword"`
	File        string `yaml:"file"`
}

// NameVariation is a literal rewrite tried when recovering an unmatched event.
type NameVariation struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// MatchingConfig tunes the reconciliation engine.
type MatchingConfig struct {
	// FuzzyThreshold is the minimum name similarity for a fuzzy group match.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// CompetitiveThreshold is the content score a validated pairing must exceed.
	CompetitiveThreshold float64 `yaml:"competitive_threshold"`

	// RecoveryUnusedThreshold is the score an unused file must exceed during recovery.
	RecoveryUnusedThreshold float64 `yaml:"recovery_unused_threshold"`

	// RecoveryReuseThreshold is the score an already assigned file must exceed during recovery.
	RecoveryReuseThreshold float64 `yaml:"recovery_reuse_threshold"`

	// ExcerptChars bounds the transcript excerpt attached to each record.
	ExcerptChars int `yaml:"excerpt_chars"`

	// MaxTextBytes caps how much of a transcript file is read.
	MaxTextBytes int64 `yaml:"max_text_bytes"`

	// SimilarityMetric is "lcs" or "jaro_winkler".
	SimilarityMetric string `yaml:"similarity_metric"`

	// NoSummaryFallback is "one" (at most one name-only pairing per group) or "drain".
	NoSummaryFallback string `yaml:"no_summary_fallback"`

	// Overrides replaces the built-in override table when non-empty.
	Overrides []OverrideRule `yaml:"overrides,omitempty"`

	// NameVariations replaces the built-in variation table when non-empty.
	NameVariations []NameVariation `yaml:"name_variations,omitempty"`
}

// ListingConfig holds listing parser settings.
type ListingConfig struct {
	// DefaultYear is appended to date headers that carry no year.
	DefaultYear int `yaml:"default_year"`
}

// StorageConfig selects where reconciliation runs are recorded.
type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`

	// DSN is the database path (sqlite) or connection string (postgres).
	// An empty sqlite DSN means ~/.ottermatch/runs.db.
	DSN string `yaml:"dsn,omitempty"`

	// AutoSave records every match run without --save.
	AutoSave bool `yaml:"auto_save,omitempty"`
}

// RedisConfig configures the run-completed event publisher.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// Enabled reports whether an event publisher should be created.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// FathomConfig configures the recorder API client.
type FathomConfig struct {
	APIBase   string `yaml:"api_base"`
	OutputDir string `yaml:"output_dir,omitempty"`
	PageSize  int    `yaml:"page_size,omitempty"`
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// Timeout bounds a whole command, including store and publisher calls.
	Timeout time.Duration `yaml:"timeout"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format,omitempty"`

	// MetricsFile, when set, receives Prometheus text-format metrics after a run.
	MetricsFile string `yaml:"metrics_file,omitempty"`

	Matching MatchingConfig `yaml:"matching"`
	Listing  ListingConfig  `yaml:"listing"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis,omitempty"`
	Fathom   FathomConfig   `yaml:"fathom"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Timeout:      DefaultTimeout,
		OutputFormat: DefaultOutputFormat,
		LogFormat:    LogFormatConsole,
		Matching: MatchingConfig{
			FuzzyThreshold:          DefaultFuzzyThreshold,
			CompetitiveThreshold:    DefaultCompetitiveThreshold,
			RecoveryUnusedThreshold: DefaultRecoveryUnusedThreshold,
			RecoveryReuseThreshold:  DefaultRecoveryReuseThreshold,
			ExcerptChars:            DefaultExcerptChars,
			MaxTextBytes:            DefaultMaxTextBytes,
			SimilarityMetric:        SimilarityLCS,
			NoSummaryFallback:       NoSummaryFallbackOne,
		},
		Listing: ListingConfig{
			DefaultYear: time.Now().Year(),
		},
		Storage: StorageConfig{
			Driver: StorageDriverSQLite,
		},
		Redis: RedisConfig{
			Channel: DefaultRedisChannel,
		},
		Fathom: FathomConfig{
			APIBase:  DefaultFathomAPIBase,
			PageSize: 50,
		},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $OTTERMATCH_CONFIG_DIR if set, otherwise ~/.ottermatch
func ConfigDir() (string, error) {
	if dir := os.Getenv("OTTERMATCH_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from the default file and environment variables.
func LoadConfig() (*CLIConfig, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom loads configuration in this order (later sources override earlier):
// 1. Default values
// 2. Config file (path, or ~/.ottermatch/config.yaml, or $OTTERMATCH_CONFIG_DIR/config.yaml)
// 3. Environment variables (OTTERMATCH_*)
//
// An explicit path that does not exist is an error; a missing default file is not.
func LoadConfigFrom(path string) (*CLIConfig, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("getting config path: %w", err)
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// configFile mirrors CLIConfig with the timeout as a string so that
// values like "90s" round-trip through YAML.
type configFile struct {
	Timeout      string         `yaml:"timeout"`
	OutputFormat OutputFormat   `yaml:"output_format"`
	Debug        bool           `yaml:"debug,omitempty"`
	LogFormat    string         `yaml:"log_format,omitempty"`
	MetricsFile  string         `yaml:"metrics_file,omitempty"`
	Matching     MatchingConfig `yaml:"matching"`
	Listing      ListingConfig  `yaml:"listing"`
	Storage      StorageConfig  `yaml:"storage"`
	Redis        RedisConfig    `yaml:"redis,omitempty"`
	Fathom       FathomConfig   `yaml:"fathom"`
}

// loadFromFile loads configuration from a YAML file. Nested sections are
// pre-populated with the current values so a partial file only overrides
// the keys it names.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	fileCfg := configFile{
		OutputFormat: cfg.OutputFormat,
		Debug:        cfg.Debug,
		LogFormat:    cfg.LogFormat,
		MetricsFile:  cfg.MetricsFile,
		Matching:     cfg.Matching,
		Listing:      cfg.Listing,
		Storage:      cfg.Storage,
		Redis:        cfg.Redis,
		Fathom:       cfg.Fathom,
	}
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	cfg.OutputFormat = fileCfg.OutputFormat
	cfg.Debug = fileCfg.Debug
	cfg.LogFormat = fileCfg.LogFormat
	cfg.MetricsFile = fileCfg.MetricsFile
	cfg.Matching = fileCfg.Matching
	cfg.Listing = fileCfg.Listing
	cfg.Storage = fileCfg.Storage
	cfg.Redis = fileCfg.Redis
	cfg.Fathom = fileCfg.Fathom

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("OTTERMATCH_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = timeout
		}
	}

	if v := os.Getenv("OTTERMATCH_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("OTTERMATCH_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("OTTERMATCH_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if v := os.Getenv("OTTERMATCH_METRICS_FILE"); v != "" {
		cfg.MetricsFile = v
	}

	if v := os.Getenv("OTTERMATCH_FUZZY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.FuzzyThreshold = f
		}
	}

	if v := os.Getenv("OTTERMATCH_SIMILARITY_METRIC"); v != "" {
		cfg.Matching.SimilarityMetric = v
	}

	if v := os.Getenv("OTTERMATCH_NO_SUMMARY_FALLBACK"); v != "" {
		cfg.Matching.NoSummaryFallback = v
	}

	if v := os.Getenv("OTTERMATCH_DEFAULT_YEAR"); v != "" {
		if year, err := strconv.Atoi(v); err == nil {
			cfg.Listing.DefaultYear = year
		}
	}

	if v := os.Getenv("OTTERMATCH_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}

	if v := os.Getenv("OTTERMATCH_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}

	if v := os.Getenv("OTTERMATCH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	if v := os.Getenv("OTTERMATCH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("OTTERMATCH_FATHOM_API_BASE"); v != "" {
		cfg.Fathom.APIBase = v
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	switch c.LogFormat {
	case "", LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("invalid log_format: %q (must be console or json)", c.LogFormat)
	}

	if err := c.Matching.Validate(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case StorageDriverSQLite:
	case StorageDriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid storage.driver: %q (must be sqlite or postgres)", c.Storage.Driver)
	}

	if c.Listing.DefaultYear < 1000 || c.Listing.DefaultYear > 9999 {
		return fmt.Errorf("listing.default_year must be a 4-digit year, got %d", c.Listing.DefaultYear)
	}

	return nil
}

// Validate checks matching thresholds and policy names.
func (m *MatchingConfig) Validate() error {
	thresholds := []struct {
		name  string
		value float64
	}{
		{"fuzzy_threshold", m.FuzzyThreshold},
		{"competitive_threshold", m.CompetitiveThreshold},
		{"recovery_unused_threshold", m.RecoveryUnusedThreshold},
		{"recovery_reuse_threshold", m.RecoveryReuseThreshold},
	}
	for _, th := range thresholds {
		if th.value < 0 || th.value > 1 {
			return fmt.Errorf("matching.%s must be within [0,1], got %v", th.name, th.value)
		}
	}

	if m.ExcerptChars < 0 {
		return fmt.Errorf("matching.excerpt_chars must not be negative")
	}
	if m.MaxTextBytes <= 0 {
		return fmt.Errorf("matching.max_text_bytes must be positive")
	}

	switch m.SimilarityMetric {
	case SimilarityLCS, SimilarityJaroWinkler:
	default:
		return fmt.Errorf("invalid matching.similarity_metric: %q (must be lcs or jaro_winkler)", m.SimilarityMetric)
	}

	switch m.NoSummaryFallback {
	case NoSummaryFallbackOne, NoSummaryFallbackDrain:
	default:
		return fmt.Errorf("invalid matching.no_summary_fallback: %q (must be one or drain)", m.NoSummaryFallback)
	}

	for i, o := range m.Overrides {
		if strings.TrimSpace(o.Name) == "" || strings.TrimSpace(o.File) == "" {
			return fmt.Errorf("matching.overrides[%d]: name and file are required", i)
		}
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// RunsDBPath returns the sqlite DSN, defaulting to a file in the config directory.
func (c *CLIConfig) RunsDBPath() (string, error) {
	if c.Storage.DSN != "" {
		return ExpandPath(c.Storage.DSN)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultRunsDB), nil
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	fileCfg := configFile{
		Timeout:      cfg.Timeout.String(),
		OutputFormat: cfg.OutputFormat,
		Debug:        cfg.Debug,
		LogFormat:    cfg.LogFormat,
		MetricsFile:  cfg.MetricsFile,
		Matching:     cfg.Matching,
		Listing:      cfg.Listing,
		Storage:      cfg.Storage,
		Redis:        cfg.Redis,
		Fathom:       cfg.Fathom,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
