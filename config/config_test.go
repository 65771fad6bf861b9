package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.OutputFormat != DefaultOutputFormat {
		t.Errorf("OutputFormat = %v, want %v", cfg.OutputFormat, DefaultOutputFormat)
	}
	if cfg.Matching.FuzzyThreshold != 0.8 {
		t.Errorf("FuzzyThreshold = %v, want 0.8", cfg.Matching.FuzzyThreshold)
	}
	if cfg.Matching.CompetitiveThreshold != 0.05 {
		t.Errorf("CompetitiveThreshold = %v, want 0.05", cfg.Matching.CompetitiveThreshold)
	}
	if cfg.Matching.RecoveryUnusedThreshold != 0.1 || cfg.Matching.RecoveryReuseThreshold != 0.3 {
		t.Errorf("recovery thresholds = %v/%v, want 0.1/0.3",
			cfg.Matching.RecoveryUnusedThreshold, cfg.Matching.RecoveryReuseThreshold)
	}
	if cfg.Matching.ExcerptChars != 5000 {
		t.Errorf("ExcerptChars = %v, want 5000", cfg.Matching.ExcerptChars)
	}
	if cfg.Matching.NoSummaryFallback != NoSummaryFallbackOne {
		t.Errorf("NoSummaryFallback = %v, want one", cfg.Matching.NoSummaryFallback)
	}
	if cfg.Matching.SimilarityMetric != SimilarityLCS {
		t.Errorf("SimilarityMetric = %v, want lcs", cfg.Matching.SimilarityMetric)
	}
	if cfg.Storage.Driver != StorageDriverSQLite {
		t.Errorf("Storage.Driver = %v, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled by default")
	}
	if cfg.Listing.DefaultYear != time.Now().Year() {
		t.Errorf("DefaultYear = %v, want current year", cfg.Listing.DefaultYear)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

// TestOutputFormat_IsValid verifies output format validation.
func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{OutputFormatText, true},
		{OutputFormatJSON, true},
		{OutputFormatYAML, true},
		{"invalid", false},
		{"", false},
		{"JSON", false},
	}

	for _, tc := range tests {
		if got := tc.format.IsValid(); got != tc.valid {
			t.Errorf("OutputFormat(%q).IsValid() = %v, want %v", tc.format, got, tc.valid)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr string
	}{
		{"valid", func(*CLIConfig) {}, ""},
		{"zero timeout", func(c *CLIConfig) { c.Timeout = 0 }, "timeout must be positive"},
		{"bad output", func(c *CLIConfig) { c.OutputFormat = "xml" }, "invalid output_format"},
		{"bad log format", func(c *CLIConfig) { c.LogFormat = "logfmt" }, "invalid log_format"},
		{"threshold above one", func(c *CLIConfig) { c.Matching.FuzzyThreshold = 1.5 }, "fuzzy_threshold"},
		{"negative threshold", func(c *CLIConfig) { c.Matching.RecoveryReuseThreshold = -0.1 }, "recovery_reuse_threshold"},
		{"bad metric", func(c *CLIConfig) { c.Matching.SimilarityMetric = "cosine" }, "similarity_metric"},
		{"bad fallback", func(c *CLIConfig) { c.Matching.NoSummaryFallback = "all" }, "no_summary_fallback"},
		{"zero max bytes", func(c *CLIConfig) { c.Matching.MaxTextBytes = 0 }, "max_text_bytes"},
		{"override without file", func(c *CLIConfig) {
			c.Matching.Overrides = []OverrideRule{{Name: "Andy Lai", DateKeyword: "Aug 7"}}
		}, "overrides[0]"},
		{"postgres without dsn", func(c *CLIConfig) { c.Storage.Driver = StorageDriverPostgres }, "storage.dsn"},
		{"unknown driver", func(c *CLIConfig) { c.Storage.Driver = "mysql" }, "storage.driver"},
		{"short year", func(c *CLIConfig) { c.Listing.DefaultYear = 25 }, "default_year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OTTERMATCH_CONFIG_DIR", dir)

	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error: %v", err)
	}
	if got != dir {
		t.Errorf("ConfigDir() = %v, want %v", got, dir)
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error: %v", err)
	}
	if path != filepath.Join(dir, DefaultConfigFile) {
		t.Errorf("ConfigPath() = %v", path)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OTTERMATCH_CONFIG_DIR", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Matching.FuzzyThreshold != DefaultFuzzyThreshold {
		t.Errorf("FuzzyThreshold = %v", cfg.Matching.FuzzyThreshold)
	}
}

func TestLoadConfigFrom_ExplicitMissingFile(t *testing.T) {
	if _, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadConfig_PartialFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OTTERMATCH_CONFIG_DIR", dir)

	content := `timeout: 90s
output_format: json
matching:
  no_summary_fallback: drain
  overrides:
    - name: Andy Lai
      date_keyword: Aug 7
      file: Andy Lai - 60 Minutes Call(1)
listing:
  default_year: 2024
`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if cfg.Matching.NoSummaryFallback != NoSummaryFallbackDrain {
		t.Errorf("NoSummaryFallback = %v, want drain", cfg.Matching.NoSummaryFallback)
	}
	if cfg.Matching.FuzzyThreshold != DefaultFuzzyThreshold {
		t.Errorf("unset FuzzyThreshold should keep default, got %v", cfg.Matching.FuzzyThreshold)
	}
	if len(cfg.Matching.Overrides) != 1 || cfg.Matching.Overrides[0].File != "Andy Lai - 60 Minutes Call(1)" {
		t.Errorf("Overrides = %+v", cfg.Matching.Overrides)
	}
	if cfg.Listing.DefaultYear != 2024 {
		t.Errorf("DefaultYear = %v, want 2024", cfg.Listing.DefaultYear)
	}
}

func TestLoadConfig_InvalidTimeout(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OTTERMATCH_CONFIG_DIR", dir)
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("timeout: soon\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for invalid timeout")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OTTERMATCH_CONFIG_DIR", t.TempDir())
	t.Setenv("OTTERMATCH_OUTPUT_FORMAT", "yaml")
	t.Setenv("OTTERMATCH_DEBUG", "1")
	t.Setenv("OTTERMATCH_FUZZY_THRESHOLD", "0.9")
	t.Setenv("OTTERMATCH_NO_SUMMARY_FALLBACK", "drain")
	t.Setenv("OTTERMATCH_REDIS_ADDR", "localhost:6379")
	t.Setenv("OTTERMATCH_DEFAULT_YEAR", "2023")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.OutputFormat != OutputFormatYAML {
		t.Errorf("OutputFormat = %v, want yaml", cfg.OutputFormat)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if cfg.Matching.FuzzyThreshold != 0.9 {
		t.Errorf("FuzzyThreshold = %v, want 0.9", cfg.Matching.FuzzyThreshold)
	}
	if cfg.Matching.NoSummaryFallback != NoSummaryFallbackDrain {
		t.Errorf("NoSummaryFallback = %v", cfg.Matching.NoSummaryFallback)
	}
	if !cfg.Redis.Enabled() {
		t.Error("Redis should be enabled")
	}
	if cfg.Listing.DefaultYear != 2023 {
		t.Errorf("DefaultYear = %v", cfg.Listing.DefaultYear)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OTTERMATCH_CONFIG_DIR", dir)

	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Minute
	cfg.Matching.SimilarityMetric = SimilarityJaroWinkler
	cfg.Storage.AutoSave = true

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, DefaultConfigFile))
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config permissions = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if loaded.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v", loaded.Timeout)
	}
	if loaded.Matching.SimilarityMetric != SimilarityJaroWinkler {
		t.Errorf("SimilarityMetric = %v", loaded.Matching.SimilarityMetric)
	}
	if !loaded.Storage.AutoSave {
		t.Error("AutoSave should round-trip")
	}
}

func TestRunsDBPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OTTERMATCH_CONFIG_DIR", dir)

	cfg := DefaultConfig()
	got, err := cfg.RunsDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, DefaultRunsDB) {
		t.Errorf("RunsDBPath() = %v", got)
	}

	cfg.Storage.DSN = "/tmp/custom.db"
	got, err = cfg.RunsDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/custom.db" {
		t.Errorf("RunsDBPath() = %v", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ExpandPath("~/x/y")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "x/y") {
		t.Errorf("ExpandPath = %v", got)
	}
	if got, _ := ExpandPath(""); got != "" {
		t.Errorf("ExpandPath(\"\") = %q", got)
	}
}
