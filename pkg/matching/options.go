package matching

// FallbackMode controls how many name-only events a group pairs sequentially.
type FallbackMode string

const (
	// FallbackOne pairs at most one event without a summary per group.
	FallbackOne FallbackMode = "one"
	// FallbackDrain pairs every event without a summary while files remain.
	FallbackDrain FallbackMode = "drain"
)

// Options tunes reconciliation.
type Options struct {
	FuzzyThreshold          float64
	CompetitiveThreshold    float64
	RecoveryUnusedThreshold float64
	RecoveryReuseThreshold  float64
	ExcerptChars            int
	Metric                  Metric
	NoSummaryFallback       FallbackMode
	Overrides               []Override
	Variations              []NameVariation
}

// DefaultOptions returns the standard thresholds, built-in overrides and
// built-in name variations.
func DefaultOptions() Options {
	return Options{
		FuzzyThreshold:          0.8,
		CompetitiveThreshold:    0.05,
		RecoveryUnusedThreshold: 0.1,
		RecoveryReuseThreshold:  0.3,
		ExcerptChars:            5000,
		Metric:                  MetricLCS,
		NoSummaryFallback:       FallbackOne,
		Overrides:               DefaultOverrides(),
		Variations:              DefaultVariations(),
	}
}
