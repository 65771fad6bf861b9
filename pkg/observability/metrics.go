// Package observability provides metrics and tracing for reconciliation runs.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event outcomes.
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
)

// MatchMetrics holds the Prometheus metrics for a reconciliation run.
type MatchMetrics struct {
	EventsTotal         *prometheus.CounterVec
	MatchesTotal        *prometheus.CounterVec
	ValidationScore     prometheus.Histogram
	RunSeconds          prometheus.Histogram
	FileGroups          prometheus.Gauge
	ListingEvents       prometheus.Gauge
	OverrideMissesTotal prometheus.Counter
}

// NewMatchMetrics creates a new set of metrics registered on reg.
func NewMatchMetrics(reg prometheus.Registerer) *MatchMetrics {
	factory := promauto.With(reg)

	return &MatchMetrics{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ottermatch_events_total",
				Help: "Listing events processed, by outcome",
			},
			[]string{"outcome"},
		),
		MatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ottermatch_matches_total",
				Help: "Events paired with a file, by match method",
			},
			[]string{"method"},
		),
		ValidationScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ottermatch_validation_score",
				Help:    "Content validation scores computed during assignment",
				Buckets: []float64{0, 0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),
		RunSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ottermatch_run_seconds",
				Help:    "Wall time of a reconciliation run",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		FileGroups: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ottermatch_file_groups",
				Help: "File groups in the index of the last run",
			},
		),
		ListingEvents: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ottermatch_listing_events",
				Help: "Events in the listing of the last run",
			},
		),
		OverrideMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ottermatch_override_misses_total",
				Help: "Override rules whose target file was missing or already used",
			},
		),
	}
}

// RecordEvent counts one emitted record.
func (m *MatchMetrics) RecordEvent(matched bool, method string) {
	if m == nil {
		return
	}
	if !matched {
		m.EventsTotal.WithLabelValues(OutcomeUnmatched).Inc()
		return
	}
	m.EventsTotal.WithLabelValues(OutcomeMatched).Inc()
	m.MatchesTotal.WithLabelValues(method).Inc()
}

// RecordValidationScore observes a content validation score.
func (m *MatchMetrics) RecordValidationScore(score float64) {
	if m == nil {
		return
	}
	m.ValidationScore.Observe(score)
}

// RecordOverrideMiss counts an override that could not be applied.
func (m *MatchMetrics) RecordOverrideMiss() {
	if m == nil {
		return
	}
	m.OverrideMissesTotal.Inc()
}

// RecordInputs sets the input size gauges.
func (m *MatchMetrics) RecordInputs(events, groups int) {
	if m == nil {
		return
	}
	m.ListingEvents.Set(float64(events))
	m.FileGroups.Set(float64(groups))
}

// RecordRun observes the duration of a completed run.
func (m *MatchMetrics) RecordRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunSeconds.Observe(d.Seconds())
}

// WriteTextfile writes every metric gathered by g to path in the Prometheus
// text exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
