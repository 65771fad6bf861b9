package matching

import (
	"time"

	"github.com/google/uuid"
)

// Run describes one reconciliation.
type Run struct {
	ID          string    `json:"id" yaml:"id"`
	ListingPath string    `json:"listing_path,omitempty" yaml:"listing_path,omitempty"`
	Directory   string    `json:"directory,omitempty" yaml:"directory,omitempty"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Stats       Stats     `json:"stats" yaml:"stats"`
}

// NewRun starts a run with a fresh ID.
func NewRun(listingPath, directory string) *Run {
	return &Run{
		ID:          uuid.NewString(),
		ListingPath: listingPath,
		Directory:   directory,
		StartedAt:   time.Now().UTC(),
	}
}

// Finish stamps the end time and stats.
func (r *Run) Finish(stats Stats) {
	r.FinishedAt = time.Now().UTC()
	r.Stats = stats
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
