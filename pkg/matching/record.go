package matching

import (
	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
)

// Method records which stage paired an event with its file.
type Method string

const (
	MethodNone          Method = ""
	MethodOverride      Method = "override"
	MethodValidated     Method = "validated"
	MethodSequential    Method = "sequential"
	MethodNameOnly      Method = "name_only"
	MethodRecovery      Method = "recovery"
	MethodFuzzyFallback Method = "fuzzy_fallback"
)

// AllMethods lists the match methods in pipeline order.
var AllMethods = []Method{
	MethodOverride,
	MethodValidated,
	MethodSequential,
	MethodNameOnly,
	MethodRecovery,
	MethodFuzzyFallback,
}

// MatchedRecord is the reconciled view of one listing event. File is nil
// when no recording was found.
type MatchedRecord struct {
	ID               int                   `json:"id" yaml:"id"`
	Name             string                `json:"name" yaml:"name"`
	Time             string                `json:"time,omitempty" yaml:"time,omitempty"`
	Duration         string                `json:"duration,omitempty" yaml:"duration,omitempty"`
	Attendee         string                `json:"attendee,omitempty" yaml:"attendee,omitempty"`
	Summary          string                `json:"summary,omitempty" yaml:"summary,omitempty"`
	Date             string                `json:"date,omitempty" yaml:"date,omitempty"`
	EventDate        string                `json:"event_date,omitempty" yaml:"event_date,omitempty"`
	HasRecording     bool                  `json:"has_recording" yaml:"has_recording"`
	File             *meeting.FileArtifact `json:"file" yaml:"file"`
	TranscriptSearch string                `json:"transcript_search,omitempty" yaml:"transcript_search,omitempty"`
	MatchMethod      Method                `json:"match_method,omitempty" yaml:"match_method,omitempty"`
	MatchScore       float64               `json:"match_score,omitempty" yaml:"match_score,omitempty"`
}

// Stats summarizes a run's records.
type Stats struct {
	Total            int            `json:"total" yaml:"total"`
	WithRecording    int            `json:"with_recording" yaml:"with_recording"`
	WithoutRecording int            `json:"without_recording" yaml:"without_recording"`
	ByMethod         map[Method]int `json:"by_method" yaml:"by_method"`
}

// ComputeStats tallies records.
func ComputeStats(records []MatchedRecord) Stats {
	s := Stats{ByMethod: make(map[Method]int)}
	for _, r := range records {
		s.Total++
		if r.HasRecording {
			s.WithRecording++
			s.ByMethod[r.MatchMethod]++
		} else {
			s.WithoutRecording++
		}
	}
	return s
}

// Unmatched returns the records without a recording.
func Unmatched(records []MatchedRecord) []MatchedRecord {
	var out []MatchedRecord
	for _, r := range records {
		if !r.HasRecording {
			out = append(out, r)
		}
	}
	return out
}
