package matching

import (
	"sort"

	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
)

// Pairing binds one event, by its position in the run's event slice, to an
// artifact.
type Pairing struct {
	EventPos int
	Artifact meeting.FileArtifact
	Method   Method
	Score    float64
}

// GroupEvent is an event together with its position in the run.
type GroupEvent struct {
	Pos   int
	Event meeting.Event
}

// Assigner pairs the events of one name group with the artifacts of the
// matching file group.
type Assigner struct {
	content     ContentScorer
	competitive float64
	fallback    FallbackMode
}

// NewAssigner creates an assigner. Pairs from content scoring are accepted
// only above competitive.
func NewAssigner(content ContentScorer, competitive float64, fallback FallbackMode) *Assigner {
	if fallback != FallbackDrain {
		fallback = FallbackOne
	}
	return &Assigner{
		content:     content,
		competitive: competitive,
		fallback:    fallback,
	}
}

type scoredPair struct {
	event    int
	artifact int
	score    float64
}

// AssignGroup pairs events with the group's artifacts that are not in used.
// It reads used but never modifies it; the caller records the returned
// pairings. Events missing from the result stay unpaired.
//
// Passes run in order, each over what earlier passes left:
//  1. summarized events by best transcript corroboration,
//  2. remaining summarized events by listing order,
//  3. events without a summary by listing order, one per call unless the
//     fallback mode is drain.
func (a *Assigner) AssignGroup(events []GroupEvent, artifacts []meeting.FileArtifact, used UsedSet) []Pairing {
	var available []meeting.FileArtifact
	for _, f := range artifacts {
		if !used.Has(f.Stem) {
			available = append(available, f)
		}
	}
	meeting.SortArtifacts(available)

	var summarized, bare []int
	for i, ge := range events {
		if ge.Event.HasSummary() {
			summarized = append(summarized, i)
		} else {
			bare = append(bare, i)
		}
	}

	pairedEvent := make(map[int]bool)
	pairedFile := make(map[int]bool)
	var out []Pairing

	take := func(ev, file int, method Method, score float64) {
		pairedEvent[ev] = true
		pairedFile[file] = true
		out = append(out, Pairing{
			EventPos: events[ev].Pos,
			Artifact: available[file],
			Method:   method,
			Score:    score,
		})
	}

	nextFile := func() (int, bool) {
		for i := range available {
			if !pairedFile[i] {
				return i, true
			}
		}
		return 0, false
	}

	// Pass 1: per-artifact best event, then greedy by descending score.
	if len(summarized) > 0 && len(available) > 0 {
		best := make([]*scoredPair, len(available))
		for _, ev := range summarized {
			for fi := range available {
				score := a.content.Score(events[ev].Event, available[fi])
				if best[fi] == nil || score > best[fi].score {
					best[fi] = &scoredPair{event: ev, artifact: fi, score: score}
				}
			}
		}

		candidates := make([]scoredPair, 0, len(best))
		for _, p := range best {
			candidates = append(candidates, *p)
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})

		for _, c := range candidates {
			if pairedEvent[c.event] || pairedFile[c.artifact] {
				continue
			}
			if c.score > a.competitive {
				take(c.event, c.artifact, MethodValidated, c.score)
			}
		}
	}

	// Pass 2: summarized events claim files in order.
	for _, ev := range summarized {
		if pairedEvent[ev] {
			continue
		}
		fi, ok := nextFile()
		if !ok {
			break
		}
		take(ev, fi, MethodSequential, 0)
	}

	// Pass 3: events without a summary.
	for _, ev := range bare {
		fi, ok := nextFile()
		if !ok {
			break
		}
		take(ev, fi, MethodNameOnly, 0)
		if a.fallback == FallbackOne {
			break
		}
	}

	return out
}
