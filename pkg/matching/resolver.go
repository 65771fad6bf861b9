package matching

import (
	"strings"

	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
)

// NameVariation rewrites a substring of an event name to reach a file group
// exported under a different spelling.
type NameVariation struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// DefaultVariations returns the built-in rewrites.
func DefaultVariations() []NameVariation {
	return []NameVariation{
		{From: " - 60 Minutes Call", To: ""},
		{From: "60 Minutes Call", To: "60 Minute Call"},
		{From: "60 Minutes Call", To: "60 Min Call"},
		{From: "Open working session", To: "Open work session - no agenda"},
		{From: "Open work session - no agenda", To: "Open working session"},
	}
}

// Apply rewrites name, reporting false when From does not occur.
func (v NameVariation) Apply(name string) (string, bool) {
	if v.From == "" || !strings.Contains(name, v.From) {
		return "", false
	}
	return strings.ReplaceAll(name, v.From, v.To), true
}

// GroupResolver finds file groups for event names.
type GroupResolver struct {
	index      *meeting.FileIndex
	scorer     *Scorer
	threshold  float64
	variations []NameVariation
}

// NewGroupResolver creates a resolver over index.
func NewGroupResolver(index *meeting.FileIndex, scorer *Scorer, threshold float64, variations []NameVariation) *GroupResolver {
	return &GroupResolver{
		index:      index,
		scorer:     scorer,
		threshold:  threshold,
		variations: variations,
	}
}

// GroupFor returns the group whose key equals the normalized name, or
// failing that the best fuzzy match at or above the threshold.
func (g *GroupResolver) GroupFor(name string) (*meeting.FileGroup, float64, bool) {
	if grp, ok := g.index.Group(NormalizeName(name)); ok {
		return grp, 1.0, true
	}
	return g.FuzzyGroup(name)
}

// FuzzyGroup returns the best fuzzy group match at or above the threshold.
func (g *GroupResolver) FuzzyGroup(name string) (*meeting.FileGroup, float64, bool) {
	best, ok := g.scorer.FindBestMatch(name, g.index.Keys(), g.threshold)
	if !ok {
		return nil, best.Score, false
	}
	grp, ok := g.index.Group(best.Candidate)
	return grp, best.Score, ok
}

// RecoveryCandidates collects artifacts reachable from name by exact
// lookup, fuzzy lookup and each name variation, in that order. An artifact
// reachable by several routes appears once.
func (g *GroupResolver) RecoveryCandidates(name string) []meeting.FileArtifact {
	normalized := NormalizeName(name)
	seen := make(map[string]struct{})
	var out []meeting.FileArtifact

	add := func(key string) {
		grp, ok := g.index.Group(key)
		if !ok {
			return
		}
		for _, a := range grp.Artifacts {
			if _, dup := seen[a.Stem]; dup {
				continue
			}
			seen[a.Stem] = struct{}{}
			out = append(out, a)
		}
	}

	add(normalized)

	if best, ok := g.scorer.FindBestMatch(normalized, g.index.Keys(), g.threshold); ok && best.Candidate != normalized {
		add(best.Candidate)
	}

	for _, v := range g.variations {
		rewritten, ok := v.Apply(name)
		if !ok {
			continue
		}
		key := NormalizeName(rewritten)
		if key == normalized {
			continue
		}
		add(key)
	}
	return out
}
