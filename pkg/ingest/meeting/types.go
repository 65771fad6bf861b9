// Package meeting holds the listing and file-system side of reconciliation:
// events scraped from the meeting listing page, recordings and transcripts
// found on disk, and the readers that load them.
package meeting

import (
	"sort"
	"strings"
	"time"
)

// Event is one meeting from the scraped listing. Optional fields are empty
// when the listing did not carry them.
type Event struct {
	// Index is the event's position in the source listing.
	Index    int    `json:"index" yaml:"index"`
	Name     string `json:"name" yaml:"name"`
	Date     string `json:"date,omitempty" yaml:"date,omitempty"`
	Time     string `json:"time,omitempty" yaml:"time,omitempty"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Attendee string `json:"attendee,omitempty" yaml:"attendee,omitempty"`
	Summary  string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// HasSummary reports whether the event carries a non-blank summary.
func (e Event) HasSummary() bool {
	return strings.TrimSpace(e.Summary) != ""
}

// FileArtifact is one recording and/or transcript on disk sharing a stem.
type FileArtifact struct {
	// Stem is the filename without extension, including any "(n)" suffix.
	// It identifies the artifact within a run.
	Stem string `json:"base_name" yaml:"base_name"`

	// Group is the stem with any "(n)" suffix stripped.
	Group string `json:"group" yaml:"group"`

	MediaPath string `json:"media_path,omitempty" yaml:"media_path,omitempty"`
	TextPath  string `json:"text_path,omitempty" yaml:"text_path,omitempty"`

	// Sequence is the duplicate marker n; valid only when Numbered is set.
	Sequence int  `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	Numbered bool `json:"numbered" yaml:"numbered"`

	ModTime time.Time `json:"modified" yaml:"modified"`
}

// HasText reports whether the artifact has a transcript file.
func (a FileArtifact) HasText() bool {
	return a.TextPath != ""
}

// HasMedia reports whether the artifact has a recording file.
func (a FileArtifact) HasMedia() bool {
	return a.MediaPath != ""
}

// artifactLess orders unnumbered artifacts first, then by ascending sequence.
func artifactLess(a, b FileArtifact) bool {
	if a.Numbered != b.Numbered {
		return !a.Numbered
	}
	if a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	return a.Stem < b.Stem
}

// SortArtifacts sorts artifacts into group order in place.
func SortArtifacts(artifacts []FileArtifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifactLess(artifacts[i], artifacts[j])
	})
}

// uniqueSequences renumbers sorted artifacts whose duplicate number repeats
// an earlier one, as with "Sync (1)" and "Sync(1)". Each collision takes the
// next number after its predecessor so group order is unchanged. The
// renumbered artifacts are returned.
func uniqueSequences(artifacts []FileArtifact) []FileArtifact {
	var changed []FileArtifact
	prev := 0
	for i := range artifacts {
		a := &artifacts[i]
		if !a.Numbered {
			continue
		}
		if a.Sequence <= prev {
			a.Sequence = prev + 1
			changed = append(changed, *a)
		}
		prev = a.Sequence
	}
	return changed
}

// FileGroup is every artifact sharing one underlying base name, in group order.
type FileGroup struct {
	Name      string         `json:"name" yaml:"name"`
	Artifacts []FileArtifact `json:"artifacts" yaml:"artifacts"`
}

// FileIndex maps group names to file groups.
type FileIndex struct {
	groups map[string]*FileGroup
	keys   []string
	stems  map[string]FileArtifact
}

// NewFileIndex builds an index from artifacts. Artifacts are grouped by
// their Group field and each group is sorted.
func NewFileIndex(artifacts ...FileArtifact) *FileIndex {
	idx := &FileIndex{
		groups: make(map[string]*FileGroup),
		stems:  make(map[string]FileArtifact),
	}
	for _, a := range artifacts {
		g, ok := idx.groups[a.Group]
		if !ok {
			g = &FileGroup{Name: a.Group}
			idx.groups[a.Group] = g
			idx.keys = append(idx.keys, a.Group)
		}
		g.Artifacts = append(g.Artifacts, a)
		idx.stems[a.Stem] = a
	}
	for _, g := range idx.groups {
		SortArtifacts(g.Artifacts)
		for _, a := range uniqueSequences(g.Artifacts) {
			idx.stems[a.Stem] = a
		}
	}
	sort.Strings(idx.keys)
	return idx
}

// Group returns the group with exactly this name.
func (x *FileIndex) Group(name string) (*FileGroup, bool) {
	g, ok := x.groups[name]
	return g, ok
}

// Keys returns group names in lexicographic order.
func (x *FileIndex) Keys() []string {
	out := make([]string, len(x.keys))
	copy(out, x.keys)
	return out
}

// Groups returns all groups in key order.
func (x *FileIndex) Groups() []*FileGroup {
	out := make([]*FileGroup, 0, len(x.keys))
	for _, k := range x.keys {
		out = append(out, x.groups[k])
	}
	return out
}

// Artifact looks up an artifact by its full stem.
func (x *FileIndex) Artifact(stem string) (FileArtifact, bool) {
	a, ok := x.stems[stem]
	return a, ok
}

// Len returns the number of groups.
func (x *FileIndex) Len() int {
	return len(x.keys)
}

// ArtifactCount returns the number of artifacts across all groups.
func (x *FileIndex) ArtifactCount() int {
	return len(x.stems)
}
