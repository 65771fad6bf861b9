package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
)

func stems(artifacts []meeting.FileArtifact) []string {
	out := make([]string, len(artifacts))
	for i, a := range artifacts {
		out[i] = a.Stem
	}
	return out
}

func TestNameVariation_Apply(t *testing.T) {
	got, ok := NameVariation{From: "60 Minutes Call", To: "60 Min Call"}.Apply("Andy Lai - 60 Minutes Call")
	require.True(t, ok)
	assert.Equal(t, "Andy Lai - 60 Min Call", got)

	_, ok = NameVariation{From: "60 Minutes Call", To: "x"}.Apply("Weekly Sync")
	assert.False(t, ok)

	_, ok = NameVariation{}.Apply("Weekly Sync")
	assert.False(t, ok)
}

func TestGroupResolver_GroupFor(t *testing.T) {
	idx := meeting.NewFileIndex(artifact("Budget Review", 0), artifact("Weekly Sync", 0))
	r := NewGroupResolver(idx, NewScorer(MetricLCS), 0.8, nil)

	g, score, ok := r.GroupFor("Re: Budget  Review")
	require.True(t, ok)
	assert.Equal(t, "Budget Review", g.Name)
	assert.Equal(t, 1.0, score)

	g, score, ok = r.GroupFor("Weekly Sync Extended")
	require.True(t, ok)
	assert.Equal(t, "Weekly Sync", g.Name)
	assert.GreaterOrEqual(t, score, ContainmentFloor)

	_, _, ok = r.GroupFor("Project Kickoff")
	assert.False(t, ok)
}

func TestGroupResolver_RecoveryCandidates(t *testing.T) {
	idx := meeting.NewFileIndex(
		artifact("Andy Lai - 60 Minutes Call", 0),
		artifact("Andy Lai - 60 Minutes Call", 1),
		artifact("Andy Lai - 60 Minute Call", 0),
		artifact("Andy Lai", 0),
		artifact("Weekly Sync", 0),
	)
	r := NewGroupResolver(idx, NewScorer(MetricLCS), 0.8, DefaultVariations())

	got := r.RecoveryCandidates("Andy Lai - 60 Minutes Call")
	assert.Equal(t, []string{
		"Andy Lai - 60 Minutes Call",
		"Andy Lai - 60 Minutes Call (1)",
		"Andy Lai",
		"Andy Lai - 60 Minute Call",
	}, stems(got))

	assert.Empty(t, r.RecoveryCandidates("Project Kickoff"))
}
