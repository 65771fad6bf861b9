package matching

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
)

// mapTexts serves transcripts from memory.
type mapTexts map[string]string

func (m mapTexts) ReadText(path string) (string, bool) {
	s, ok := m[path]
	return s, ok
}

func TestScoreContent(t *testing.T) {
	t.Run("roadmap discussion", func(t *testing.T) {
		got := ScoreContent("We discussed the Q3 roadmap and budget",
			"...discussed the Q3 roadmap and budget overview...")
		assert.InDelta(t, 0.4, got, 1e-9)
		assert.Greater(t, got, 0.3)
	})

	t.Run("opening bonus capped", func(t *testing.T) {
		got := ScoreContent("Budget planning for next quarter",
			"Budget planning for next quarter was the only topic.")
		assert.InDelta(t, 1.0, got, 1e-9)
	})

	t.Run("unrelated transcript", func(t *testing.T) {
		got := ScoreContent("Hiring plans for the platform team",
			"we reviewed marketing spend and the offsite")
		assert.Equal(t, 0.0, got)
	})

	t.Run("stopwords and short tokens only", func(t *testing.T) {
		got := ScoreContent("we and the", "nothing here")
		assert.Equal(t, 0.0, got)
	})

	t.Run("case insensitive", func(t *testing.T) {
		got := ScoreContent("ROADMAP BUDGET", "the roadmap budget")
		assert.InDelta(t, 1.0, got, 1e-9)
	})
}

// numbered returns tokNN words for lo..hi joined by sep.
func numbered(lo, hi int, sep string) string {
	words := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		words = append(words, fmt.Sprintf("tok%02d", i))
	}
	return strings.Join(words, sep)
}

func TestScoreContent_Limits(t *testing.T) {
	long := numbered(1, 30, " ")
	filler := strings.Repeat("the ", 75)
	x50 := strings.Repeat("x", 50)

	tests := []struct {
		name       string
		summary    string
		transcript string
		want       float64
	}{
		{"later tokens ignored", long, numbered(16, 30, " "), 0},
		{"first fifteen tokens", long, numbered(1, 15, ", "), 0.4},
		{"later phrases ignored", long, numbered(11, 30, " "), wordWeight * 5 / 15},
		{"tokens past 300 chars ignored", filler + "roadmap budget", "roadmap budget", 0},
		{"tokens inside 300 chars", "roadmap budget " + filler, "roadmap budget", 1.0},
		{"opening punctuation becomes spaces", "Kick-off: hiring", "kick off  hiring", 0.4},
		{"opening spacing must line up", "Kick-off: hiring", "kick off hiring", 0.2},
		{"opening limited to 50 chars", x50 + " yyyyyy", x50 + " zzzz", 0.4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, ScoreContent(tc.summary, tc.transcript), 1e-9)
		})
	}
}

func TestSummaryTokens(t *testing.T) {
	got := summaryTokens(`we discussed "roadmap", (budget) and q3 items!`)
	assert.Equal(t, []string{"discussed", "roadmap", "budget", "items"}, got)
}

func TestTokenPhrases(t *testing.T) {
	assert.Equal(t, []string{"alpha beta", "beta gamma"}, tokenPhrases([]string{"alpha", "beta", "gamma"}))
	assert.Empty(t, tokenPhrases([]string{"alpha"}))
}

func TestValidator_Score(t *testing.T) {
	texts := mapTexts{"/t/weekly.txt": "we discussed the roadmap in depth"}
	v := NewValidator(texts)

	withText := meeting.FileArtifact{Stem: "Weekly", TextPath: "/t/weekly.txt"}
	missing := meeting.FileArtifact{Stem: "Gone", TextPath: "/t/gone.txt"}
	mediaOnly := meeting.FileArtifact{Stem: "Media", MediaPath: "/t/media.mp3"}

	ev := meeting.Event{Name: "Weekly", Summary: "Roadmap discussed"}

	assert.Greater(t, v.Score(ev, withText), 0.0)
	assert.Equal(t, 0.0, v.Score(meeting.Event{Name: "Weekly"}, withText))
	assert.Equal(t, 0.0, v.Score(ev, missing))
	assert.Equal(t, 0.0, v.Score(ev, mediaOnly))
}
