package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
)

// Content scoring limits.
const (
	summaryTokenChars  = 300
	summaryPrefixChars = 150
	openingChars   = 50
	maxWordChecks      = 15
	maxPhraseChecks    = 10
	minTokenLen        = 4
	minPhraseLen       = 7
	wordWeight         = 0.4
	phraseWeight       = 0.6
	prefixBonus        = 0.2
	tokenPunctuation   = ".,!?;:()[]{}\"'-"
)

// stopwords are function words ignored when matching summary tokens.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"may": {}, "might": {}, "can": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {}, "me": {},
	"him": {}, "her": {}, "us": {}, "them": {},
}

// TextSource loads transcript text. ok is false when the text is missing
// or unreadable.
type TextSource interface {
	ReadText(path string) (text string, ok bool)
}

// ContentScorer rates how plausibly an artifact's transcript belongs to an event.
type ContentScorer interface {
	Score(ev meeting.Event, a meeting.FileArtifact) float64
}

// Validator scores summary-to-transcript overlap.
type Validator struct {
	texts TextSource
}

// NewValidator creates a validator reading transcripts from texts.
func NewValidator(texts TextSource) *Validator {
	return &Validator{texts: texts}
}

// Score returns a corroboration score in [0,1]. It is 0 when the event has
// no summary or the artifact's transcript cannot be read.
func (v *Validator) Score(ev meeting.Event, a meeting.FileArtifact) float64 {
	if !ev.HasSummary() || !a.HasText() {
		return 0
	}
	text, ok := v.texts.ReadText(a.TextPath)
	if !ok {
		return 0
	}
	return ScoreContent(ev.Summary, text)
}

// ScoreContent scores how well transcript corroborates summary. Word hits
// count for 40% and adjacent-word phrase hits for 60%; a verbatim match of
// the summary opening adds a 0.2 bonus.
func ScoreContent(summary, transcript string) float64 {
	summary = strings.ToLower(summary)
	transcript = strings.ToLower(transcript)

	tokens := summaryTokens(prefix(summary, summaryTokenChars))
	phrases := tokenPhrases(tokens)

	var wordScore, phraseScore float64
	if len(tokens) > 0 {
		checks := tokens[:min(len(tokens), maxWordChecks)]
		wordScore = float64(countContained(checks, transcript)) / float64(len(checks))
	}
	if len(phrases) > 0 {
		checks := phrases[:min(len(phrases), maxPhraseChecks)]
		phraseScore = float64(countContained(checks, transcript)) / float64(len(checks))
	}

	score := wordWeight*wordScore + phraseWeight*phraseScore

	opening := prefix(stripPunctuation(prefix(summary, summaryPrefixChars)), openingChars)
	if strings.Contains(stripPunctuation(transcript), opening) {
		score = min(score+prefixBonus, 1.0)
	}
	return score
}

// summaryTokens splits on whitespace, trims surrounding punctuation, and
// keeps tokens of four or more characters that are not stopwords.
func summaryTokens(s string) []string {
	var out []string
	for _, field := range strings.Fields(s) {
		tok := strings.Trim(field, tokenPunctuation)
		if utf8.RuneCountInString(tok) < minTokenLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func tokenPhrases(tokens []string) []string {
	var out []string
	for i := 0; i+1 < len(tokens); i++ {
		phrase := tokens[i] + " " + tokens[i+1]
		if utf8.RuneCountInString(phrase) >= minPhraseLen {
			out = append(out, phrase)
		}
	}
	return out
}

func countContained(checks []string, text string) int {
	n := 0
	for _, p := range checks {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}

// stripPunctuation replaces every rune that is neither a word character
// nor whitespace with a space, keeping rune positions aligned.
func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	return meeting.Excerpt(s, n)
}
