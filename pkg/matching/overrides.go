package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
)

// Override pins an event to a known artifact. It applies when the event's
// normalized name equals Name (ignoring case) and its date contains
// DateKeyword as a whole token. File is the artifact's full stem.
type Override struct {
	Name        string `json:"name" yaml:"name"`
	DateKeyword string `json:"date_keyword" yaml:"date_keyword"`
	File        string `json:"file" yaml:"file"`
}

// DefaultOverrides returns the built-in override table.
func DefaultOverrides() []Override {
	return []Override{
		{Name: "Thursday Catch up", DateKeyword: "Nov 20", File: "Thursday Catch up"},
		{Name: "Andy Lai", DateKeyword: "Aug 7", File: "Andy Lai - 60 Minutes Call(1)"},
	}
}

// Matches reports whether the override applies to ev.
func (o Override) Matches(ev meeting.Event) bool {
	if o.Name == "" || o.DateKeyword == "" {
		return false
	}
	if !strings.EqualFold(NormalizeName(ev.Name), NormalizeName(o.Name)) {
		return false
	}
	return containsKeyword(ev.Date, o.DateKeyword)
}

// FindOverride returns the first override that applies to ev.
func FindOverride(overrides []Override, ev meeting.Event) (Override, bool) {
	for _, o := range overrides {
		if o.Matches(ev) {
			return o, true
		}
	}
	return Override{}, false
}

// containsKeyword finds kw in s where it is not glued to a neighbouring
// digit or letter, so "Aug 1" does not match "Aug 12".
func containsKeyword(s, kw string) bool {
	s = strings.ToLower(s)
	kw = strings.ToLower(strings.TrimSpace(kw))
	if kw == "" {
		return false
	}
	for from := 0; from <= len(s)-len(kw); {
		i := strings.Index(s[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
