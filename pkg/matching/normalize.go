// Package matching reconciles listing events with recordings on disk.
//
// Events are grouped by normalized name and each group is paired with the
// file group of the same name, first by transcript corroboration and then
// by listing order. Events left over get a cross-group recovery pass and a
// final fuzzy-name fallback. Every event yields exactly one record, and
// each file is assigned to at most one event.
package matching

import (
	"regexp"
	"strings"
)

var replyPrefix = regexp.MustCompile(`(?i)^Re:\s*`)

// NormalizeName canonicalizes a meeting name for comparison: whitespace
// runs collapse to one space, a leading "Re:" is dropped, "&amp;" becomes
// "&", and the result is trimmed.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	name = replyPrefix.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "&amp;", "&")
	return strings.TrimSpace(name)
}
