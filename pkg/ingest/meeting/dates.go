package meeting

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	yearPattern     = regexp.MustCompile(`\b(\d{4})\b`)
	monthDayPattern = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\b`)
	hasYearPattern  = regexp.MustCompile(`\d{4}`)
)

var monthByAbbrev = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// ParseEventDate parses listing dates such as "Thursday, Aug 7, 2025" to
// midday UTC on that day. It returns false when year, month or day is
// missing or the day does not exist in that month.
func ParseEventDate(s string) (time.Time, bool) {
	ym := yearPattern.FindStringSubmatch(s)
	if ym == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(ym[1])

	md := monthDayPattern.FindStringSubmatch(s)
	if md == nil {
		return time.Time{}, false
	}
	month := monthByAbbrev[strings.ToLower(md[1])]
	day, _ := strconv.Atoi(md[2])

	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// WithDefaultYear appends ", year" to a date header that has no 4-digit year.
// Headers of five characters or fewer are not treated as dates and come
// back unchanged with ok=false.
func WithDefaultYear(header string, year int) (string, bool) {
	header = strings.TrimSpace(header)
	if hasYearPattern.MatchString(header) {
		return header, true
	}
	if utf8.RuneCountInString(header) <= 5 {
		return header, false
	}
	if !strings.HasSuffix(header, ",") {
		header += ","
	}
	return header + " " + strconv.Itoa(year), true
}
