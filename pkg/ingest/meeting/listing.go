package meeting

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Attribute values identifying parts of the saved listing page.
const (
	dateHeaderClass   = "font-semibold"
	summaryClass      = "text-sm"
	cardTestID        = "conversation-card"
	titleLinkTestID   = "conversation-title-link"
	subtitleTestID    = "subtitle-text"
	subtitleSeparator = "•"
)

var (
	durationPattern = regexp.MustCompile(`(?i)\d+\s*(?:min|sec|h|hour)`)
	showLessPattern = regexp.MustCompile(`(?i)\s*Show less\s*$`)
)

// ListingOptions controls listing parsing.
type ListingOptions struct {
	// DefaultYear is appended to date headers without a year.
	DefaultYear int
}

// ParseListing extracts events from a saved meeting listing page. Date
// headers partition the page; each conversation card under a header becomes
// one event. Cards without a title, and cards before the first usable date
// header, are skipped.
func ParseListing(r io.Reader, opts ListingOptions) ([]Event, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing listing html: %w", err)
	}

	p := &listingParser{opts: opts}
	p.walk(doc)
	return p.events, nil
}

type listingParser struct {
	opts        ListingOptions
	currentDate string
	events      []Event
}

func (p *listingParser) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch {
		case n.Data == "div" && attr(n, "class") == dateHeaderClass:
			p.dateHeader(textContent(n))
			return
		case attr(n, "data-testid") == cardTestID:
			p.card(n)
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

func (p *listingParser) dateHeader(text string) {
	date, ok := WithDefaultYear(text, p.opts.DefaultYear)
	if ok {
		p.currentDate = date
	}
	// An unusable header keeps the previous section's date.
}

func (p *listingParser) card(n *html.Node) {
	if p.currentDate == "" {
		return
	}

	title := findFirst(n, func(c *html.Node) bool {
		return c.Data == "a" && attr(c, "data-testid") == titleLinkTestID
	})
	if title == nil {
		return
	}
	name := strings.TrimSpace(textContent(title))
	if name == "" {
		return
	}

	ev := Event{
		Index: len(p.events),
		Name:  name,
		Date:  p.currentDate,
	}

	if sub := findFirst(n, func(c *html.Node) bool {
		return attr(c, "data-testid") == subtitleTestID
	}); sub != nil {
		ev.Time, ev.Duration, ev.Attendee = splitSubtitle(textContent(sub))
	}

	if sum := findFirst(n, func(c *html.Node) bool {
		return c.Data == "div" && attr(c, "class") == summaryClass
	}); sum != nil {
		summary := strings.TrimSpace(textContent(sum))
		ev.Summary = showLessPattern.ReplaceAllString(summary, "")
	}

	p.events = append(p.events, ev)
}

// splitSubtitle splits "10:00 AM • 45 min • Andy Lai" into its parts. The
// second part is a duration only when it looks like one; otherwise it is
// the attendee.
func splitSubtitle(subtitle string) (timeOfDay, duration, attendee string) {
	parts := strings.Split(strings.TrimSpace(subtitle), subtitleSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	timeOfDay = parts[0]
	if len(parts) < 2 {
		return timeOfDay, "", ""
	}
	if durationPattern.MatchString(parts[1]) {
		duration = parts[1]
		if len(parts) > 2 {
			attendee = parts[2]
		}
		return timeOfDay, duration, attendee
	}
	return timeOfDay, "", parts[1]
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// textContent concatenates the text below n. Entities are already decoded
// by the HTML parser.
func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(n)
	return b.String()
}
