// Package fathom lists recorded meetings from the Fathom API and exports
// them into the recording directory layout that ottermatch indexes.
package fathom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/otherjamesbrown/ottermatch/pkg/buildinfo"
	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
)

const (
	defaultBaseURL     = "https://api.fathom.video/api/v1"
	defaultHTTPTimeout = 60 * time.Second
	defaultPageSize    = 50

	// Retry defaults for throttled or unavailable responses.
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff        = 10 * time.Second
	DefaultBackoffMultiplier = 2.0

	stageList = "fathom.list"
)

// Config describes the Fathom client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	UserAgent  string
	PageSize   int
	HTTPClient *http.Client

	// MaxRetries is the number of retries after the first attempt. Zero
	// means DefaultMaxRetries; a negative value disables retries.
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// Client wraps the Fathom meetings API.
type Client struct {
	apiKey    string
	userAgent string
	pageSize  int
	baseURL   *url.URL
	http      *http.Client
	logger    logging.Logger

	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
}

// New creates a Client from cfg.
func New(cfg Config, logger logging.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("fathom: api key is required: %w", pferrors.ErrUnauthorized)
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("fathom: parse base url: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("fathom: base url %q must be absolute: %w", base, pferrors.ErrValidation)
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = buildinfo.UserAgent("ottermatch")
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	c := &Client{
		apiKey:            apiKey,
		userAgent:         userAgent,
		pageSize:          pageSize,
		baseURL:           baseURL,
		http:              httpClient,
		logger:            logger.With(logging.F("component", "fathom")),
		maxRetries:        cfg.MaxRetries,
		initialBackoff:    cfg.InitialBackoff,
		maxBackoff:        cfg.MaxBackoff,
		backoffMultiplier: cfg.BackoffMultiplier,
	}
	switch {
	case c.maxRetries == 0:
		c.maxRetries = DefaultMaxRetries
	case c.maxRetries < 0:
		c.maxRetries = 0
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = DefaultInitialBackoff
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = DefaultMaxBackoff
	}
	if c.backoffMultiplier < 1 {
		c.backoffMultiplier = DefaultBackoffMultiplier
	}
	return c, nil
}

// TranscriptEntry is one spoken line of a meeting transcript.
type TranscriptEntry struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
}

// Meeting is a recorded meeting as returned by the API. Participants and
// action items are kept as raw JSON since their shape is not relied upon.
type Meeting struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title,omitempty"`
	MeetingTitle       string            `json:"meeting_title,omitempty"`
	CreatedAt          string            `json:"created_at,omitempty"`
	ScheduledStartTime string            `json:"scheduled_start_time,omitempty"`
	DurationMinutes    float64           `json:"duration_minutes,omitempty"`
	ShareURL           string            `json:"share_url,omitempty"`
	URL                string            `json:"url,omitempty"`
	Participants       []json.RawMessage `json:"participants,omitempty"`
	DefaultSummary     string            `json:"default_summary,omitempty"`
	ActionItems        []json.RawMessage `json:"action_items,omitempty"`
	Transcript         []TranscriptEntry `json:"transcript,omitempty"`
}

// UnmarshalJSON accepts numeric meeting IDs as well as strings.
func (m *Meeting) UnmarshalJSON(data []byte) error {
	type plain Meeting
	aux := struct {
		ID json.RawMessage `json:"id"`
		*plain
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.ID = ""
	if len(aux.ID) == 0 || string(aux.ID) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.ID, &s); err == nil {
		m.ID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(aux.ID, &n); err != nil {
		return fmt.Errorf("fathom: meeting id: %w", err)
	}
	m.ID = n.String()
	return nil
}

// DisplayTitle returns the meeting title, falling back to "Untitled".
func (m Meeting) DisplayTitle() string {
	if t := strings.TrimSpace(m.Title); t != "" {
		return t
	}
	if t := strings.TrimSpace(m.MeetingTitle); t != "" {
		return t
	}
	return "Untitled"
}

// Link returns the share URL, or the meeting URL when there is none.
func (m Meeting) Link() string {
	if m.ShareURL != "" {
		return m.ShareURL
	}
	return m.URL
}

// Created parses CreatedAt.
func (m Meeting) Created() (time.Time, bool) {
	if m.CreatedAt == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, m.CreatedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type meetingsPage struct {
	Items      []Meeting `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// ListOptions bounds a listing.
type ListOptions struct {
	// Limit stops after this many meetings. Zero means all.
	Limit int
}

// ListMeetings returns every meeting, following next_cursor pagination.
func (c *Client) ListMeetings(ctx context.Context, opts ListOptions) ([]Meeting, error) {
	var (
		out    []Meeting
		cursor string
		pages  int
	)
	for {
		page, err := c.fetchPageWithRetry(ctx, cursor)
		if err != nil {
			return out, err
		}
		pages++
		out = append(out, page.Items...)
		c.logger.Debug("Fetched page",
			logging.F("page", pages),
			logging.F("items", len(page.Items)),
			logging.F("total", len(out)),
		)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			return out[:opts.Limit], nil
		}
		if page.NextCursor == "" || page.NextCursor == cursor || len(page.Items) == 0 {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Client) fetchPageWithRetry(ctx context.Context, cursor string) (*meetingsPage, error) {
	backoff := c.initialBackoff
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		page, err := c.fetchPage(ctx, cursor)
		if err == nil {
			return page, nil
		}
		lastErr = pferrors.ClassifyError(err, stageList)
		if !pferrors.IsErrorRetryable(lastErr) || ctx.Err() != nil || attempt == c.maxRetries {
			break
		}

		c.logger.Warn("Retrying request",
			logging.F("attempt", attempt+1),
			logging.F("backoff", backoff.String()),
			logging.Err(err),
		)
		select {
		case <-ctx.Done():
			return nil, pferrors.ClassifyError(ctx.Err(), stageList)
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * c.backoffMultiplier)
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
	return nil, lastErr
}

func (c *Client) fetchPage(ctx context.Context, cursor string) (*meetingsPage, error) {
	endpoint := c.baseURL.JoinPath("meetings")
	q := endpoint.Query()
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("include_transcript", "true")
	if cursor != "" {
		q.Set("next_cursor", cursor)
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fathom: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fathom: list meetings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var page meetingsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("fathom: parse meetings response: %w", err)
	}
	return &page, nil
}

// StatusError is a non-200 API response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("fathom: unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps auth and lookup failures onto the shared sentinels.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pferrors.ErrUnauthorized
	case http.StatusNotFound:
		return pferrors.ErrNotFound
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
