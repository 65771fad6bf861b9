package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/ottermatch/config"
	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/fathom"
	"github.com/otherjamesbrown/ottermatch/pkg/ingest/storage"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
	"github.com/otherjamesbrown/ottermatch/pkg/matching"
)

func testConfig() *config.CLIConfig {
	cfg := config.DefaultConfig()
	cfg.Listing.DefaultYear = 2025
	return cfg
}

func loaderFor(cfg *config.CLIConfig) ConfigLoader {
	return func() (*config.CLIConfig, error) { return cfg, nil }
}

func nopLogger(*config.CLIConfig) logging.Logger {
	return logging.NewNopLogger()
}

func listingCard(title, subtitle, summary string) string {
	var b strings.Builder
	b.WriteString(`<div role="link" data-testid="conversation-card"><div><div>`)
	b.WriteString(`<a href="/u/1" data-testid="conversation-title-link">` + title + `</a>`)
	if subtitle != "" {
		b.WriteString(`<div class="flex" data-testid="subtitle-text">` + subtitle + `</div>`)
	}
	if summary != "" {
		b.WriteString(`<div class="text-sm">` + summary + `</div>`)
	}
	b.WriteString(`</div></div></div>`)
	return b.String()
}

// writeFixtures creates a listing with two events and a recordings
// directory holding a file for the first one only.
func writeFixtures(t *testing.T) (listing, dir string) {
	t.Helper()
	root := t.TempDir()

	listing = filepath.Join(root, "listing.html")
	page := `<html><body>` +
		`<div class="font-semibold">Monday, Sep 1</div>` +
		listingCard("Weekly Sync", "10:00 AM • 30 min", "") +
		listingCard("Quiz", "2:00 PM", "") +
		`</body></html>`
	require.NoError(t, os.WriteFile(listing, []byte(page), 0644))

	dir = filepath.Join(root, "recordings")
	require.NoError(t, os.Mkdir(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Weekly Sync.mp3"), nil, 0644))
	return listing, dir
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu      sync.Mutex
	runs    []matching.Run
	records map[string][]matching.MatchedRecord
	saveErr error
	closed  bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string][]matching.MatchedRecord)}
}

func (s *memStore) SaveRun(ctx context.Context, run *matching.Run, records []matching.MatchedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.runs = append([]matching.Run{*run}, s.runs...)
	s.records[run.ID] = records
	return nil
}

func (s *memStore) ListRuns(ctx context.Context, limit int) ([]matching.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	return append([]matching.Run(nil), s.runs[:limit]...), nil
}

func (s *memStore) GetRun(ctx context.Context, id string) (*storage.StoredRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == id {
			return &storage.StoredRun{Run: r, Records: s.records[id]}, nil
		}
	}
	return nil, pferrors.ErrNotFound
}

func (s *memStore) Close() error {
	s.closed = true
	return nil
}

func storeOpener(s storage.Store, err error) func(context.Context, *config.CLIConfig, logging.Logger) (storage.Store, error) {
	return func(context.Context, *config.CLIConfig, logging.Logger) (storage.Store, error) {
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// fakePublisher records published runs.
type fakePublisher struct {
	published []string
	err       error
	closed    bool
}

func (p *fakePublisher) PublishRunCompleted(ctx context.Context, run *matching.Run, records []matching.MatchedRecord) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, run.ID)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

// fakeLister returns canned meetings and remembers the key it was built with.
type fakeLister struct {
	meetings []fathom.Meeting
	err      error
	apiKey   string
	opts     []fathom.ListOptions
}

func (l *fakeLister) ListMeetings(ctx context.Context, opts fathom.ListOptions) ([]fathom.Meeting, error) {
	l.opts = append(l.opts, opts)
	if l.err != nil {
		return nil, l.err
	}
	if opts.Limit > 0 && opts.Limit < len(l.meetings) {
		return l.meetings[:opts.Limit], nil
	}
	return l.meetings, nil
}

func (l *fakeLister) factory() func(*config.CLIConfig, string, logging.Logger) (MeetingLister, error) {
	return func(_ *config.CLIConfig, apiKey string, _ logging.Logger) (MeetingLister, error) {
		l.apiKey = apiKey
		return l, nil
	}
}

var errBoom = errors.New("boom")
