package fathom

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
)

// ReportFile is the name of the report written into the export directory.
const ReportFile = "download_report.json"

const (
	maxNameLen  = 200
	unknownDate = "unknown-date"

	metadataExt   = ".json"
	transcriptExt = ".txt"
	summarySuffix = "_summary.md"
)

// ExportStatus is the outcome of exporting one meeting.
type ExportStatus string

const (
	StatusSuccess ExportStatus = "success"
	StatusSkipped ExportStatus = "skipped"
	StatusFailed  ExportStatus = "failed"
	StatusDryRun  ExportStatus = "dry_run"
)

// ExportResult describes one exported meeting.
type ExportResult struct {
	Title    string       `json:"title"`
	ShareURL string       `json:"share_url,omitempty"`
	BaseName string       `json:"base_name"`
	Status   ExportStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
}

// ExportReport summarizes an export run.
type ExportReport struct {
	Timestamp  time.Time      `json:"timestamp"`
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Results    []ExportResult `json:"results"`
}

// ExportOptions controls an export.
type ExportOptions struct {
	// DryRun reports what would be written without touching the directory.
	DryRun bool
	// Overwrite rewrites meetings whose metadata file already exists.
	Overwrite bool
}

// Exporter writes meetings into a directory as metadata, transcript and
// summary files. The transcript shares the metadata's base name so the
// file indexer treats the pair as one recording.
type Exporter struct {
	dir    string
	logger logging.Logger
	now    func() time.Time
}

// NewExporter creates an exporter writing into dir.
func NewExporter(dir string, logger logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Exporter{
		dir:    dir,
		logger: logger.With(logging.F("component", "fathom_export")),
		now:    time.Now,
	}
}

// Dir returns the export directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Export writes every meeting and returns the per-meeting outcome. A failed
// meeting does not stop the export; ctx cancellation does.
func (e *Exporter) Export(ctx context.Context, meetings []Meeting, opts ExportOptions) (*ExportReport, error) {
	report := &ExportReport{
		Timestamp: e.now().UTC(),
		Total:     len(meetings),
		Results:   make([]ExportResult, 0, len(meetings)),
	}
	if !opts.DryRun {
		if err := os.MkdirAll(e.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create export dir: %w", err)
		}
	}

	seen := make(map[string]int)
	for _, m := range meetings {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		base := BaseName(m)
		if n := seen[base]; n > 0 {
			seen[base] = n + 1
			base = fmt.Sprintf("%s (%d)", base, n)
		} else {
			seen[base] = 1
		}

		res := ExportResult{Title: m.DisplayTitle(), ShareURL: m.Link(), BaseName: base}
		switch {
		case opts.DryRun:
			res.Status = StatusDryRun
		case !opts.Overwrite && e.exists(base):
			res.Status = StatusSkipped
			report.Skipped++
		default:
			if err := e.writeMeeting(base, m); err != nil {
				res.Status = StatusFailed
				res.Error = err.Error()
				report.Failed++
				e.logger.Warn("Export failed", logging.F("title", res.Title), logging.Err(err))
			} else {
				res.Status = StatusSuccess
				report.Successful++
				e.logger.Debug("Exported", logging.F("title", res.Title), logging.F("base", base))
			}
		}
		report.Results = append(report.Results, res)
	}

	e.logger.Info("Export complete",
		logging.F("total", report.Total),
		logging.F("successful", report.Successful),
		logging.F("skipped", report.Skipped),
		logging.F("failed", report.Failed),
	)
	return report, nil
}

func (e *Exporter) exists(base string) bool {
	_, err := os.Stat(filepath.Join(e.dir, base+metadataExt))
	return err == nil
}

func (e *Exporter) writeMeeting(base string, m Meeting) error {
	meta, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if len(m.Transcript) > 0 {
		if err := writeFile(filepath.Join(e.dir, base+transcriptExt), func(w *bufio.Writer) error {
			return meeting.WriteTranscript(w, toSegments(m.Transcript))
		}); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
	}

	if summary := strings.TrimSpace(m.DefaultSummary); summary != "" {
		if err := writeFile(filepath.Join(e.dir, base+summarySuffix), func(w *bufio.Writer) error {
			_, err := fmt.Fprintf(w, "# %s\n\n%s\n", m.DisplayTitle(), summary)
			return err
		}); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	// Metadata goes last; its presence marks the meeting as exported.
	if err := os.WriteFile(filepath.Join(e.dir, base+metadataExt), append(meta, '\n'), 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func writeFile(path string, fill func(*bufio.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		return err
	}
	return w.Flush()
}

func toSegments(entries []TranscriptEntry) []meeting.TranscriptSegment {
	out := make([]meeting.TranscriptSegment, 0, len(entries))
	for _, e := range entries {
		out = append(out, meeting.TranscriptSegment{Speaker: e.Speaker, Text: e.Text, StartS: e.Start})
	}
	return out
}

// WriteReport writes report as indented JSON to dir/ReportFile.
func WriteReport(dir string, report *ExportReport) (string, error) {
	if report == nil {
		return "", errors.New("fathom: nil report")
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// BaseName returns "<YYYY-MM-DD> - <title>" for m, with the date taken from
// CreatedAt and the title made safe for a filename.
func BaseName(m Meeting) string {
	date := unknownDate
	if t, ok := m.Created(); ok {
		date = t.Format("2006-01-02")
	}
	return date + " - " + SanitizeFilename(m.DisplayTitle())
}

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename removes characters that are invalid in filenames,
// collapses whitespace and caps the length at 200 characters.
func SanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "")
	name = whitespace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLen {
		name = strings.TrimSpace(string([]rune(name)[:maxNameLen]))
	}
	if name == "" {
		name = "Untitled"
	}
	return name
}
