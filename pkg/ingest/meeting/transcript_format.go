package meeting

import (
	"fmt"
	"io"
	"strings"
)

// TranscriptSegment represents a single spoken segment of a transcript.
type TranscriptSegment struct {
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
	StartS  float64 `json:"start_s"`
}

// WriteTranscript writes segments as "[12.3s] Speaker: text" lines, the
// plain-text layout the file indexer picks up as a transcript.
func WriteTranscript(w io.Writer, segments []TranscriptSegment) error {
	for _, seg := range segments {
		speaker := strings.TrimSpace(seg.Speaker)
		if speaker == "" {
			speaker = "Unknown"
		}
		text := strings.Join(strings.Fields(seg.Text), " ")
		if _, err := fmt.Fprintf(w, "[%.1fs] %s: %s\n", seg.StartS, speaker, text); err != nil {
			return err
		}
	}
	return nil
}
