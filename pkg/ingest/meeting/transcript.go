package meeting

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxTextBytes caps transcript reads when no limit is configured.
const DefaultMaxTextBytes = 4 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TranscriptReader loads transcript text for validation and excerpts.
// Reads are bounded and cached per path for the life of the reader, since
// the validator reads the same transcript once per candidate event.
type TranscriptReader struct {
	maxBytes int64

	mu    sync.Mutex
	cache map[string]cachedText
	reads int
}

type cachedText struct {
	text string
	ok   bool
}

// NewTranscriptReader creates a reader that loads at most maxBytes per file.
func NewTranscriptReader(maxBytes int64) *TranscriptReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTextBytes
	}
	return &TranscriptReader{
		maxBytes: maxBytes,
		cache:    make(map[string]cachedText),
	}
}

// ReadText returns the text at path, or ok=false if it cannot be read.
// Failures are not reported: a missing transcript is simply no evidence.
func (r *TranscriptReader) ReadText(path string) (string, bool) {
	if path == "" {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, hit := r.cache[path]; hit {
		return c.text, c.ok
	}

	text, err := r.load(path)
	c := cachedText{text: text, ok: err == nil}
	r.cache[path] = c
	r.reads++
	return c.text, c.ok
}

// DiskReads returns how many distinct files were loaded from disk.
func (r *TranscriptReader) DiskReads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func (r *TranscriptReader) load(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, r.maxBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return DecodeText(data, int64(len(data)) == r.maxBytes), nil
}

// DecodeText converts raw transcript bytes to a string. UTF-8 is used when
// valid; anything else is decoded as Windows-1252, the usual encoding of
// exports from desktop tools. When truncated is set, a rune split by the
// read limit is dropped before checking validity.
func DecodeText(data []byte, truncated bool) string {
	data = bytes.TrimPrefix(data, utf8BOM)

	if truncated {
		for i := 0; i < utf8.UTFMax-1 && len(data) > 0 && !utf8.Valid(data); i++ {
			data = data[:len(data)-1]
		}
	}

	if utf8.Valid(data) {
		return string(data)
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(decoded)
}

// Excerpt returns at most n runes of s.
func Excerpt(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
