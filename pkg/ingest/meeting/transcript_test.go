package meeting

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptReader_ReadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, "Weekly Sync.txt", "We discussed the Q3 roadmap.")

	r := NewTranscriptReader(0)
	text, ok := r.ReadText(path)
	require.True(t, ok)
	assert.Equal(t, "We discussed the Q3 roadmap.", text)

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0644))
	text, ok = r.ReadText(path)
	require.True(t, ok)
	assert.Equal(t, "We discussed the Q3 roadmap.", text, "second read should come from cache")
	assert.Equal(t, 1, r.DiskReads())
}

func TestTranscriptReader_MissingFile(t *testing.T) {
	r := NewTranscriptReader(0)

	text, ok := r.ReadText(filepath.Join(t.TempDir(), "gone.txt"))
	assert.False(t, ok)
	assert.Empty(t, text)

	text, ok = r.ReadText("")
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestTranscriptReader_Bounded(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, "long.txt", strings.Repeat("a", 100))

	text, ok := NewTranscriptReader(10).ReadText(path)
	require.True(t, ok)
	assert.Len(t, text, 10)
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		truncated bool
		want      string
	}{
		{"utf8", []byte("café"), false, "café"},
		{"bom stripped", append([]byte{0xEF, 0xBB, 0xBF}, []byte("hi")...), false, "hi"},
		{"windows-1252", []byte{'c', 'a', 'f', 0xE9}, false, "café"},
		{"smart quotes", []byte{0x93, 'o', 'k', 0x94}, false, "“ok”"},
		{"split rune dropped", []byte{'c', 'a', 'f', 0xC3}, true, "caf"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecodeText(tc.data, tc.truncated))
		})
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "", Excerpt("abc", 0))
	assert.Equal(t, "abc", Excerpt("abc", 5))
	assert.Equal(t, "ab", Excerpt("abc", 2))
	assert.Equal(t, "né", Excerpt("néé", 2))
}

func TestWriteTranscript(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTranscript(&buf, []TranscriptSegment{
		{Speaker: "Andy Lai", Text: "Morning  all", StartS: 1.3},
		{Text: "hello\nthere", StartS: 12},
	})
	require.NoError(t, err)
	assert.Equal(t, "[1.3s] Andy Lai: Morning all\n[12.0s] Unknown: hello there\n", buf.String())
}
