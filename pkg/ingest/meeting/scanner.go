package meeting

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// duplicateSuffix matches stems carrying an export duplicate marker, e.g.
// "Weekly Sync (2)" or "Andy Lai - 60 Minutes Call(1)".
var duplicateSuffix = regexp.MustCompile(`^(.+?)\s*\((\d+)\)$`)

var mediaExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".wav":  true,
	".webm": true,
}

// DetectFileType returns "media", "text", or "unknown" from the extension.
func DetectFileType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case mediaExtensions[ext]:
		return "media"
	case ext == ".txt":
		return "text"
	default:
		return "unknown"
	}
}

// SplitStem splits a stem into its group name and optional duplicate number.
func SplitStem(stem string) (group string, seq int, numbered bool) {
	m := duplicateSuffix.FindStringSubmatch(stem)
	if m == nil {
		return strings.TrimSpace(stem), 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return strings.TrimSpace(stem), 0, false
	}
	return strings.TrimSpace(m[1]), n, true
}

// ScanArtifacts lists the media and text files directly inside dir and
// pairs them by stem. Subdirectories and hidden files are ignored.
func ScanArtifacts(dir string) ([]FileArtifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	// ReadDir returns entries sorted by name, so the first media file for a
	// stem wins deterministically.
	byStem := make(map[string]*FileArtifact)
	var order []string

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		kind := DetectFileType(name)
		if kind == "unknown" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		a, ok := byStem[stem]
		if !ok {
			group, seq, numbered := SplitStem(stem)
			a = &FileArtifact{
				Stem:     stem,
				Group:    group,
				Sequence: seq,
				Numbered: numbered,
			}
			byStem[stem] = a
			order = append(order, stem)
		}

		path := filepath.Join(dir, name)
		switch kind {
		case "media":
			if a.MediaPath == "" {
				a.MediaPath = path
			}
		case "text":
			a.TextPath = path
		}
		if info.ModTime().After(a.ModTime) {
			a.ModTime = info.ModTime()
		}
	}

	sort.Strings(order)
	out := make([]FileArtifact, 0, len(order))
	for _, stem := range order {
		out = append(out, *byStem[stem])
	}
	return out, nil
}

// BuildFileIndex scans dir and groups its artifacts by underlying base name.
func BuildFileIndex(dir string) (*FileIndex, error) {
	artifacts, err := ScanArtifacts(dir)
	if err != nil {
		return nil, err
	}
	return NewFileIndex(artifacts...), nil
}
