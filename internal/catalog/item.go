package catalog

import (
	"path/filepath"
	"strings"
	"time"
)

type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Record is one entry of the items-added / items-changed feed.
type Record struct {
	ID       int64
	Name     string
	Size     int64
	Duration time.Duration
	Kind     Kind
	Path     string
}

// Item is the normalized catalog entry built from a Record.
type Item struct {
	ID        int64
	Name      string
	Size      int64
	Duration  time.Duration
	Kind      Kind
	Path      string
	Extension string // may be empty

	// Revision is the catalog revision at which this state was stored.
	Revision uint64
}

func newItem(r Record, rev uint64) Item {
	return Item{
		ID:        r.ID,
		Name:      r.Name,
		Size:      r.Size,
		Duration:  r.Duration,
		Kind:      r.Kind,
		Path:      r.Path,
		Extension: Extension(r.Path),
		Revision:  rev,
	}
}

// Extension returns the text after the last '.' of the final path segment,
// or "" when that segment has no '.'.
func Extension(path string) string {
	base := filepath.Base(path)
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return base[i+1:]
}
