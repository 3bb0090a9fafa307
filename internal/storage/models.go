package storage

import "time"

type MediaItem struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Path       string    `json:"-"`
	Folder     string    `json:"-"` // directory the file lives in
	Size       int64     `json:"size"`
	DurationMS *int64    `json:"duration_ms,omitempty"` // nil until extracted
	Kind       string    `json:"kind"`                  // video | audio
	ModifiedAt time.Time `json:"-"`
	CreatedAt  time.Time `json:"-"`
}

// Duration returns the known duration, or zero.
func (m MediaItem) Duration() time.Duration {
	if m.DurationMS == nil {
		return 0
	}
	return time.Duration(*m.DurationMS) * time.Millisecond
}

const (
	PlaylistUser   = "user"
	PlaylistFolder = "folder" // generated by the scanner from a library directory
)

type Playlist struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Source    string    `json:"-"` // folder path for folder playlists
	ItemIDs   []int64   `json:"item_ids"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
