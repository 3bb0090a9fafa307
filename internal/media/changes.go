package media

import "mediashare/internal/storage"

// ChangeSet is one batch of library notifications.
type ChangeSet struct {
	Added   []storage.MediaItem
	Changed []storage.MediaItem
	Removed []int64

	PlaylistsAdded   []storage.Playlist
	PlaylistsChanged []storage.Playlist
	PlaylistsRemoved []int64
}

func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0 &&
		len(c.PlaylistsAdded) == 0 && len(c.PlaylistsChanged) == 0 && len(c.PlaylistsRemoved) == 0
}

// ChangeSink receives library notifications.
type ChangeSink interface {
	Apply(cs ChangeSet) error
}
