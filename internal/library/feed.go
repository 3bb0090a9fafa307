// Package library forwards storage changes into the in-memory catalog and
// playlist index that the share serves.
package library

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"mediashare/internal/catalog"
	"mediashare/internal/media"
	"mediashare/internal/metrics"
	"mediashare/internal/playlist"
	"mediashare/internal/storage"
)

// Source is the persistent library read on startup.
type Source interface {
	ListMediaItems() ([]storage.MediaItem, error)
	ListPlaylists() ([]storage.Playlist, error)
}

// Forgetter drops derived data (translations, artwork) for item ids.
type Forgetter interface {
	Forget(ids ...int64)
}

type Feed struct {
	catalog   *catalog.Catalog
	playlists *playlist.Index
	forget    []Forgetter
	logger    zerolog.Logger

	// notifications are applied one batch at a time
	mu sync.Mutex
}

func NewFeed(cat *catalog.Catalog, idx *playlist.Index, logger zerolog.Logger, forget ...Forgetter) *Feed {
	return &Feed{
		catalog:   cat,
		playlists: idx,
		forget:    forget,
		logger:    logger.With().Str("component", "feed").Logger(),
	}
}

// Load performs the initial full sync from src.
func (f *Feed) Load(src Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := src.ListMediaItems()
	if err != nil {
		return fmt.Errorf("list media items: %w", err)
	}
	lists, err := src.ListPlaylists()
	if err != nil {
		return fmt.Errorf("list playlists: %w", err)
	}

	if err := f.catalog.ApplyAdded(Records(items)); err != nil {
		return err
	}
	f.playlists.RebuildAll(Playlists(lists))

	metrics.CatalogEvents.WithLabelValues("item", "added").Add(float64(len(items)))
	f.updateGauges()

	f.logger.Info().
		Int("items", len(items)).
		Int("playlists", len(lists)).
		Msg("library loaded")
	return nil
}

// Apply forwards one change set: item removals, additions and changes, then
// the playlist notifications in the same order. A rejected item batch does
// not stop the remaining notifications; all failures are returned together.
func (f *Feed) Apply(cs media.ChangeSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error

	if len(cs.Removed) > 0 {
		f.catalog.ApplyRemoved(cs.Removed)
		f.forgetIDs(cs.Removed)
		metrics.CatalogEvents.WithLabelValues("item", "removed").Add(float64(len(cs.Removed)))
	}

	if len(cs.Added) > 0 {
		if err := f.catalog.ApplyAdded(Records(cs.Added)); err != nil {
			errs = append(errs, err)
		} else {
			metrics.CatalogEvents.WithLabelValues("item", "added").Add(float64(len(cs.Added)))
		}
	}

	if len(cs.Changed) > 0 {
		if err := f.catalog.ApplyChanged(Records(cs.Changed)); err != nil {
			errs = append(errs, err)
		} else {
			ids := make([]int64, 0, len(cs.Changed))
			for _, m := range cs.Changed {
				ids = append(ids, m.ID)
			}
			f.forgetIDs(ids)
			metrics.CatalogEvents.WithLabelValues("item", "changed").Add(float64(len(cs.Changed)))
		}
	}

	if len(cs.PlaylistsRemoved) > 0 {
		f.playlists.ApplyRemoved(cs.PlaylistsRemoved)
		metrics.CatalogEvents.WithLabelValues("playlist", "removed").Add(float64(len(cs.PlaylistsRemoved)))
	}
	if len(cs.PlaylistsAdded) > 0 {
		f.playlists.ApplyAdded(Playlists(cs.PlaylistsAdded))
		metrics.CatalogEvents.WithLabelValues("playlist", "added").Add(float64(len(cs.PlaylistsAdded)))
	}
	if len(cs.PlaylistsChanged) > 0 {
		f.playlists.ApplyChanged(Playlists(cs.PlaylistsChanged))
		metrics.CatalogEvents.WithLabelValues("playlist", "changed").Add(float64(len(cs.PlaylistsChanged)))
	}

	f.updateGauges()

	if err := errors.Join(errs...); err != nil {
		f.logger.Warn().Err(err).Msg("change set partially rejected")
		return err
	}
	return nil
}

func (f *Feed) forgetIDs(ids []int64) {
	for _, fg := range f.forget {
		fg.Forget(ids...)
	}
}

func (f *Feed) updateGauges() {
	metrics.CatalogItems.Set(float64(f.catalog.Len()))
	metrics.Playlists.Set(float64(f.playlists.Len()))
}

func Record(m storage.MediaItem) catalog.Record {
	return catalog.Record{
		ID:       m.ID,
		Name:     m.Title,
		Size:     m.Size,
		Duration: m.Duration(),
		Kind:     catalog.Kind(m.Kind),
		Path:     m.Path,
	}
}

func Records(items []storage.MediaItem) []catalog.Record {
	out := make([]catalog.Record, 0, len(items))
	for _, m := range items {
		out = append(out, Record(m))
	}
	return out
}

func Playlists(lists []storage.Playlist) []playlist.Playlist {
	out := make([]playlist.Playlist, 0, len(lists))
	for _, p := range lists {
		out = append(out, playlist.Playlist{ID: p.ID, Title: p.Title, ItemIDs: p.ItemIDs})
	}
	return out
}
