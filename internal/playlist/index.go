// Package playlist keeps the named collections of item ids shared alongside
// the catalog.
package playlist

import (
	"sort"
	"sync"
)

// Playlist is an unordered set of item ids. Ids may reference items the
// catalog no longer has.
type Playlist struct {
	ID      int64
	Title   string
	ItemIDs []int64
}

type Index struct {
	mu        sync.RWMutex
	playlists map[int64]Playlist
}

func NewIndex() *Index {
	return &Index{
		playlists: make(map[int64]Playlist),
	}
}

// RebuildAll replaces the whole index.
func (x *Index) RebuildAll(playlists []Playlist) {
	next := make(map[int64]Playlist, len(playlists))
	for _, p := range playlists {
		next[p.ID] = normalize(p)
	}

	x.mu.Lock()
	x.playlists = next
	x.mu.Unlock()
}

// ApplyAdded inserts playlists, replacing any entry with the same id.
func (x *Index) ApplyAdded(playlists []Playlist) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, p := range playlists {
		x.playlists[p.ID] = normalize(p)
	}
}

// ApplyChanged drops each existing entry and inserts the new one; fields are
// never merged.
func (x *Index) ApplyChanged(playlists []Playlist) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, p := range playlists {
		delete(x.playlists, p.ID)
		x.playlists[p.ID] = normalize(p)
	}
}

func (x *Index) ApplyRemoved(ids []int64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, id := range ids {
		delete(x.playlists, id)
	}
}

// ItemsOf returns the member ids of a playlist, or an empty set when the
// playlist is unknown.
func (x *Index) ItemsOf(id int64) []int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, ok := x.playlists[id]
	if !ok {
		return []int64{}
	}
	ids := make([]int64, len(p.ItemIDs))
	copy(ids, p.ItemIDs)
	return ids
}

func (x *Index) Get(id int64) (Playlist, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, ok := x.playlists[id]
	if !ok {
		return Playlist{}, false
	}
	return clone(p), true
}

// All returns every playlist ordered by id.
func (x *Index) All() []Playlist {
	x.mu.RLock()
	all := make([]Playlist, 0, len(x.playlists))
	for _, p := range x.playlists {
		all = append(all, clone(p))
	}
	x.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.playlists)
}

func normalize(p Playlist) Playlist {
	ids := append([]int64(nil), p.ItemIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := ids[:0]
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		out = append(out, id)
	}
	p.ItemIDs = out
	return p
}

func clone(p Playlist) Playlist {
	p.ItemIDs = append([]int64(nil), p.ItemIDs...)
	return p
}
