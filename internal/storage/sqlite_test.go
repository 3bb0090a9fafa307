package storage

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "library.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMediaItemLifecycle(t *testing.T) {
	s := newTestStorage(t)

	m := &MediaItem{
		Title:      "Pilot",
		Path:       "/library/shows/pilot.mkv",
		Folder:     "/library/shows",
		Size:       2048,
		Kind:       "video",
		ModifiedAt: time.Now().Truncate(time.Second),
	}
	if err := s.CreateMediaItem(m); err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	got, err := s.GetMediaItemByPath(m.Path)
	if err != nil || got == nil {
		t.Fatalf("get by path: %v %v", got, err)
	}
	if got.ID != m.ID || got.Title != "Pilot" || got.DurationMS != nil {
		t.Fatalf("unexpected item %+v", got)
	}

	if err := s.UpdateMediaDuration(m.ID, 61000); err != nil {
		t.Fatalf("update duration: %v", err)
	}
	pending, err := s.GetMediaItemsWithoutDuration(10)
	if err != nil {
		t.Fatalf("without duration: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending items, got %d", len(pending))
	}

	m.Size = 4096
	if err := s.UpdateMediaItem(m); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetMediaItem(m.ID)
	if got.Size != 4096 || got.DurationMS != nil {
		t.Fatalf("update should store size and reset duration, got %+v", got)
	}

	if err := s.DeleteMediaItem(m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.GetMediaItem(m.ID); got != nil {
		t.Fatalf("expected nil after delete, got %+v", got)
	}

	if err := s.UpdateMediaDuration(m.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlaylistLifecycle(t *testing.T) {
	s := newTestStorage(t)

	p := &Playlist{Title: "Favourites", Kind: PlaylistUser, ItemIDs: []int64{3, 1, 3}}
	if err := s.CreatePlaylist(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	folder := &Playlist{Title: "shows", Kind: PlaylistFolder, Source: "/library/shows", ItemIDs: []int64{2}}
	if err := s.CreatePlaylist(folder); err != nil {
		t.Fatalf("create folder playlist: %v", err)
	}
	if err := s.CreatePlaylist(&Playlist{Title: "dup", Kind: PlaylistFolder, Source: "/library/shows"}); err == nil {
		t.Fatal("expected unique source violation")
	}

	got, err := s.GetPlaylist(p.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if !reflect.DeepEqual(got.ItemIDs, []int64{1, 3}) {
		t.Fatalf("unexpected members %v", got.ItemIDs)
	}

	p.Title = "Best"
	p.ItemIDs = []int64{9}
	if err := s.UpdatePlaylist(p); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := s.ListPlaylists()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 playlists, got %d", len(all))
	}
	if all[0].Title != "Best" || !reflect.DeepEqual(all[0].ItemIDs, []int64{9}) {
		t.Fatalf("unexpected first playlist %+v", all[0])
	}
	if all[1].Source != "/library/shows" || all[1].Kind != PlaylistFolder {
		t.Fatalf("unexpected folder playlist %+v", all[1])
	}

	if err := s.DeletePlaylist(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeletePlaylist(p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdatePlaylist(&Playlist{ID: 404, Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
