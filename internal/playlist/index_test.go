package playlist

import (
	"reflect"
	"testing"
)

func TestIndex_IncrementalUpdates(t *testing.T) {
	x := NewIndex()
	x.ApplyAdded([]Playlist{
		{ID: 1, Title: "Movies", ItemIDs: []int64{3, 1, 3, 2}},
		{ID: 2, Title: "Music", ItemIDs: []int64{10}},
	})

	if got := x.ItemsOf(1); !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Fatalf("expected normalized set [1 2 3], got %v", got)
	}

	x.ApplyChanged([]Playlist{{ID: 1, Title: "Films", ItemIDs: []int64{7}}})
	p, ok := x.Get(1)
	if !ok {
		t.Fatal("expected playlist 1 after change")
	}
	if p.Title != "Films" || !reflect.DeepEqual(p.ItemIDs, []int64{7}) {
		t.Fatalf("change should replace the whole playlist, got %+v", p)
	}

	x.ApplyRemoved([]int64{2, 99})
	if x.Len() != 1 {
		t.Fatalf("expected 1 playlist, got %d", x.Len())
	}
}

func TestIndex_ItemsOfUnknownPlaylist(t *testing.T) {
	x := NewIndex()
	got := x.ItemsOf(404)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil set, got %#v", got)
	}
}

func TestIndex_RebuildAllReplacesEverything(t *testing.T) {
	x := NewIndex()
	x.ApplyAdded([]Playlist{{ID: 1, Title: "old"}})
	x.RebuildAll([]Playlist{{ID: 5, Title: "b"}, {ID: 4, Title: "a"}})

	all := x.All()
	if len(all) != 2 || all[0].ID != 4 || all[1].ID != 5 {
		t.Fatalf("unexpected playlists after rebuild: %+v", all)
	}
	if _, ok := x.Get(1); ok {
		t.Fatal("playlist 1 should be gone after rebuild")
	}
}

func TestIndex_ReturnsCopies(t *testing.T) {
	x := NewIndex()
	x.ApplyAdded([]Playlist{{ID: 1, ItemIDs: []int64{1, 2}}})

	ids := x.ItemsOf(1)
	ids[0] = 100

	if got := x.ItemsOf(1); got[0] != 1 {
		t.Fatalf("caller mutation leaked into index: %v", got)
	}
}
