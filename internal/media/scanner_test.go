package media

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediashare/internal/storage"
)

type recordingSink struct {
	mu   sync.Mutex
	sets []ChangeSet
}

func (r *recordingSink) Apply(cs ChangeSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = append(r.sets, cs)
	return nil
}

func (r *recordingSink) last(t *testing.T) ChangeSet {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sets) == 0 {
		t.Fatal("sink received nothing")
	}
	return r.sets[len(r.sets)-1]
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func titles(items []storage.MediaItem) []string {
	out := make([]string, 0, len(items))
	for _, m := range items {
		out = append(out, m.Title)
	}
	sort.Strings(out)
	return out
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"movie.MKV", KindVideo},
		{"clip.mp4", KindVideo},
		{"song.flac", KindAudio},
		{"track.Mp3", KindAudio},
		{"notes.txt", ""},
		{"noext", ""},
	}
	for _, tt := range tests {
		if got := KindOf(tt.name); got != tt.want {
			t.Errorf("KindOf(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
	if got := GetContentType("a.m4a"); got != "audio/mp4" {
		t.Errorf("unexpected content type %q", got)
	}
}

func TestScanDiffsAgainstStorage(t *testing.T) {
	lib := t.TempDir()
	writeFile(t, filepath.Join(lib, "shows", "pilot.mp4"), "video")
	writeFile(t, filepath.Join(lib, "shows", "theme.mp3"), "audio")
	writeFile(t, filepath.Join(lib, "feature.mkv"), "root file")
	writeFile(t, filepath.Join(lib, ".hidden", "secret.mp4"), "hidden")
	writeFile(t, filepath.Join(lib, "shows", "readme.txt"), "skip")

	store := newTestStorage(t)
	sink := &recordingSink{}
	s := NewScanner(store, sink, zerolog.Nop())

	if err := s.ScanPath(lib, "Test"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	cs := sink.last(t)
	if got := titles(cs.Added); len(got) != 3 || got[0] != "feature" || got[1] != "pilot" || got[2] != "theme" {
		t.Fatalf("unexpected added titles %v", got)
	}
	if len(cs.PlaylistsAdded) != 1 {
		t.Fatalf("expected one folder playlist, got %+v", cs.PlaylistsAdded)
	}
	folder := cs.PlaylistsAdded[0]
	if folder.Title != "shows" || folder.Kind != storage.PlaylistFolder || len(folder.ItemIDs) != 2 {
		t.Fatalf("unexpected folder playlist %+v", folder)
	}

	// unchanged tree
	if err := s.ScanPath(lib, "Test"); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("unchanged rescan should not notify, got %d sets", sink.count())
	}

	if err := os.Remove(filepath.Join(lib, "shows", "theme.mp3")); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(lib, "feature.mkv"), "a longer root file")

	if err := s.ScanPath(lib, "Test"); err != nil {
		t.Fatalf("scan after edits: %v", err)
	}
	cs = sink.last(t)
	if len(cs.Added) != 0 || len(cs.Removed) != 1 || len(cs.Changed) != 1 {
		t.Fatalf("unexpected change set %+v", cs)
	}
	if cs.Changed[0].Title != "feature" || cs.Changed[0].Size != int64(len("a longer root file")) {
		t.Fatalf("unexpected changed item %+v", cs.Changed[0])
	}
	if len(cs.PlaylistsChanged) != 1 || len(cs.PlaylistsChanged[0].ItemIDs) != 1 {
		t.Fatalf("expected folder playlist to shrink, got %+v", cs.PlaylistsChanged)
	}

	if err := os.RemoveAll(filepath.Join(lib, "shows")); err != nil {
		t.Fatal(err)
	}
	if err := s.ScanPath(lib, "Test"); err != nil {
		t.Fatalf("scan after folder removal: %v", err)
	}
	cs = sink.last(t)
	if len(cs.PlaylistsRemoved) != 1 || cs.PlaylistsRemoved[0] != folder.ID {
		t.Fatalf("expected folder playlist removal, got %+v", cs)
	}
}

func TestScanRunsAfterScanHook(t *testing.T) {
	lib := t.TempDir()
	writeFile(t, filepath.Join(lib, "a.mp4"), "x")

	s := NewScanner(newTestStorage(t), &recordingSink{}, zerolog.Nop())
	done := make(chan struct{})
	s.SetAfterScan(func() { close(done) })

	if err := s.ScanPath(lib, "Test"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("after-scan hook not called")
	}
	if s.IsScanning() {
		t.Fatal("scanner still reports scanning")
	}
}

func TestScanHonoursContext(t *testing.T) {
	lib := t.TempDir()
	writeFile(t, filepath.Join(lib, "a.mp4"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(newTestStorage(t), &recordingSink{}, zerolog.Nop())
	if _, err := s.Scan(ctx, lib); err == nil {
		t.Fatal("expected context error")
	}
}
