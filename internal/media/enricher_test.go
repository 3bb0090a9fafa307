package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediashare/internal/catalog"
	"mediashare/internal/storage"
)

func stubTools(t *testing.T) {
	t.Helper()
	origLook := lookPath
	lookPath = func(file string) (string, error) { return file, nil }
	t.Cleanup(func() { lookPath = origLook })
}

func stubProbe(t *testing.T, fn func(path string) ([]byte, error)) {
	t.Helper()
	orig := probe
	probe = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		return fn(args[len(args)-1])
	}
	t.Cleanup(func() { probe = orig })
}

func TestParseProbe(t *testing.T) {
	meta, err := parseProbe([]byte(`{
		"streams": [{"codec_type":"video","codec_name":"h264"},{"codec_type":"audio","codec_name":"aac"}],
		"format": {"duration":"61.2345","bit_rate":"128000"}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.Duration != 61235*time.Millisecond {
		t.Fatalf("unexpected duration %v", meta.Duration)
	}
	if meta.VideoCodec != "H264" || meta.AudioCodec != "AAC" || meta.Bitrate != 128000 {
		t.Fatalf("unexpected metadata %+v", meta)
	}

	if _, err := parseProbe([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid output")
	}
}

func TestEnricherFillsDurations(t *testing.T) {
	stubTools(t)
	stubProbe(t, func(path string) ([]byte, error) {
		if filepath.Base(path) == "broken.mp4" {
			return nil, errors.New("exit status 1")
		}
		return []byte(`{"format":{"duration":"12.5"}}`), nil
	})

	store := newTestStorage(t)
	for _, name := range []string{"good.mp4", "broken.mp4"} {
		m := &storage.MediaItem{Title: name, Path: "/lib/" + name, Folder: "/lib", Size: 1, Kind: KindVideo, ModifiedAt: time.Unix(100, 0)}
		if err := store.CreateMediaItem(m); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	sink := &recordingSink{}
	e := NewEnricher(store, NewMetadataExtractor(zerolog.Nop()), sink, nil, 1, 0, zerolog.Nop())

	n, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 processed, got %d", n)
	}

	good, _ := store.GetMediaItemByPath("/lib/good.mp4")
	if good.DurationMS == nil || *good.DurationMS != 12500 {
		t.Fatalf("unexpected duration %v", good.DurationMS)
	}
	broken, _ := store.GetMediaItemByPath("/lib/broken.mp4")
	if broken.DurationMS == nil || *broken.DurationMS != 0 {
		t.Fatalf("failed probe should store zero, got %v", broken.DurationMS)
	}

	if sink.count() != 2 {
		t.Fatalf("expected one notification per item, got %d", sink.count())
	}
	for _, cs := range sink.sets {
		if len(cs.Changed) != 1 || cs.Changed[0].DurationMS == nil {
			t.Fatalf("unexpected notification %+v", cs)
		}
	}

	// nothing left to do
	if n, _ := e.RunOnce(context.Background()); n != 0 {
		t.Fatalf("expected idle pass, got %d", n)
	}
}

func TestEnricherServeStopsOnCancel(t *testing.T) {
	stubTools(t)
	stubProbe(t, func(string) ([]byte, error) { return []byte(`{}`), nil })

	e := NewEnricher(newTestStorage(t), NewMetadataExtractor(zerolog.Nop()), nil, nil, 5, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- e.Serve(ctx) }()

	e.Trigger()
	e.Trigger()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestArtworkCachesVideoFrames(t *testing.T) {
	stubTools(t)
	var calls atomic.Int32
	orig := grabFrame
	grabFrame = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		calls.Add(1)
		return nil, os.WriteFile(args[len(args)-1], []byte("jpeg"), 0644)
	}
	t.Cleanup(func() { grabFrame = orig })

	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	writeFile(t, video, "video")

	svc := NewArtworkService(NewThumbnailGenerator(filepath.Join(dir, "thumbs"), zerolog.Nop()), 8, 1<<20, zerolog.Nop())
	item := catalog.Item{ID: 7, Kind: catalog.KindVideo, Path: video, Revision: 1}

	for i := 0; i < 2; i++ {
		data, mime, err := svc.Artwork(context.Background(), item)
		if err != nil {
			t.Fatalf("artwork: %v", err)
		}
		if string(data) != "jpeg" || mime != "image/jpeg" {
			t.Fatalf("unexpected artwork %q %q", data, mime)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one ffmpeg run, got %d", calls.Load())
	}
	if st := svc.CacheStats(); st.Entries != 1 || st.Hits != 1 {
		t.Fatalf("unexpected cache stats %+v", st)
	}

	svc.Forget(7)
	if _, err := os.Stat(filepath.Join(dir, "thumbs", "7.jpg")); !os.IsNotExist(err) {
		t.Fatalf("thumbnail should be removed, stat err %v", err)
	}
	if st := svc.CacheStats(); st.Entries != 0 {
		t.Fatalf("cache should be empty, got %+v", st)
	}
}

func TestArtworkAudioWithoutTags(t *testing.T) {
	dir := t.TempDir()
	song := filepath.Join(dir, "song.mp3")
	writeFile(t, song, "no tags here")

	svc := NewArtworkService(NewThumbnailGenerator(filepath.Join(dir, "thumbs"), zerolog.Nop()), 8, 1<<20, zerolog.Nop())
	_, _, err := svc.Artwork(context.Background(), catalog.Item{ID: 1, Kind: catalog.KindAudio, Path: song})
	if err == nil {
		t.Fatal("expected an error for untagged audio")
	}
	if st := svc.CacheStats(); st.Entries != 0 {
		t.Fatalf("failures must not be cached, got %+v", st)
	}
}
