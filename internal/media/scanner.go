package media

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"mediashare/internal/storage"
)

type Scanner struct {
	storage   *storage.SQLiteStorage
	sink      ChangeSink
	logger    zerolog.Logger
	afterScan func()
	scanning  bool
	mu        sync.Mutex

	// held while storage is written and the result reaches the sink
	applyMu sync.Mutex
}

func NewScanner(store *storage.SQLiteStorage, sink ChangeSink, logger zerolog.Logger) *Scanner {
	return &Scanner{
		storage: store,
		sink:    sink,
		logger:  logger.With().Str("component", "scanner").Logger(),
	}
}

// Locker serializes other storage writers that feed the same sink with scans.
func (s *Scanner) Locker() sync.Locker {
	return &s.applyMu
}

// SetAfterScan registers fn to run after every successful scan.
func (s *Scanner) SetAfterScan(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterScan = fn
}

func (s *Scanner) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// ScanPath scans the library and pushes the resulting changes to the sink.
// A call made while another scan runs returns immediately.
func (s *Scanner) ScanPath(libraryPath, libraryName string) error {
	return s.ScanContext(context.Background(), libraryPath, libraryName)
}

func (s *Scanner) ScanContext(ctx context.Context, libraryPath, libraryName string) error {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return nil
	}
	s.scanning = true
	afterScan := s.afterScan
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
	}()

	if libraryPath == "" {
		s.logger.Warn().Msg("no library path configured")
		return nil
	}

	s.logger.Info().
		Str("path", libraryPath).
		Str("name", libraryName).
		Msg("scanning library")

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	cs, err := s.Scan(ctx, libraryPath)
	if err != nil {
		return err
	}

	s.logger.Info().
		Int("added", len(cs.Added)).
		Int("changed", len(cs.Changed)).
		Int("removed", len(cs.Removed)).
		Int("playlists_added", len(cs.PlaylistsAdded)).
		Int("playlists_changed", len(cs.PlaylistsChanged)).
		Int("playlists_removed", len(cs.PlaylistsRemoved)).
		Msg("scan completed")

	if !cs.Empty() && s.sink != nil {
		if err := s.sink.Apply(cs); err != nil {
			return err
		}
	}

	if afterScan != nil {
		go afterScan()
	}
	return nil
}

// Scan walks the library, brings storage in line with the files on disk and
// returns what changed. Every non-hidden directory below the library root
// that directly holds media becomes a folder playlist.
func (s *Scanner) Scan(ctx context.Context, libraryPath string) (ChangeSet, error) {
	var cs ChangeSet

	info, err := os.Stat(libraryPath)
	if err != nil {
		return cs, err
	}
	if !info.IsDir() {
		return cs, nil
	}
	root := filepath.Clean(libraryPath)

	existing, err := s.storage.ListMediaItems()
	if err != nil {
		return cs, err
	}
	byPath := make(map[string]storage.MediaItem, len(existing))
	for _, m := range existing {
		byPath[m.Path] = m
	}

	seen := make(map[string]bool)
	folders := make(map[string][]int64)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}

		kind := KindOf(d.Name())
		if kind == "" {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			s.logger.Error().Err(err).Str("path", path).Msg("failed to get file info")
			return nil
		}

		folder := filepath.Dir(path)
		id, ok := s.syncFile(path, folder, kind, fi, byPath, &cs)
		if !ok {
			return nil
		}
		seen[path] = true

		if folder != root {
			folders[folder] = append(folders[folder], id)
		}
		return nil
	})
	if walkErr != nil {
		return cs, walkErr
	}

	for path, m := range byPath {
		if seen[path] {
			continue
		}
		if err := s.storage.DeleteMediaItem(m.ID); err != nil {
			s.logger.Error().Err(err).Str("path", path).Msg("failed to delete media item")
			continue
		}
		cs.Removed = append(cs.Removed, m.ID)
		s.logger.Debug().Str("path", path).Msg("deleted missing media item")
	}
	sort.Slice(cs.Removed, func(i, j int) bool { return cs.Removed[i] < cs.Removed[j] })

	if err := s.syncFolderPlaylists(folders, &cs); err != nil {
		return cs, err
	}

	return cs, nil
}

func (s *Scanner) syncFile(path, folder, kind string, fi fs.FileInfo, byPath map[string]storage.MediaItem, cs *ChangeSet) (int64, bool) {
	if m, ok := byPath[path]; ok {
		if m.Size == fi.Size() && m.ModifiedAt.Unix() == fi.ModTime().Unix() && m.Kind == kind && m.Folder == folder {
			return m.ID, true
		}

		m.Title = titleFor(path, kind)
		m.Folder = folder
		m.Size = fi.Size()
		m.Kind = kind
		m.ModifiedAt = fi.ModTime()
		if err := s.storage.UpdateMediaItem(&m); err != nil {
			s.logger.Error().Err(err).Str("path", path).Msg("failed to update media item")
			return m.ID, true
		}
		cs.Changed = append(cs.Changed, m)
		s.logger.Debug().Str("title", m.Title).Msg("updated media item")
		return m.ID, true
	}

	m := storage.MediaItem{
		Title:      titleFor(path, kind),
		Path:       path,
		Folder:     folder,
		Size:       fi.Size(),
		Kind:       kind,
		ModifiedAt: fi.ModTime(),
	}
	if err := s.storage.CreateMediaItem(&m); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to create media item")
		return 0, false
	}
	cs.Added = append(cs.Added, m)

	s.logger.Debug().
		Str("title", m.Title).
		Str("size", humanize.Bytes(uint64(m.Size))).
		Msg("added media item")
	return m.ID, true
}

func (s *Scanner) syncFolderPlaylists(folders map[string][]int64, cs *ChangeSet) error {
	playlists, err := s.storage.ListPlaylists()
	if err != nil {
		return err
	}

	bySource := make(map[string]storage.Playlist)
	for _, p := range playlists {
		if p.Kind == storage.PlaylistFolder {
			bySource[p.Source] = p
		}
	}

	sources := make([]string, 0, len(folders))
	for folder := range folders {
		sources = append(sources, folder)
	}
	sort.Strings(sources)

	for _, folder := range sources {
		ids := folders[folder]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		title := filepath.Base(folder)

		p, ok := bySource[folder]
		if !ok {
			p = storage.Playlist{Title: title, Kind: storage.PlaylistFolder, Source: folder, ItemIDs: ids}
			if err := s.storage.CreatePlaylist(&p); err != nil {
				s.logger.Error().Err(err).Str("folder", folder).Msg("failed to create folder playlist")
				continue
			}
			cs.PlaylistsAdded = append(cs.PlaylistsAdded, p)
			continue
		}

		delete(bySource, folder)
		if p.Title == title && sameIDs(p.ItemIDs, ids) {
			continue
		}
		p.Title = title
		p.ItemIDs = ids
		if err := s.storage.UpdatePlaylist(&p); err != nil {
			s.logger.Error().Err(err).Str("folder", folder).Msg("failed to update folder playlist")
			continue
		}
		cs.PlaylistsChanged = append(cs.PlaylistsChanged, p)
	}

	for folder, p := range bySource {
		if err := s.storage.DeletePlaylist(p.ID); err != nil {
			s.logger.Error().Err(err).Str("folder", folder).Msg("failed to delete folder playlist")
			continue
		}
		cs.PlaylistsRemoved = append(cs.PlaylistsRemoved, p.ID)
	}

	return nil
}

func titleFor(path, kind string) string {
	if kind == KindAudio {
		if title := TagTitle(path); title != "" {
			return title
		}
	}
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// sameIDs compares two ascending id lists.
func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
