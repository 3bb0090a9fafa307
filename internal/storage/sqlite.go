package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS media_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		folder TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL,
		duration_ms INTEGER,
		kind TEXT NOT NULL,
		file_modified_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_media_folder ON media_items(folder);

	CREATE TABLE IF NOT EXISTS playlists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		kind TEXT NOT NULL,
		source TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_playlists_source ON playlists(source) WHERE source IS NOT NULL;

	CREATE TABLE IF NOT EXISTS playlist_items (
		playlist_id INTEGER NOT NULL,
		media_id INTEGER NOT NULL,
		PRIMARY KEY (playlist_id, media_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Media Items

const mediaColumns = `id, title, path, folder, size, duration_ms, kind, file_modified_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMediaItem(row rowScanner) (MediaItem, error) {
	var m MediaItem
	var modifiedAt, createdAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.Title, &m.Path, &m.Folder, &m.Size,
		&m.DurationMS, &m.Kind, &modifiedAt, &createdAt,
	)
	if err != nil {
		return m, err
	}
	if modifiedAt.Valid {
		m.ModifiedAt = modifiedAt.Time
	}
	if createdAt.Valid {
		m.CreatedAt = createdAt.Time
	}
	return m, nil
}

func (s *SQLiteStorage) queryMediaItems(query string, args ...any) ([]MediaItem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MediaItem
	for rows.Next() {
		m, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}

	return items, rows.Err()
}

func (s *SQLiteStorage) ListMediaItems() ([]MediaItem, error) {
	return s.queryMediaItems(`SELECT ` + mediaColumns + ` FROM media_items ORDER BY id`)
}

// GetMediaItem returns nil when no item has the id.
func (s *SQLiteStorage) GetMediaItem(id int64) (*MediaItem, error) {
	m, err := scanMediaItem(s.db.QueryRow(`SELECT `+mediaColumns+` FROM media_items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStorage) GetMediaItemByPath(path string) (*MediaItem, error) {
	m, err := scanMediaItem(s.db.QueryRow(`SELECT `+mediaColumns+` FROM media_items WHERE path = ?`, path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMediaItem inserts m and stores the assigned id back into it.
func (s *SQLiteStorage) CreateMediaItem(m *MediaItem) error {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}

	res, err := s.db.Exec(`
		INSERT INTO media_items (
			title, path, folder, size, duration_ms, kind, file_modified_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.Title, m.Path, m.Folder, m.Size, m.DurationMS, m.Kind,
		m.ModifiedAt, m.CreatedAt, now,
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// UpdateMediaItem stores new file facts for an existing item. The duration
// is reset so it is extracted again for the new file contents.
func (s *SQLiteStorage) UpdateMediaItem(m *MediaItem) error {
	res, err := s.db.Exec(`
		UPDATE media_items SET
			title = ?,
			folder = ?,
			size = ?,
			kind = ?,
			duration_ms = NULL,
			file_modified_at = ?,
			updated_at = ?
		WHERE id = ?
	`, m.Title, m.Folder, m.Size, m.Kind, m.ModifiedAt, time.Now(), m.ID)
	if err != nil {
		return err
	}
	m.DurationMS = nil
	return expectRow(res)
}

func (s *SQLiteStorage) UpdateMediaDuration(id int64, durationMS int64) error {
	res, err := s.db.Exec(`
		UPDATE media_items SET duration_ms = ?, updated_at = ? WHERE id = ?
	`, durationMS, time.Now(), id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// GetMediaItemsWithoutDuration returns items whose duration was never extracted
func (s *SQLiteStorage) GetMediaItemsWithoutDuration(limit int) ([]MediaItem, error) {
	return s.queryMediaItems(`
		SELECT `+mediaColumns+` FROM media_items WHERE duration_ms IS NULL ORDER BY id LIMIT ?
	`, limit)
}

func (s *SQLiteStorage) DeleteMediaItem(id int64) error {
	_, err := s.db.Exec("DELETE FROM media_items WHERE id = ?", id)
	return err
}

// Playlists

func (s *SQLiteStorage) ListPlaylists() ([]Playlist, error) {
	rows, err := s.db.Query(`
		SELECT id, title, kind, source, created_at, updated_at FROM playlists ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []Playlist
	index := make(map[int64]int)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		index[p.ID] = len(playlists)
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := s.db.Query(`SELECT playlist_id, media_id FROM playlist_items ORDER BY playlist_id, media_id`)
	if err != nil {
		return nil, err
	}
	defer members.Close()

	for members.Next() {
		var playlistID, mediaID int64
		if err := members.Scan(&playlistID, &mediaID); err != nil {
			return nil, err
		}
		if i, ok := index[playlistID]; ok {
			playlists[i].ItemIDs = append(playlists[i].ItemIDs, mediaID)
		}
	}

	return playlists, members.Err()
}

// GetPlaylist returns nil when no playlist has the id.
func (s *SQLiteStorage) GetPlaylist(id int64) (*Playlist, error) {
	p, err := scanPlaylist(s.db.QueryRow(`
		SELECT id, title, kind, source, created_at, updated_at FROM playlists WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.ItemIDs, err = s.playlistItemIDs(id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStorage) CreatePlaylist(p *Playlist) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO playlists (title, kind, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`, p.Title, p.Kind, nullable(p.Source), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if err := insertPlaylistItems(tx, id, p.ItemIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	p.ID = id
	return nil
}

// UpdatePlaylist replaces title and membership.
func (s *SQLiteStorage) UpdatePlaylist(p *Playlist) error {
	p.UpdatedAt = time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE playlists SET title = ?, updated_at = ? WHERE id = ?`, p.Title, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if err := expectRow(res); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM playlist_items WHERE playlist_id = ?`, p.ID); err != nil {
		return err
	}
	if err := insertPlaylistItems(tx, p.ID, p.ItemIDs); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) DeletePlaylist(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_items WHERE playlist_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := expectRow(res); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) playlistItemIDs(playlistID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT media_id FROM playlist_items WHERE playlist_id = ? ORDER BY media_id`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanPlaylist(row rowScanner) (Playlist, error) {
	var p Playlist
	var source sql.NullString
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.Title, &p.Kind, &source, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	p.Source = source.String
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return p, nil
}

func insertPlaylistItems(tx *sql.Tx, playlistID int64, ids []int64) error {
	for _, id := range ids {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO playlist_items (playlist_id, media_id) VALUES (?, ?)
		`, playlistID, id); err != nil {
			return err
		}
	}
	return nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
