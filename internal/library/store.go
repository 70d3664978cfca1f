// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the requested video is not in the catalog.
var ErrNotFound = errors.New("video not found")

// Store persists the recording catalog in SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	id          TEXT PRIMARY KEY,
	path        TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	channel     TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	duration    REAL NOT NULL,
	video_codec TEXT NOT NULL DEFAULT '',
	audio_codec TEXT NOT NULL DEFAULT '',
	width       INTEGER NOT NULL DEFAULT 0,
	height      INTEGER NOT NULL DEFAULT 0,
	interlaced  INTEGER NOT NULL DEFAULT 0,
	aired_at    INTEGER NOT NULL DEFAULT 0,
	scanned_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_videos_aired_at ON videos(aired_at DESC);
`

// OpenStore opens (and if needed creates) the catalog database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent scans.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply catalog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or refreshes one catalog record, keyed by id.
func (s *Store) Upsert(ctx context.Context, v Video) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (id, path, title, channel, description, duration,
			video_codec, audio_codec, width, height, interlaced, aired_at, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			channel = excluded.channel,
			description = excluded.description,
			duration = excluded.duration,
			video_codec = excluded.video_codec,
			audio_codec = excluded.audio_codec,
			width = excluded.width,
			height = excluded.height,
			interlaced = excluded.interlaced,
			aired_at = excluded.aired_at,
			scanned_at = excluded.scanned_at`,
		v.ID, v.Path, v.Title, v.Channel, v.Description, v.DurationSeconds,
		v.VideoCodec, v.AudioCodec, v.Width, v.Height, boolToInt(v.Interlaced),
		timeToUnix(v.AiredAt), v.ScannedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert video %s: %w", v.ID, err)
	}
	return nil
}

// Get returns one video by id.
func (s *Store) Get(ctx context.Context, id string) (Video, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v, err
}

// List returns the catalog ordered by air date, newest first.
func (s *Store) List(ctx context.Context) ([]Video, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY aired_at DESC, title ASC")
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteMissing removes records whose scanned_at predates the given scan
// start, i.e. recordings no longer present on disk. Returns removed count.
func (s *Store) DeleteMissing(ctx context.Context, scanStarted time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM videos WHERE scanned_at < ?`, scanStarted.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete stale videos: %w", err)
	}
	return res.RowsAffected()
}

const selectColumns = `SELECT id, path, title, channel, description, duration,
	video_codec, audio_codec, width, height, interlaced, aired_at, scanned_at
	FROM videos`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (Video, error) {
	var v Video
	var interlaced int
	var airedAt, scannedAt int64
	err := row.Scan(&v.ID, &v.Path, &v.Title, &v.Channel, &v.Description,
		&v.DurationSeconds, &v.VideoCodec, &v.AudioCodec, &v.Width, &v.Height,
		&interlaced, &airedAt, &scannedAt)
	if err != nil {
		return Video{}, err
	}
	v.Interlaced = interlaced != 0
	if airedAt > 0 {
		v.AiredAt = time.Unix(airedAt, 0)
	}
	v.ScannedAt = time.Unix(0, scannedAt)
	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
