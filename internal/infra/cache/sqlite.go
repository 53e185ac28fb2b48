// Package cache provides a SQLite-backed offline store for lyrics.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

// DefaultDBPath is used when no path is configured.
const DefaultDBPath = "data/nowplaying.db"

const (
	metaSchemaVersion = "schema_version"
	metaLastUpdated   = "last_updated"
)

// migrations are applied in order; the schema version is the number applied.
var migrations = []string{
	`CREATE TABLE cache_meta (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE lyrics_tracks (
		track_id   TEXT PRIMARY KEY,
		fetched_at TEXT NOT NULL
	);
	CREATE TABLE lyrics_lines (
		track_id TEXT NOT NULL REFERENCES lyrics_tracks(track_id) ON DELETE CASCADE,
		position REAL NOT NULL,
		text     TEXT NOT NULL,
		PRIMARY KEY (track_id, position)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_lyrics_fetched ON lyrics_tracks(fetched_at);`,
}

// CurrentSchemaVersion is the version a freshly opened database ends up at.
var CurrentSchemaVersion = strconv.Itoa(len(migrations))

// ErrNotFound is returned when a track has no stored lyrics.
var ErrNotFound = errors.New("not in cache")

var errNotOpen = errors.New("database not open")

// DB is the SQLite file behind the offline store.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a closed database handle for path.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{path: path}
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Open creates the file if needed and brings the schema up to date.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("open cache database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		db.Close()
		return fmt.Errorf("migrate cache schema: %w", err)
	}
	d.db = db

	log.Info().Str("path", d.path).Str("schema", CurrentSchemaVersion).Msg("Cache database opened")
	return nil
}

// Close closes the database. Closing twice is a no-op.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// migrate applies the migrations past the stored version, each in its own transaction.
func migrate(db *sql.DB) error {
	applied := 0
	var version string
	err := db.QueryRow("SELECT value FROM cache_meta WHERE key = ?", metaSchemaVersion).Scan(&version)
	if err == nil {
		if applied, err = strconv.Atoi(version); err != nil {
			return fmt.Errorf("bad schema version %q: %w", version, err)
		}
	}
	if applied > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", applied, len(migrations))
	}

	for i := applied; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := setMeta(tx, metaSchemaVersion, strconv.Itoa(i+1)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Debug().Int("version", i+1).Msg("Cache migration applied")
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func setMeta(db execer, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.Exec(`
		INSERT INTO cache_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

// Stats reports what the store holds. LastUpdated is the latest save or clear.
func (d *DB) Stats() (*Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, errNotOpen
	}

	stats := &Stats{}
	var lastFetched, lastCleared sql.NullString
	err := d.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM lyrics_tracks),
			(SELECT COUNT(*) FROM lyrics_lines),
			(SELECT value FROM cache_meta WHERE key = ?),
			(SELECT MAX(fetched_at) FROM lyrics_tracks),
			(SELECT value FROM cache_meta WHERE key = ?)
	`, metaSchemaVersion, metaLastUpdated).Scan(
		&stats.TrackCount, &stats.LineCount, &stats.SchemaVersion, &lastFetched, &lastCleared,
	)
	if err != nil {
		return nil, fmt.Errorf("read cache stats: %w", err)
	}

	for _, v := range []sql.NullString{lastFetched, lastCleared} {
		if !v.Valid {
			continue
		}
		if t, err := time.Parse(time.RFC3339, v.String); err == nil && t.After(stats.LastUpdated) {
			stats.LastUpdated = t
		}
	}
	return stats, nil
}

// Clear removes all stored lyrics and keeps the schema.
func (d *DB) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return errNotOpen
	}

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM lyrics_lines"); err != nil {
		return fmt.Errorf("clear lyrics lines: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM lyrics_tracks"); err != nil {
		return fmt.Errorf("clear lyrics tracks: %w", err)
	}
	if err := setMeta(tx, metaLastUpdated, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info().Msg("Cache cleared")
	return nil
}

func (d *DB) conn() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}
