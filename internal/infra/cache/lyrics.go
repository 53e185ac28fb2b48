package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
)

const (
	// DefaultMaxAge is how long stored lyrics are served before a background refresh.
	DefaultMaxAge = 30 * 24 * time.Hour

	refreshTimeout = 30 * time.Second
)

// LyricsStore persists lyrics for offline use. It implements lyrics.OfflineSource.
type LyricsStore struct {
	db        *DB
	refresher lyrics.RemoteSource
	maxAge    time.Duration
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
}

// StoreOption configures a LyricsStore.
type StoreOption func(*LyricsStore)

// WithRefresher sets the source used to refresh stale entries.
func WithRefresher(r lyrics.RemoteSource) StoreOption {
	return func(s *LyricsStore) {
		s.refresher = r
	}
}

// WithMaxAge sets when an entry becomes stale.
func WithMaxAge(d time.Duration) StoreOption {
	return func(s *LyricsStore) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// NewLyricsStore creates a store on an open DB.
func NewLyricsStore(db *DB, opts ...StoreOption) *LyricsStore {
	s := &LyricsStore{
		db:       db,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lyrics returns stored lyrics for trackID, or nil when there are none.
// With allowUpdate, a stale entry is refreshed in the background.
func (s *LyricsStore) Lyrics(trackID string, allowUpdate bool) (lyrics.Lyrics, error) {
	l, fetchedAt, err := s.Get(trackID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if allowUpdate && s.now().Sub(fetchedAt) > s.maxAge {
		s.refresh(trackID)
	}
	return l, nil
}

// Get returns stored lyrics and when they were fetched.
func (s *LyricsStore) Get(trackID string) (lyrics.Lyrics, time.Time, error) {
	db := s.db.conn()
	if db == nil {
		return nil, time.Time{}, errNotOpen
	}

	var fetched string
	err := db.QueryRow("SELECT fetched_at FROM lyrics_tracks WHERE track_id = ?", trackID).Scan(&fetched)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query lyrics %s: %w", trackID, err)
	}
	fetchedAt, _ := time.Parse(time.RFC3339, fetched)

	rows, err := db.Query("SELECT position, text FROM lyrics_lines WHERE track_id = ? ORDER BY position", trackID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query lyrics lines %s: %w", trackID, err)
	}
	defer rows.Close()

	l := lyrics.Lyrics{}
	for rows.Next() {
		var pos float64
		var text string
		if err := rows.Scan(&pos, &text); err != nil {
			return nil, time.Time{}, err
		}
		l[pos] = text
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}

	return l, fetchedAt, nil
}

// Save replaces the stored lyrics of trackID.
func (s *LyricsStore) Save(trackID string, l lyrics.Lyrics) error {
	db := s.db.conn()
	if db == nil {
		return errNotOpen
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().Format(time.RFC3339)
	if _, err := tx.Exec(`
		INSERT INTO lyrics_tracks (track_id, fetched_at) VALUES (?, ?)
		ON CONFLICT(track_id) DO UPDATE SET fetched_at = ?
	`, trackID, now, now); err != nil {
		return fmt.Errorf("save lyrics %s: %w", trackID, err)
	}
	if _, err := tx.Exec("DELETE FROM lyrics_lines WHERE track_id = ?", trackID); err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO lyrics_lines (track_id, position, text) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for pos, text := range l {
		if _, err := stmt.Exec(trackID, pos, text); err != nil {
			return fmt.Errorf("save lyrics line %s@%v: %w", trackID, pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Debug().Str("track", trackID).Int("lines", len(l)).Msg("Lyrics saved")
	return nil
}

// Delete removes the stored lyrics of trackID.
func (s *LyricsStore) Delete(trackID string) error {
	db := s.db.conn()
	if db == nil {
		return errNotOpen
	}
	_, err := db.Exec("DELETE FROM lyrics_tracks WHERE track_id = ?", trackID)
	return err
}

// Wait blocks until background refreshes finish.
func (s *LyricsStore) Wait() {
	s.wg.Wait()
}

func (s *LyricsStore) refresh(trackID string) {
	if s.refresher == nil {
		return
	}

	s.mu.Lock()
	if s.inFlight[trackID] {
		s.mu.Unlock()
		return
	}
	s.inFlight[trackID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, trackID)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		l, err := s.refresher.Lyrics(ctx, trackID)
		if err != nil {
			log.Debug().Err(err).Str("track", trackID).Msg("Lyrics refresh failed")
			return
		}
		if len(l) == 0 {
			return
		}
		if err := s.Save(trackID, l); err != nil {
			log.Warn().Err(err).Str("track", trackID).Msg("Failed to store refreshed lyrics")
		}
	}()
}
