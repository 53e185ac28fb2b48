package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
)

type fakeRemote struct {
	mu     sync.Mutex
	lyrics lyrics.Lyrics
	err    error
	calls  int
}

func (f *fakeRemote) Lyrics(ctx context.Context, trackID string) (lyrics.Lyrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.lyrics, f.err
}

func (f *fakeRemote) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestStore(t *testing.T, opts ...StoreOption) *LyricsStore {
	t.Helper()
	db := NewDB(filepath.Join(t.TempDir(), "lyrics.db"))
	if err := db.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLyricsStore(db, opts...)
}

func TestLyricsStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)

	in := lyrics.Lyrics{0: "first", 12.5: "second", 40: "third"}
	if err := s.Save("track-1", in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, fetchedAt, err := s.Get("track-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 3 || got[12.5] != "second" {
		t.Errorf("Get() = %v, want %v", got, in)
	}
	if fetchedAt.IsZero() {
		t.Error("fetchedAt not recorded")
	}

	// Save replaces rather than merges
	if err := s.Save("track-1", lyrics.Lyrics{1: "only"}); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.Get("track-1")
	if len(got) != 1 || got[1] != "only" {
		t.Errorf("Get() after replace = %v", got)
	}
}

func TestLyricsStore_Missing(t *testing.T) {
	s := newTestStore(t)

	if _, _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	l, err := s.Lyrics("nope", true)
	if err != nil || l != nil {
		t.Errorf("Lyrics() = %v, %v, want no data", l, err)
	}
}

func TestLyricsStore_Delete(t *testing.T) {
	s := newTestStore(t)
	s.Save("t", lyrics.Lyrics{0: "x"})

	if err := s.Delete("t"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Get("t"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v", err)
	}
}

func TestLyricsStore_RefreshesStaleEntries(t *testing.T) {
	remote := &fakeRemote{lyrics: lyrics.Lyrics{0: "fresh"}}
	s := newTestStore(t, WithRefresher(remote), WithMaxAge(time.Hour))

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Save("t", lyrics.Lyrics{0: "old"})

	// Fresh entry: no refresh
	if l, _ := s.Lyrics("t", true); l[0] != "old" {
		t.Fatalf("Lyrics() = %v", l)
	}
	s.Wait()
	if remote.count() != 0 {
		t.Fatalf("refreshed a fresh entry")
	}

	// Stale but updates not allowed
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	s.Lyrics("t", false)
	s.Wait()
	if remote.count() != 0 {
		t.Fatalf("refreshed without allowUpdate")
	}

	// Stale: served as-is, refreshed in the background
	l, _ := s.Lyrics("t", true)
	if l[0] != "old" {
		t.Errorf("stale Lyrics() = %v, want stored copy", l)
	}
	s.Wait()
	if remote.count() != 1 {
		t.Fatalf("remote calls = %d, want 1", remote.count())
	}

	got, _, _ := s.Get("t")
	if got[0] != "fresh" {
		t.Errorf("after refresh = %v, want fresh", got)
	}
}

func TestLyricsStore_FailedRefreshKeepsEntry(t *testing.T) {
	remote := &fakeRemote{err: errors.New("offline")}
	s := newTestStore(t, WithRefresher(remote), WithMaxAge(time.Minute))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Save("t", lyrics.Lyrics{0: "old"})

	s.now = func() time.Time { return base.Add(time.Hour) }
	s.Lyrics("t", true)
	s.Wait()

	got, _, err := s.Get("t")
	if err != nil || got[0] != "old" {
		t.Errorf("Get() = %v, %v, want old entry kept", got, err)
	}
}
