package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/cache"
)

func openTestDB(t *testing.T) *cache.DB {
	t.Helper()
	db := cache.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB(t *testing.T) {
	db := cache.NewDB("")
	if db == nil {
		t.Fatal("NewDB should return a non-nil instance")
	}
	if db.Path() != cache.DefaultDBPath {
		t.Errorf("Path() = %q, want default", db.Path())
	}
}

func TestDBOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	db := cache.NewDB(dbPath)

	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist after Open()")
	}

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestDBReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db := cache.NewDB(dbPath)
	if err := db.Open(); err != nil {
		t.Fatal(err)
	}
	store := cache.NewLyricsStore(db)
	if err := store.Save("t1", lyrics.Lyrics{0: "kept"}); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db = cache.NewDB(dbPath)
	if err := db.Open(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer db.Close()

	l, err := cache.NewLyricsStore(db).Lyrics("t1", false)
	if err != nil || l[0] != "kept" {
		t.Errorf("Lyrics() after reopen = %v, %v", l, err)
	}
}

func TestDBStats(t *testing.T) {
	db := openTestDB(t)

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TrackCount != 0 || stats.LineCount != 0 {
		t.Errorf("Expected empty cache, got %+v", stats)
	}
	if stats.SchemaVersion != cache.CurrentSchemaVersion {
		t.Errorf("Expected schema version %q, got %q", cache.CurrentSchemaVersion, stats.SchemaVersion)
	}

	store := cache.NewLyricsStore(db)
	store.Save("a", lyrics.Lyrics{0: "one", 1: "two"})
	store.Save("b", lyrics.Lyrics{0: "three"})

	stats, _ = db.Stats()
	if stats.TrackCount != 2 || stats.LineCount != 3 {
		t.Errorf("Stats() = %+v, want 2 tracks / 3 lines", stats)
	}
}

func TestDBClear(t *testing.T) {
	db := openTestDB(t)
	store := cache.NewLyricsStore(db)
	store.Save("a", lyrics.Lyrics{0: "one"})

	if err := db.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	stats, _ := db.Stats()
	if stats.TrackCount != 0 || stats.LineCount != 0 {
		t.Errorf("Stats() after Clear = %+v", stats)
	}
	if stats.LastUpdated.IsZero() {
		t.Error("LastUpdated not set by Clear")
	}
}

func TestDBClosedOperations(t *testing.T) {
	db := cache.NewDB(filepath.Join(t.TempDir(), "test.db"))

	if _, err := db.Stats(); err == nil {
		t.Error("Stats() should fail on a closed database")
	}
	if err := db.Clear(); err == nil {
		t.Error("Clear() should fail on a closed database")
	}
	if _, err := cache.NewLyricsStore(db).Lyrics("x", false); err == nil {
		t.Error("Lyrics() should fail on a closed database")
	}
}
