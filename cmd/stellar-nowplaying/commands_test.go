package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edumarques81/stellar-nowplaying/internal/config"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/cache"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "-"},
		{-3, "-"},
		{5, "0:05"},
		{59.6, "1:00"},
		{245, "4:05"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.seconds); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestRenderTracks(t *testing.T) {
	var buf bytes.Buffer
	renderTracks(&buf, []player.Track{
		{ID: "a1", Name: "Opening", Artists: []string{"Band"}, Index: 1, Disc: 1, Duration: 120},
		{ID: "a2", Name: "Closing", Artists: []string{"Band"}, Index: 2, Disc: 1, Duration: 60},
	})

	// headers and footers render upper-cased
	out := strings.ToLower(buf.String())
	for _, want := range []string{"opening", "closing", "a1", "2:00", "2 tracks", "3:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintLyrics(t *testing.T) {
	var buf bytes.Buffer
	printLyrics(&buf, lyrics.Lyrics{75.5: "second", 3.25: "first"})

	want := "[00:03.25] first\n[01:15.50] second\n"
	if buf.String() != want {
		t.Errorf("printLyrics = %q, want %q", buf.String(), want)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "tracks", "lyrics", "cache", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(buf.String(), "Stellar Now Playing") {
		t.Errorf("version output = %q", buf.String())
	}
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	renderStats(&buf, "/tmp/cache.db", &cache.Stats{
		TrackCount:    4,
		LineCount:     120,
		SchemaVersion: "1",
		LastUpdated:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	out := buf.String()
	for _, want := range []string{"/tmp/cache.db", "120", "2024-03-0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	renderStats(&buf, "x", &cache.Stats{})
	if !strings.Contains(buf.String(), "never") {
		t.Errorf("empty store should show never updated:\n%s", buf.String())
	}
}

func TestOpenCacheRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.CachePath = filepath.Join(t.TempDir(), "nested", "cache.db")

	err := openCache(cfg, func(db *cache.DB) error {
		return cache.NewLyricsStore(db).Save("t1", lyrics.Lyrics{0: "a", 2: "b"})
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	var stats *cache.Stats
	err = openCache(cfg, func(db *cache.DB) error {
		var err error
		stats, err = db.Stats()
		return err
	})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TrackCount != 1 || stats.LineCount != 2 {
		t.Errorf("stats = %+v, want 1 track / 2 lines", stats)
	}
}
