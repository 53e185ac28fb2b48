package player

import (
	"context"
	"strings"
	"testing"

	"github.com/fhs/gompd/v2/mpd"
)

type fakeLibrary struct {
	mix    []Track
	mixErr error
}

func (l *fakeLibrary) TrackIDFromURI(uri string) (string, bool) {
	const prefix = "http://jf/Audio/"
	if !strings.HasPrefix(uri, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(uri, prefix)
	if i := strings.IndexByte(id, '/'); i >= 0 {
		id = id[:i]
	}
	return id, true
}

func (l *fakeLibrary) StreamURL(trackID string) string {
	return "http://jf/Audio/" + trackID + "/universal"
}

func (l *fakeLibrary) ImageURL(itemID string) string {
	return "http://jf/Items/" + itemID + "/Images/Primary"
}

func (l *fakeLibrary) InstantMix(ctx context.Context, trackID string, limit int) ([]Track, error) {
	return l.mix, l.mixErr
}

func TestTrackFromAttrs(t *testing.T) {
	t.Run("empty song", func(t *testing.T) {
		if got := trackFromAttrs(mpd.Attrs{}, nil); got != nil {
			t.Errorf("trackFromAttrs(empty) = %+v, want nil", got)
		}
	})

	t.Run("local file", func(t *testing.T) {
		got := trackFromAttrs(mpd.Attrs{
			"file":     "Artist/Album/03 Song.flac",
			"Title":    "Song",
			"Artist":   "One; Two",
			"Album":    "Album",
			"Track":    "3/12",
			"Disc":     "1",
			"duration": "245.500",
		}, nil)
		if got == nil {
			t.Fatal("expected track")
		}
		if got.Name != "Song" || got.Index != 3 || got.Disc != 1 {
			t.Errorf("unexpected track %+v", got)
		}
		if len(got.Artists) != 2 || got.Artists[1] != "Two" {
			t.Errorf("Artists = %v, want [One Two]", got.Artists)
		}
		if got.Duration != 245.5 {
			t.Errorf("Duration = %v, want 245.5", got.Duration)
		}
		if got.Cover == nil || got.Cover.Type != CoverLocal {
			t.Errorf("Cover = %+v, want local cover", got.Cover)
		}
	})

	t.Run("radio stream", func(t *testing.T) {
		got := trackFromAttrs(mpd.Attrs{
			"file": "http://radio.example/stream",
			"Name": "Radio Paradise",
			"Time": "0",
		}, nil)
		if got.Name != "Radio Paradise" {
			t.Errorf("Name = %q, want station name", got.Name)
		}
		if got.Cover != nil {
			t.Errorf("Cover = %+v, want nil for stream", got.Cover)
		}
	})

	t.Run("jellyfin stream", func(t *testing.T) {
		got := trackFromAttrs(mpd.Attrs{
			"file":  "http://jf/Audio/abc123/universal",
			"Title": "Remote",
		}, &fakeLibrary{})
		if got.ID != "abc123" {
			t.Errorf("ID = %q, want abc123", got.ID)
		}
		if got.Cover == nil || got.Cover.Type != CoverRemote || !strings.Contains(got.Cover.URL, "abc123") {
			t.Errorf("Cover = %+v, want remote cover", got.Cover)
		}
	})
}

func TestMediaInfoFromAttrs(t *testing.T) {
	tests := []struct {
		name       string
		status     mpd.Attrs
		song       mpd.Attrs
		codec      string
		lossless   bool
		sampleRate int
		bitDepth   int
		bitrate    int
	}{
		{
			name:       "flac hires",
			status:     mpd.Attrs{"audio": "96000:24:2", "bitrate": "2304"},
			song:       mpd.Attrs{"file": "a/b.flac"},
			codec:      "flac",
			lossless:   true,
			sampleRate: 96000,
			bitDepth:   24,
			bitrate:    2304000,
		},
		{
			name:       "mp3 float output",
			status:     mpd.Attrs{"audio": "44100:f:2", "bitrate": "320"},
			song:       mpd.Attrs{"file": "a/b.MP3"},
			codec:      "mp3",
			sampleRate: 44100,
			bitrate:    320000,
		},
		{
			name:     "stream codec hint",
			status:   mpd.Attrs{},
			song:     mpd.Attrs{"file": "http://jf/Audio/x/universal?container=opus,mp3&audioCodec=aac"},
			codec:    "aac",
			lossless: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := mediaInfoFromAttrs(tt.status, tt.song)
			if info == nil {
				t.Fatal("expected media info")
			}
			if info.Codec != tt.codec {
				t.Errorf("Codec = %q, want %q", info.Codec, tt.codec)
			}
			if info.Lossless != tt.lossless {
				t.Errorf("Lossless = %v, want %v", info.Lossless, tt.lossless)
			}
			checkInt(t, "SampleRate", info.SampleRate, tt.sampleRate)
			checkInt(t, "BitDepth", info.BitDepth, tt.bitDepth)
			checkInt(t, "Bitrate", info.Bitrate, tt.bitrate)
		})
	}

	if info := mediaInfoFromAttrs(mpd.Attrs{}, mpd.Attrs{}); info != nil {
		t.Errorf("mediaInfoFromAttrs(no song) = %+v, want nil", info)
	}
}

// checkInt treats want == 0 as "unknown".
func checkInt(t *testing.T, field string, got *int, want int) {
	t.Helper()
	if want == 0 {
		if got != nil {
			t.Errorf("%s = %d, want nil", field, *got)
		}
		return
	}
	if got == nil || *got != want {
		t.Errorf("%s = %v, want %d", field, got, want)
	}
}

func TestRepeatModeFromStatus(t *testing.T) {
	tests := []struct {
		status mpd.Attrs
		want   RepeatMode
	}{
		{mpd.Attrs{"repeat": "0", "single": "0"}, RepeatOff},
		{mpd.Attrs{"repeat": "1", "single": "0"}, RepeatQueue},
		{mpd.Attrs{"repeat": "0", "single": "1"}, RepeatTrack},
		{mpd.Attrs{"repeat": "1", "single": "1"}, RepeatTrack},
	}
	for _, tt := range tests {
		if got := repeatModeFromStatus(tt.status); got != tt.want {
			t.Errorf("repeatModeFromStatus(%v) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
