package nowplaying

import (
	"testing"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
)

func intPtr(v int) *int { return &v }

func TestSnapshot_QualityText(t *testing.T) {
	tests := []struct {
		name    string
		info    *player.MediaInfo
		toggled bool
		want    string
	}{
		{"no media info", nil, false, ""},
		{"codec and bitrate", &player.MediaInfo{Codec: "flac", Bitrate: intPtr(1411200)}, false, "FLAC - 1,411"},
		{"codec only", &player.MediaInfo{Codec: "aac"}, false, "AAC"},
		{"detailed", &player.MediaInfo{Codec: "flac", BitDepth: intPtr(24), SampleRate: intPtr(96000)}, true, "24 - 96,000"},
		{"detailed sample rate only", &player.MediaInfo{SampleRate: intPtr(44100)}, true, "44,100"},
		{"toggled without detail falls back", &player.MediaInfo{Codec: "mp3", Bitrate: intPtr(320000)}, true, "MP3 - 320"},
		{"nothing known", &player.MediaInfo{}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Snapshot{MediaInfo: tt.info, MediaInfoToggled: tt.toggled}
			if got := s.QualityText(); got != tt.want {
				t.Errorf("QualityText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshot_Progress(t *testing.T) {
	s := Snapshot{CurrentTime: 30, Duration: 120}
	if got := s.PlayedPercentage(); got != 0.25 {
		t.Errorf("PlayedPercentage() = %v, want 0.25", got)
	}
	if got := s.DisplayedProgress(); got != 0.25 {
		t.Errorf("DisplayedProgress() = %v, want 0.25", got)
	}

	s.SeekDragging = true
	s.DraggedPercentage = 0.8
	if got := s.DisplayedProgress(); got != 0.8 {
		t.Errorf("DisplayedProgress() while dragging = %v, want 0.8", got)
	}

	if got := (Snapshot{CurrentTime: 5}).PlayedPercentage(); got != 0 {
		t.Errorf("PlayedPercentage() without duration = %v, want 0", got)
	}
}

func TestSnapshot_Lyrics(t *testing.T) {
	var s Snapshot
	if s.LyricsLoaded() {
		t.Error("empty lyrics reported as loaded")
	}

	s.Lyrics = lyrics.Lyrics{40: "c", 0: "a", 12.5: "b"}
	keys := s.LyricsKeys()
	if !s.LyricsLoaded() || len(keys) != 3 || keys[0] != 0 || keys[2] != 40 {
		t.Errorf("LyricsKeys() = %v", keys)
	}
}

func TestSnapshot_AddToPlaylistTrack(t *testing.T) {
	track := &player.Track{ID: "t1"}
	s := Snapshot{NowPlaying: track, Presented: true}
	if s.AddToPlaylistTrack() != nil {
		t.Error("sheet closed but track returned")
	}
	s.AddToPlaylistPresented = true
	if s.AddToPlaylistTrack() != track {
		t.Error("sheet open, want the current track")
	}
}
