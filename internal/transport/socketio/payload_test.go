package socketio

import (
	"encoding/json"
	"testing"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/nowplaying"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
)

func TestNewNowPlayingPayload(t *testing.T) {
	snap := nowplaying.Snapshot{
		Presented:   true,
		NowPlaying:  &player.Track{ID: "t1", Name: "One"},
		Colors:      []colorful.Color{{R: 1, G: 0, B: 0}},
		Highlights:  []colorful.Color{{R: 0, G: 0, B: 1}},
		Lyrics:      lyrics.Lyrics{12.5: "b", 0: "a"},
		Duration:    100,
		CurrentTime: 25,
		MediaInfo:   &player.MediaInfo{Codec: "flac"},
	}

	p := NewNowPlayingPayload(snap)

	if len(p.Colors) != 1 || p.Colors[0] != "#ff0000" {
		t.Errorf("Colors = %v, want [#ff0000]", p.Colors)
	}
	if len(p.Highlights) != 1 || p.Highlights[0] != "#0000ff" {
		t.Errorf("Highlights = %v, want [#0000ff]", p.Highlights)
	}
	if len(p.Lyrics) != 2 || p.Lyrics[0].Text != "a" || p.Lyrics[1].Time != 12.5 {
		t.Errorf("Lyrics = %+v, want sorted lines", p.Lyrics)
	}
	if !p.LyricsLoaded || p.QualityText != "FLAC" || p.PlayedPercentage != 0.25 {
		t.Errorf("derived = %v/%q/%v", p.LyricsLoaded, p.QualityText, p.PlayedPercentage)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"presented", "nowPlaying", "colors", "lyrics", "activeLine", "qualityText"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("payload missing %q: %s", key, data)
		}
	}
	if colors, ok := decoded["colors"].([]any); !ok || colors[0] != "#ff0000" {
		t.Errorf("colors encoded as %v, want hex strings", decoded["colors"])
	}
}

func TestStateDiff_TimeOnlyChange(t *testing.T) {
	var d stateDiff
	snap := nowplaying.Snapshot{NowPlaying: &player.Track{ID: "t1"}, Duration: 100, CurrentTime: 1}

	if event, _ := d.next(snap); event != EventNowPlaying {
		t.Errorf("first event = %q, want %q", event, EventNowPlaying)
	}

	snap.CurrentTime = 1.25
	event, data := d.next(snap)
	if event != EventTime {
		t.Errorf("time-only event = %q, want %q", event, EventTime)
	}
	if tp, ok := data.(TimePayload); !ok || tp.CurrentTime != 1.25 || tp.PlayedPercentage != 0.0125 {
		t.Errorf("time payload = %+v", data)
	}

	snap.ActiveLine = 2
	if event, _ := d.next(snap); event != EventNowPlaying {
		t.Errorf("active line change sent as %q, want full payload", event)
	}

	snap.Playing = true
	if event, _ := d.next(snap); event != EventNowPlaying {
		t.Errorf("playing change sent as %q, want full payload", event)
	}
}
