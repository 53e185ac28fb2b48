package socketio

import (
	"bytes"
	"encoding/json"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/nowplaying"
)

// Events emitted to clients.
const (
	EventNowPlaying = "pushNowPlaying"
	EventTime       = "pushTime"
)

// LyricLine is one lyric line in display order.
type LyricLine struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

// NowPlayingPayload is the snapshot as sent to clients, with colors as hex
// and the derived display values precomputed.
type NowPlayingPayload struct {
	nowplaying.Snapshot

	Colors            []string    `json:"colors"`
	Highlights        []string    `json:"highlights"`
	Lyrics            []LyricLine `json:"lyrics"`
	LyricsLoaded      bool        `json:"lyricsLoaded"`
	QualityText       string      `json:"qualityText,omitempty"`
	PlayedPercentage  float64     `json:"playedPercentage"`
	DisplayedProgress float64     `json:"displayedProgress"`
}

// TimePayload carries the fields that change on every tick.
type TimePayload struct {
	CurrentTime       float64 `json:"currentTime"`
	Duration          float64 `json:"duration"`
	PlayedPercentage  float64 `json:"playedPercentage"`
	DisplayedProgress float64 `json:"displayedProgress"`
}

// NewNowPlayingPayload converts a snapshot for the wire.
func NewNowPlayingPayload(s nowplaying.Snapshot) NowPlayingPayload {
	keys := s.LyricsKeys()
	return NowPlayingPayload{
		Snapshot:   s,
		Colors:     hexColors(s.Colors),
		Highlights: hexColors(s.Highlights),
		Lyrics: lo.Map(keys, func(k float64, _ int) LyricLine {
			return LyricLine{Time: k, Text: s.Lyrics[k]}
		}),
		LyricsLoaded:      s.LyricsLoaded(),
		QualityText:       s.QualityText(),
		PlayedPercentage:  s.PlayedPercentage(),
		DisplayedProgress: s.DisplayedProgress(),
	}
}

func newTimePayload(s nowplaying.Snapshot) TimePayload {
	return TimePayload{
		CurrentTime:       s.CurrentTime,
		Duration:          s.Duration,
		PlayedPercentage:  s.PlayedPercentage(),
		DisplayedProgress: s.DisplayedProgress(),
	}
}

func hexColors(colors []colorful.Color) []string {
	return lo.Map(colors, func(c colorful.Color, _ int) string { return c.Hex() })
}

// compareKey encodes the payload without the per-tick time fields. Clients
// interpolate time themselves, so a tick that moves only the clock is sent
// as the small time event.
func compareKey(p NowPlayingPayload) []byte {
	p.CurrentTime = 0
	p.PlayedPercentage = 0
	p.DisplayedProgress = 0
	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return data
}

// stateDiff remembers the last full payload sent.
type stateDiff struct {
	last []byte
}

// next picks the event for s and records it as sent.
func (d *stateDiff) next(s nowplaying.Snapshot) (event string, data any) {
	payload := NewNowPlayingPayload(s)
	key := compareKey(payload)
	if key != nil && bytes.Equal(key, d.last) {
		return EventTime, newTimePayload(s)
	}
	d.last = key
	return EventNowPlaying, payload
}
