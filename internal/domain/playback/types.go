// Package playback samples the media engine and publishes a coarse transport status.
package playback

import (
	"context"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/bus"
)

// Item is the engine's current item and its buffer flags.
type Item struct {
	BufferEmpty    bool
	BufferFull     bool
	LikelyToKeepUp bool
	Duration       float64
}

// EngineState is one reading of the engine's transport.
type EngineState struct {
	Rate        float64
	Item        *Item
	CurrentTime float64
}

// Engine reads the media engine's transport.
type Engine interface {
	State(ctx context.Context) (EngineState, error)
}

// Transport controls the media engine.
type Transport interface {
	Seek(seconds float64) error
	SetPlaying(playing bool) error
}

// Metadata is what the OS media control surface shows.
type Metadata struct {
	TrackID  string
	Title    string
	Artist   string
	Album    string
	ArtURL   string
	Duration float64
	Position float64
	Playing  bool
}

// Display is the OS-level now-playing surface.
type Display interface {
	Set(md Metadata)
	Clear()
}

// Report is a scheduled playback position report.
type Report struct {
	TrackID  string
	Position float64
	Playing  bool
}

// Reporter accepts a scheduled report on every tick.
type Reporter interface {
	ReportScheduled(r Report)
}

// Sequencer advances the queue when an item finishes.
type Sequencer interface {
	RepeatMode() player.RepeatMode
	TrackDidFinish()
}

// MetadataSource describes the current track.
type MetadataSource interface {
	NowPlayingMetadata() (Metadata, bool)
}

// Poster publishes notifications.
type Poster interface {
	Post(name bus.Name)
}

// Status is the derived transport status.
type Status struct {
	Playing     bool
	Buffering   bool
	CurrentTime float64
	Duration    float64
}

// DeriveBuffering applies the buffering priority rule. Buffering is only
// reported for an active, playing item; buffer-empty wins even when the engine
// also claims the buffer is full.
func DeriveBuffering(st EngineState) bool {
	if st.Item == nil || st.Rate <= 0 {
		return false
	}
	switch {
	case st.Item.BufferEmpty:
		return true
	case st.Item.LikelyToKeepUp || st.Item.BufferFull:
		return false
	default:
		return true
	}
}

// PlayerMetadata describes the player's now-playing track.
type PlayerMetadata struct {
	Player player.Player
}

// NowPlayingMetadata implements MetadataSource.
func (m PlayerMetadata) NowPlayingMetadata() (Metadata, bool) {
	t := m.Player.NowPlaying()
	if t == nil {
		return Metadata{}, false
	}
	md := Metadata{
		TrackID:  t.ID,
		Title:    t.Name,
		Artist:   t.ArtistName(),
		Album:    t.Album,
		Duration: t.Duration,
	}
	if t.Cover != nil {
		md.ArtURL = t.Cover.URL
	}
	return md, true
}
