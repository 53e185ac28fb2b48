// Package player provides the player domain: tracks, queue modes, media info,
// the Player contract consumed by the now-playing UI, and an MPD-backed implementation.
package player

import (
	"context"

	"github.com/edumarques81/stellar-nowplaying/internal/infra/bus"
)

// Notifications posted by a Player when the corresponding state changes.
const (
	SourceChanged       bus.Name = "player.sourceDidChange"
	TrackChanged        bus.Name = "player.trackDidChange"
	PlayingChanged      bus.Name = "player.playingDidChange"
	BufferingChanged    bus.Name = "player.bufferingDidChange"
	PlaybackInfoChanged bus.Name = "player.playbackInfoDidChange"
	TimeChanged         bus.Name = "player.timeDidChange"
	QueueChanged        bus.Name = "player.queueDidChange"
	QueueModeChanged    bus.Name = "player.queueModeDidChange"
	BitrateChanged      bus.Name = "player.bitrateDidChange"
	RouteChanged        bus.Name = "player.routeDidChange"
)

// Notifications lists every name a Player may post.
var Notifications = []bus.Name{
	SourceChanged,
	TrackChanged,
	PlayingChanged,
	BufferingChanged,
	PlaybackInfoChanged,
	TimeChanged,
	QueueChanged,
	QueueModeChanged,
	BitrateChanged,
	RouteChanged,
}

// RepeatMode controls what happens when a track or the queue ends.
type RepeatMode string

const (
	RepeatOff   RepeatMode = "off"
	RepeatTrack RepeatMode = "track"
	RepeatQueue RepeatMode = "queue"
)

// PlaybackSource tells where the current queue streams from.
type PlaybackSource string

const (
	SourceNone   PlaybackSource = "none"
	SourceLocal  PlaybackSource = "local"
	SourceRemote PlaybackSource = "remote"
)

// CoverType tells how a cover must be loaded.
type CoverType string

const (
	CoverRemote CoverType = "remote" // URL fetched over HTTP
	CoverLocal  CoverType = "local"  // MPD song URI, loaded via readpicture/albumart
)

// Cover references artwork for a track.
type Cover struct {
	Type CoverType `json:"type"`
	URL  string    `json:"url"`
}

// Track is a playable item.
type Track struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists,omitempty"`
	Album       string   `json:"album,omitempty"`
	AlbumID     string   `json:"albumId,omitempty"`
	AlbumArtist string   `json:"albumArtist,omitempty"`
	Cover       *Cover   `json:"cover,omitempty"`
	Index       int      `json:"index,omitempty"`
	Disc        int      `json:"disc,omitempty"`
	Duration    float64  `json:"duration,omitempty"` // seconds
	Favorite    bool     `json:"favorite,omitempty"`
	Released    string   `json:"released,omitempty"`
	LUFS        *float32 `json:"lufs,omitempty"`

	// URI is what the engine plays (stream URL or library path).
	URI string `json:"uri,omitempty"`
}

// ArtistName joins the track artists for display.
func (t Track) ArtistName() string {
	switch len(t.Artists) {
	case 0:
		return t.AlbumArtist
	case 1:
		return t.Artists[0]
	}
	name := t.Artists[0]
	for _, a := range t.Artists[1:] {
		name += ", " + a
	}
	return name
}

// MediaInfo describes the format of the playing stream.
// Nil pointers mean the engine does not report the value.
type MediaInfo struct {
	Codec      string `json:"codec,omitempty"`
	Bitrate    *int   `json:"bitrate,omitempty"`    // bits per second
	BitDepth   *int   `json:"bitDepth,omitempty"`   // bits
	SampleRate *int   `json:"sampleRate,omitempty"` // Hz
	Channels   *int   `json:"channels,omitempty"`
	Lossless   bool   `json:"lossless"`
}

// PlaybackInfo describes what started the current queue.
type PlaybackInfo struct {
	ContainerID   string `json:"containerId,omitempty"`
	ContainerName string `json:"containerName,omitempty"`
	Search        string `json:"search,omitempty"`
}

// AudioRoute is the output currently used for playback.
type AudioRoute struct {
	Name string `json:"name"`
	Port string `json:"port"`
}

// Player is the contract the now-playing UI reads from.
// Getters are synchronous and safe to call from any goroutine.
type Player interface {
	Source() PlaybackSource
	PlaybackInfo() *PlaybackInfo

	Playing() bool
	Buffering() bool
	Duration() float64
	CurrentTime() float64
	// SetCurrentTime seeks playback.
	SetCurrentTime(seconds float64)

	History() []Track
	NowPlaying() *Track
	Queue() []Track
	// InfiniteQueue returns nil when the server suggests no continuation.
	InfiniteQueue() []Track

	Shuffled() bool
	RepeatMode() RepeatMode

	// MediaInfo may block while the engine is queried.
	MediaInfo(ctx context.Context) *MediaInfo
	OutputRoute() AudioRoute
	AllowQueueLater() bool
}
