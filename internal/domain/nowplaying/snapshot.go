// Package nowplaying mirrors the player into the state a now-playing surface renders.
package nowplaying

import (
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
)

// Tab is the view shown in place of the cover.
type Tab string

const (
	TabCover  Tab = "cover"
	TabQueue  Tab = "queue"
	TabLyrics Tab = "lyrics"
)

// QueueTab selects which part of the queue is listed.
type QueueTab string

const (
	QueueTabHistory  QueueTab = "history"
	QueueTabQueue    QueueTab = "queue"
	QueueTabInfinite QueueTab = "infiniteQueue"
)

// DragKind identifies a slider gesture.
type DragKind string

const (
	DragSeek     DragKind = "seek"
	DragVolume   DragKind = "volume"
	DragControls DragKind = "controls"
)

// Snapshot is the UI-facing now-playing state.
// Slices and maps are replaced on update, never mutated, so copies may share them.
type Snapshot struct {
	// Presentation
	Presented              bool     `json:"presented"`
	Tab                    Tab      `json:"tab"`
	QueueTab               QueueTab `json:"queueTab"`
	DragOffset             float64  `json:"dragOffset"`
	AddToPlaylistPresented bool     `json:"addToPlaylistPresented"`
	MediaInfoToggled       bool     `json:"mediaInfoToggled"`

	SeekDragging      bool    `json:"seekDragging"`
	VolumeDragging    bool    `json:"volumeDragging"`
	ControlsDragging  bool    `json:"controlsDragging"`
	DraggedPercentage float64 `json:"draggedPercentage"`

	Colors     []colorful.Color `json:"-"`
	Highlights []colorful.Color `json:"-"`

	// Mirrored player state
	Source          player.PlaybackSource `json:"source"`
	PlaybackInfo    *player.PlaybackInfo  `json:"playbackInfo,omitempty"`
	Playing         bool                  `json:"playing"`
	Buffering       bool                  `json:"buffering"`
	Duration        float64               `json:"duration"`
	CurrentTime     float64               `json:"currentTime"`
	History         []player.Track        `json:"history"`
	NowPlaying      *player.Track         `json:"nowPlaying,omitempty"`
	Queue           []player.Track        `json:"queue"`
	InfiniteQueue   []player.Track        `json:"infiniteQueue,omitempty"`
	Shuffled        bool                  `json:"shuffled"`
	RepeatMode      player.RepeatMode     `json:"repeatMode"`
	MediaInfo       *player.MediaInfo     `json:"mediaInfo,omitempty"`
	OutputRoute     player.AudioRoute     `json:"outputRoute"`
	AllowQueueLater bool                  `json:"allowQueueLater"`

	// Lyrics
	Lyrics            lyrics.Lyrics `json:"-"`
	LyricsFetchFailed bool          `json:"lyricsFetchFailed"`
	ActiveLine        int           `json:"activeLine"`
	// Scrolling is set while the user scrolls the lyrics; auto-scroll is paused.
	Scrolling       bool `json:"scrolling"`
	ControlsVisible bool `json:"controlsVisible"`

	// NotifyPlaying flips on every playing change.
	NotifyPlaying bool `json:"notifyPlaying"`
}

// Track returns the current track while the surface is presented.
func (s Snapshot) Track() *player.Track {
	if s.Presented {
		return s.NowPlaying
	}
	return nil
}

// AddToPlaylistTrack returns the track the add-to-playlist sheet acts on.
func (s Snapshot) AddToPlaylistTrack() *player.Track {
	if !s.AddToPlaylistPresented {
		return nil
	}
	return s.Track()
}

// PlayedPercentage is the share of the track already played, 0 when the
// duration is unknown.
func (s Snapshot) PlayedPercentage() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return s.CurrentTime / s.Duration
}

// DisplayedProgress follows the seek slider while it is dragged.
func (s Snapshot) DisplayedProgress() float64 {
	if s.SeekDragging {
		return s.DraggedPercentage
	}
	return s.PlayedPercentage()
}

// LyricsKeys returns the lyric start offsets in ascending order.
func (s Snapshot) LyricsKeys() []float64 {
	return s.Lyrics.Keys()
}

// LyricsLoaded reports whether there is anything to show on the lyrics tab.
func (s Snapshot) LyricsLoaded() bool {
	return len(s.Lyrics) > 0
}

var numbers = message.NewPrinter(language.English)

// QualityText describes the stream format, e.g. "FLAC - 1,411" or "24 - 96,000"
// when the detailed view is toggled. It is empty without media info.
func (s Snapshot) QualityText() string {
	info := s.MediaInfo
	if info == nil {
		return ""
	}

	var parts []string
	if s.MediaInfoToggled && (info.BitDepth != nil || info.SampleRate != nil) {
		if info.BitDepth != nil {
			parts = append(parts, numbers.Sprintf("%d", *info.BitDepth))
		}
		if info.SampleRate != nil {
			parts = append(parts, numbers.Sprintf("%d", *info.SampleRate))
		}
	} else {
		if info.Codec != "" {
			parts = append(parts, strings.ToUpper(info.Codec))
		}
		if info.Bitrate != nil {
			parts = append(parts, numbers.Sprintf("%d", *info.Bitrate/1000))
		}
	}

	return strings.Join(parts, " - ")
}
