package mpris

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/playback"
)

// LogDisplay logs track changes. Used where there is no session bus.
type LogDisplay struct {
	mu      sync.Mutex
	trackID string
}

// Set implements playback.Display.
func (d *LogDisplay) Set(md playback.Metadata) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if md.TrackID == d.trackID {
		return
	}
	d.trackID = md.TrackID
	log.Info().
		Str("track", md.TrackID).
		Str("title", md.Title).
		Str("artist", md.Artist).
		Msg("Now playing")
}

// Clear implements playback.Display.
func (d *LogDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.trackID == "" {
		return
	}
	d.trackID = ""
	log.Info().Msg("Now playing cleared")
}
