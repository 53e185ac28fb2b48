// Package lyrics holds time-keyed lyrics and the offline-first lookup chain.
package lyrics

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"
)

// ErrNoTrack is returned when there is no track id to look up.
var ErrNoTrack = errors.New("no track id")

// Lyrics maps a line's start offset in seconds to its text.
type Lyrics map[float64]string

// Keys returns the start offsets in ascending order.
func (l Lyrics) Keys() []float64 {
	keys := make([]float64, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}

// Lines returns the text in key order.
func (l Lyrics) Lines() []string {
	keys := l.Keys()
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = l[k]
	}
	return lines
}

// ActiveLine returns the greatest index i with keys[i] <= t, or 0 when no
// key qualifies. keys must be sorted.
func ActiveLine(keys []float64, t float64) int {
	// first index with keys[i] > t
	i := sort.Search(len(keys), func(i int) bool { return keys[i] > t })
	if i == 0 {
		return 0
	}
	return i - 1
}

// OfflineSource looks lyrics up in local storage. allowUpdate lets the source
// refresh its copy in the background. A nil result with a nil error means no data.
type OfflineSource interface {
	Lyrics(trackID string, allowUpdate bool) (Lyrics, error)
}

// RemoteSource fetches lyrics from the media server.
type RemoteSource interface {
	Lyrics(ctx context.Context, trackID string) (Lyrics, error)
}

// Chain tries the offline source first and falls back to the remote one.
type Chain struct {
	Offline OfflineSource
	Remote  RemoteSource
}

// Fetch returns the lyrics of trackID and whether any were found.
func (c Chain) Fetch(ctx context.Context, trackID string) (Lyrics, bool) {
	if trackID == "" {
		log.Debug().Err(ErrNoTrack).Msg("Lyrics lookup skipped")
		return nil, false
	}

	if c.Offline != nil {
		l, err := c.Offline.Lyrics(trackID, true)
		if err != nil {
			log.Debug().Err(err).Str("track", trackID).Msg("Offline lyrics unavailable")
		} else if len(l) > 0 {
			return l, true
		}
	}

	if c.Remote == nil || ctx.Err() != nil {
		return nil, false
	}

	l, err := c.Remote.Lyrics(ctx, trackID)
	if err != nil {
		log.Debug().Err(err).Str("track", trackID).Msg("Remote lyrics unavailable")
		return nil, false
	}
	if len(l) == 0 {
		return nil, false
	}
	return l, true
}
