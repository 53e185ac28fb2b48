package jellyfin

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/playback"
)

// DefaultReportInterval is how often progress is sent while nothing changes.
const DefaultReportInterval = 10 * time.Second

const reportTimeout = 10 * time.Second

// Reporter turns the sampler's per-tick reports into Jellyfin session updates.
// It sends a start event on track change, then progress every interval or
// when the paused state flips. Requests run in the background; a tick that
// arrives while one is in flight is dropped.
type Reporter struct {
	client   *Client
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	trackID   string
	sessionID string
	paused    bool
	lastSent  time.Time
	inFlight  bool
	wg        sync.WaitGroup
}

// NewReporter creates a reporter. A non-positive interval uses the default.
func NewReporter(client *Client, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	return &Reporter{
		client:   client,
		interval: interval,
		now:      time.Now,
	}
}

// ReportScheduled implements playback.Reporter.
func (r *Reporter) ReportScheduled(rep playback.Report) {
	if rep.TrackID == "" {
		return
	}

	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return
	}

	now := r.now()
	paused := !rep.Playing
	path := ""
	switch {
	case rep.TrackID != r.trackID:
		r.trackID = rep.TrackID
		r.sessionID = uuid.NewString()
		path = "/Sessions/Playing"
	case paused != r.paused || now.Sub(r.lastSent) >= r.interval:
		path = "/Sessions/Playing/Progress"
	default:
		r.mu.Unlock()
		return
	}

	r.paused = paused
	r.lastSent = now
	r.inFlight = true
	body := PlaybackProgress{
		ItemID:        rep.TrackID,
		PositionTicks: int64(rep.Position * ticksPerSecond),
		IsPaused:      paused,
		CanSeek:       true,
		PlaySessionID: r.sessionID,
		PlayMethod:    "DirectStream",
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			r.inFlight = false
			r.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()

		if err := r.client.post(ctx, path, body); err != nil {
			log.Debug().Err(err).Str("track", body.ItemID).Str("path", path).Msg("Playback report failed")
		}
	}()
}

// Wait blocks until in-flight reports finish.
func (r *Reporter) Wait() {
	r.wg.Wait()
}
