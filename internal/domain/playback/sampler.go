package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/bus"
)

// DefaultInterval is the sampling cadence.
const DefaultInterval = 250 * time.Millisecond

// maxEngineFailures is how many consecutive failed reads keep the last status
// before the sampler falls back to a neutral one.
const maxEngineFailures = 4

// Sampler polls the engine on a fixed tick and derives the playback status.
// Status reads are safe from any goroutine.
type Sampler struct {
	engine    Engine
	poster    Poster
	interval  time.Duration
	display   Display
	reporter  Reporter
	sequencer Sequencer
	transport Transport
	metadata  MetadataSource

	mu       sync.RWMutex
	status   Status
	failures int

	termOnce sync.Once
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithDisplay sets the OS now-playing surface.
func WithDisplay(d Display) Option {
	return func(s *Sampler) { s.display = d }
}

// WithReporter sets the position reporter.
func WithReporter(r Reporter) Option {
	return func(s *Sampler) { s.reporter = r }
}

// WithSequencer sets the queue sequencer used when an item finishes.
func WithSequencer(q Sequencer) Option {
	return func(s *Sampler) { s.sequencer = q }
}

// WithTransport sets the engine controls.
func WithTransport(t Transport) Option {
	return func(s *Sampler) { s.transport = t }
}

// WithMetadata sets the now-playing metadata source.
func WithMetadata(m MetadataSource) Option {
	return func(s *Sampler) { s.metadata = m }
}

// NewSampler creates a sampler for engine, posting changes to poster.
func NewSampler(engine Engine, poster Poster, opts ...Option) *Sampler {
	s := &Sampler{
		engine:   engine,
		poster:   poster,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run samples on every tick until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("Playback sampler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Playback sampler stopped")
			return
		case <-ticker.C:
			s.Sample(ctx)
		}
	}
}

// Sample runs one tick: display, report, playing, buffering, then time and duration.
// A failed engine read skips the tick until failures pile up.
func (s *Sampler) Sample(ctx context.Context) {
	st, err := s.engine.State(ctx)
	if err != nil {
		if s.failed() < maxEngineFailures {
			log.Debug().Err(err).Msg("Engine state unavailable, keeping last status")
			return
		}
		log.Debug().Err(err).Msg("Engine state unavailable")
		st = EngineState{}
	} else {
		s.recovered()
	}
	playing := st.Rate > 0

	md, hasTrack := s.nowPlaying()
	if hasTrack {
		md.Position = st.CurrentTime
		md.Playing = playing
		if st.Item != nil && st.Item.Duration > 0 {
			md.Duration = st.Item.Duration
		}
	}

	// OS surface
	if s.display != nil && hasTrack {
		s.display.Set(md)
	}

	// media server progress
	if s.reporter != nil && hasTrack {
		s.reporter.ReportScheduled(Report{
			TrackID:  md.TrackID,
			Position: st.CurrentTime,
			Playing:  playing,
		})
	}

	if s.setPlaying(playing) {
		s.post(player.PlayingChanged)
	}

	if s.setBuffering(DeriveBuffering(st)) {
		s.post(player.BufferingChanged)
	}

	// time and duration are posted on every tick
	duration := 0.0
	if st.Item != nil {
		duration = st.Item.Duration
	}
	s.mu.Lock()
	s.status.CurrentTime = st.CurrentTime
	s.status.Duration = duration
	s.mu.Unlock()
	s.post(player.TimeChanged)
}

// failed counts a failed engine read and returns the consecutive total.
func (s *Sampler) failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	if s.failures == maxEngineFailures {
		log.Warn().Int("failures", s.failures).Msg("Engine unreachable, playback status reset")
	}
	return s.failures
}

func (s *Sampler) recovered() {
	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
}

// Status returns the last derived status.
func (s *Sampler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Playing reports whether the engine is running.
func (s *Sampler) Playing() bool { return s.Status().Playing }

// Buffering reports whether playback is stalled waiting for data.
func (s *Sampler) Buffering() bool { return s.Status().Buffering }

// CurrentTime returns the playback position in seconds.
func (s *Sampler) CurrentTime() float64 { return s.Status().CurrentTime }

// Duration returns the current item duration in seconds.
func (s *Sampler) Duration() float64 { return s.Status().Duration }

// HandleItemFinished restarts the item in repeat-track mode, otherwise hands
// over to the sequencer.
func (s *Sampler) HandleItemFinished() {
	if s.sequencer == nil {
		return
	}

	if s.sequencer.RepeatMode() == player.RepeatTrack {
		log.Debug().Msg("Item finished, repeating track")
		if s.transport == nil {
			return
		}
		if err := s.transport.Seek(0); err != nil {
			log.Warn().Err(err).Msg("Repeat: seek failed")
		}
		if err := s.transport.SetPlaying(true); err != nil {
			log.Warn().Err(err).Msg("Repeat: play failed")
		}
		return
	}

	log.Debug().Msg("Item finished, advancing")
	s.sequencer.TrackDidFinish()
}

// HandleInterruption handles an audio-session interruption. A began
// interruption stops playback; an ended one resumes when shouldResume is set.
func (s *Sampler) HandleInterruption(began, shouldResume bool) {
	switch {
	case began:
		log.Info().Msg("Audio interruption began")
		s.forcePlaying(false)
	case shouldResume:
		log.Info().Msg("Audio interruption ended, resuming")
		s.forcePlaying(true)
	default:
		log.Info().Msg("Audio interruption ended")
	}
}

// HandleTermination clears the now-playing display. Safe to call more than once.
func (s *Sampler) HandleTermination() {
	s.termOnce.Do(func() {
		if s.display != nil {
			s.display.Clear()
		}
	})
}

func (s *Sampler) forcePlaying(playing bool) {
	if s.transport != nil {
		if err := s.transport.SetPlaying(playing); err != nil {
			log.Warn().Err(err).Bool("playing", playing).Msg("Failed to set playing")
		}
	}

	changed := s.setPlaying(playing)
	if !playing {
		if s.setBuffering(false) {
			s.post(player.BufferingChanged)
		}
	}
	if changed {
		s.post(player.PlayingChanged)
	}
}

func (s *Sampler) setPlaying(playing bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Playing == playing {
		return false
	}
	s.status.Playing = playing
	return true
}

func (s *Sampler) setBuffering(buffering bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Buffering == buffering {
		return false
	}
	s.status.Buffering = buffering
	return true
}

func (s *Sampler) nowPlaying() (Metadata, bool) {
	if s.metadata == nil {
		return Metadata{}, false
	}
	return s.metadata.NowPlayingMetadata()
}

func (s *Sampler) post(name bus.Name) {
	if s.poster != nil {
		s.poster.Post(name)
	}
}
