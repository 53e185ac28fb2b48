package nowplaying

import (
	"context"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/visuals"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/bus"
)

const (
	// DefaultScrollTimeout is how long lyrics controls stay visible after an interaction.
	DefaultScrollTimeout = 4 * time.Second

	// DefaultFetchTimeout bounds each per-track lookup.
	DefaultFetchTimeout = 30 * time.Second

	dominantColorCount = 10
)

// Subscriber is the notification bus the synchronizer listens on.
type Subscriber interface {
	Subscribe(name bus.Name, handler bus.Handler) bus.Token
	Unsubscribe(token bus.Token)
}

// Loop runs closures on the goroutine that owns the snapshot.
type Loop interface {
	Post(fn func()) bool
}

// LyricsFetcher looks lyrics up by track id; ok is false when none were found.
type LyricsFetcher interface {
	Fetch(ctx context.Context, trackID string) (l lyrics.Lyrics, ok bool)
}

// ColorExtractor returns the n most dominant colors of a cover.
type ColorExtractor interface {
	TopDominantColors(ctx context.Context, n int, cover *player.Cover) ([]colorful.Color, error)
}

// Synchronizer keeps a Snapshot in step with the player.
//
// Bus handlers only post closures to the loop; every snapshot field is read
// and written on the loop goroutine. Per-track lookups run on their own
// goroutines and hand their result back through the loop, where results of a
// superseded track are dropped.
type Synchronizer struct {
	player        player.Player
	bus           Subscriber
	loop          Loop
	lyrics        LyricsFetcher
	colors        ColorExtractor
	scrollTimeout time.Duration
	fetchTimeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// owned by the loop
	snap        Snapshot
	generation  uint64
	fetchCtx    context.Context
	cancelFetch context.CancelFunc
	scroll      scrollTimer

	mu        sync.Mutex
	published Snapshot
	hooks     []func(Snapshot)
	tokens    []bus.Token
	closed    bool
	wg        sync.WaitGroup
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLyrics sets the lyrics lookup; without one lyrics always fail.
func WithLyrics(f LyricsFetcher) Option {
	return func(s *Synchronizer) {
		s.lyrics = f
	}
}

// WithColors sets the cover color extractor; without one colors are never set.
func WithColors(c ColorExtractor) Option {
	return func(s *Synchronizer) {
		s.colors = c
	}
}

// WithScrollTimeout overrides how long lyrics controls stay visible.
func WithScrollTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.scrollTimeout = d
		}
	}
}

// WithFetchTimeout bounds each per-track lookup.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// New creates a synchronizer seeded from the player's current state.
// It does not listen to anything until Start is called.
func New(p player.Player, b Subscriber, loop Loop, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		player:        p,
		bus:           b,
		loop:          loop,
		scrollTimeout: DefaultScrollTimeout,
		fetchTimeout:  DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.snap = Snapshot{
		Tab:             TabCover,
		QueueTab:        QueueTabQueue,
		Source:          p.Source(),
		PlaybackInfo:    p.PlaybackInfo(),
		Playing:         p.Playing(),
		Buffering:       p.Buffering(),
		Duration:        p.Duration(),
		CurrentTime:     p.CurrentTime(),
		History:         p.History(),
		NowPlaying:      p.NowPlaying(),
		Queue:           p.Queue(),
		InfiniteQueue:   p.InfiniteQueue(),
		Shuffled:        p.Shuffled(),
		RepeatMode:      p.RepeatMode(),
		OutputRoute:     p.OutputRoute(),
		AllowQueueLater: p.AllowQueueLater(),
		Scrolling:       true,
		ControlsVisible: true,
	}
	s.published = s.snap

	return s
}

// Start subscribes to every player notification.
func (s *Synchronizer) Start() {
	handlers := map[bus.Name]func(){
		player.SourceChanged:       s.onSourceChanged,
		player.TrackChanged:        s.onTrackChanged,
		player.PlayingChanged:      s.onPlayingChanged,
		player.BufferingChanged:    s.onBufferingChanged,
		player.PlaybackInfoChanged: s.onPlaybackInfoChanged,
		player.TimeChanged:         s.onTimeChanged,
		player.QueueChanged:        s.onQueueChanged,
		player.QueueModeChanged:    s.onQueueModeChanged,
		player.BitrateChanged:      s.onBitrateChanged,
		player.RouteChanged:        s.onRouteChanged,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.tokens) > 0 {
		return
	}
	for _, name := range player.Notifications {
		handle := handlers[name]
		s.tokens = append(s.tokens, s.bus.Subscribe(name, func(bus.Notification) {
			s.loop.Post(handle)
		}))
	}

	log.Debug().Int("subscriptions", len(s.tokens)).Msg("Now playing synchronizer started")
}

// Close unsubscribes, cancels pending lookups and waits for them to return.
// It must not be called from the loop goroutine.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tokens := s.tokens
	s.tokens = nil
	s.mu.Unlock()

	for _, t := range tokens {
		s.bus.Unsubscribe(t)
	}

	s.cancel()
	s.loop.Post(s.scroll.stop)
	s.wg.Wait()
}

// Snapshot returns the state most recently published by the loop.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}

// OnChange registers fn to run on the loop after every snapshot change.
func (s *Synchronizer) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// changed publishes the snapshot. Loop only.
func (s *Synchronizer) changed() {
	snap := s.snap

	s.mu.Lock()
	s.published = snap
	hooks := s.hooks
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(snap)
	}
}

// update runs fn on the loop and publishes the result.
func (s *Synchronizer) update(fn func()) {
	s.loop.Post(func() {
		fn()
		s.changed()
	})
}

func (s *Synchronizer) onSourceChanged() {
	s.snap.Source = s.player.Source()
	s.changed()
}

func (s *Synchronizer) onPlayingChanged() {
	s.snap.Playing = s.player.Playing()
	s.snap.NotifyPlaying = !s.snap.NotifyPlaying
	s.changed()
}

func (s *Synchronizer) onBufferingChanged() {
	s.snap.Buffering = s.player.Buffering()
	s.changed()
}

func (s *Synchronizer) onPlaybackInfoChanged() {
	s.snap.PlaybackInfo = s.player.PlaybackInfo()
	s.changed()
}

func (s *Synchronizer) onTimeChanged() {
	s.snap.Duration = s.player.Duration()
	s.snap.CurrentTime = s.player.CurrentTime()
	s.updateLyricsIndex()
	s.changed()
}

func (s *Synchronizer) onQueueChanged() {
	s.snap.History = s.player.History()
	s.snap.Queue = s.player.Queue()
	s.snap.InfiniteQueue = s.player.InfiniteQueue()
	s.snap.AllowQueueLater = s.player.AllowQueueLater()

	if len(s.snap.Queue) == 0 && len(s.snap.History) == 0 {
		s.snap.QueueTab = QueueTabQueue
	}

	s.snap.Shuffled = s.player.Shuffled()
	s.snap.RepeatMode = s.player.RepeatMode()
	s.changed()
}

func (s *Synchronizer) onQueueModeChanged() {
	s.snap.Shuffled = s.player.Shuffled()
	s.snap.RepeatMode = s.player.RepeatMode()
	s.changed()
}

func (s *Synchronizer) onRouteChanged() {
	s.snap.OutputRoute = s.player.OutputRoute()
	s.changed()
}

func (s *Synchronizer) onBitrateChanged() {
	ctx, gen := s.fetchScope()
	s.spawn(func() { s.fetchMediaInfo(ctx, gen) })
}

// onTrackChanged clears everything derived from the previous track before
// any lookup for the new one starts.
func (s *Synchronizer) onTrackChanged() {
	track := s.player.NowPlaying()
	if s.snap.NowPlaying == nil && track != nil {
		s.setPresented(true)
	}

	s.snap.NowPlaying = track
	s.snap.MediaInfo = nil
	s.snap.Lyrics = lyrics.Lyrics{}
	s.snap.LyricsFetchFailed = false
	s.snap.ActiveLine = 0

	ctx, gen := s.nextFetchScope()
	cover := s.presentedCover()
	s.changed()

	s.spawn(func() { s.fetchMediaInfo(ctx, gen) })
	if cover != nil {
		s.spawn(func() { s.fetchColors(ctx, gen, cover) })
	}
	s.spawn(func() { s.fetchLyrics(ctx, gen) })
}

func (s *Synchronizer) presentedCover() *player.Cover {
	if t := s.snap.Track(); t != nil {
		return t.Cover
	}
	return nil
}

// nextFetchScope cancels lookups of the previous track and opens a new scope. Loop only.
func (s *Synchronizer) nextFetchScope() (context.Context, uint64) {
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.generation++
	s.fetchCtx, s.cancelFetch = context.WithCancel(s.ctx)
	return s.fetchCtx, s.generation
}

// fetchScope returns the scope of the current track, opening one if needed. Loop only.
func (s *Synchronizer) fetchScope() (context.Context, uint64) {
	if s.fetchCtx == nil {
		return s.nextFetchScope()
	}
	return s.fetchCtx, s.generation
}

// spawn runs fn on its own goroutine unless the synchronizer is closed.
func (s *Synchronizer) spawn(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// apply writes a lookup result back on the loop unless its track was superseded.
func (s *Synchronizer) apply(gen uint64, what string, fn func()) {
	s.loop.Post(func() {
		if gen != s.generation {
			log.Debug().Str("lookup", what).Uint64("generation", gen).Msg("Discarding superseded result")
			return
		}
		fn()
		s.changed()
	})
}

func (s *Synchronizer) fetchMediaInfo(ctx context.Context, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	info := s.player.MediaInfo(ctx)
	if ctx.Err() != nil {
		return
	}

	s.apply(gen, "media info", func() {
		s.snap.MediaInfo = info
		s.snap.MediaInfoToggled = info != nil && info.Lossless
	})
}

func (s *Synchronizer) fetchColors(ctx context.Context, gen uint64, cover *player.Cover) {
	if s.colors == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	dominant, err := s.colors.TopDominantColors(ctx, dominantColorCount, cover)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Debug().Err(err).Str("cover", cover.URL).Msg("Color extraction failed")
		s.apply(gen, "colors", func() {
			s.snap.Colors = []colorful.Color{}
			s.snap.Highlights = []colorful.Color{}
		})
		return
	}

	highlights, background := visuals.Partition(dominant)
	s.apply(gen, "colors", func() {
		s.snap.Highlights = highlights
		s.snap.Colors = background
	})
}

func (s *Synchronizer) fetchLyrics(ctx context.Context, gen uint64) {
	// read the live track, it may have moved on since the event
	var trackID string
	if t := s.player.NowPlaying(); t != nil {
		trackID = t.ID
	}
	if trackID == "" {
		s.apply(gen, "lyrics", func() {
			s.snap.LyricsFetchFailed = true
		})
		return
	}

	var (
		result lyrics.Lyrics
		ok     bool
	)
	if s.lyrics != nil {
		ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		result, ok = s.lyrics.Fetch(ctx, trackID)
		cancel()
	}
	if ctx.Err() != nil {
		return
	}
	if !ok {
		result = lyrics.Lyrics{}
	}

	s.apply(gen, "lyrics", func() {
		s.snap.LyricsFetchFailed = !ok
		s.snap.Lyrics = result
		s.updateLyricsIndex()
	})
}

// updateLyricsIndex points ActiveLine at the line for the current position. Loop only.
func (s *Synchronizer) updateLyricsIndex() {
	if len(s.snap.Lyrics) == 0 {
		s.snap.ActiveLine = 0
		return
	}
	s.snap.ActiveLine = lyrics.ActiveLine(s.snap.Lyrics.Keys(), s.player.CurrentTime())
}
