package player

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-nowplaying/internal/infra/bus"
)

// infiniteQueueSize is how many suggestions are requested per track.
const infiniteQueueSize = 25

// MPD is the subset of the MPD client the service needs.
type MPD interface {
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	PlaylistInfo() ([]mpd.Attrs, error)
	ListOutputs() ([]mpd.Attrs, error)
	Clear() error
	Add(uri string) error
	Play(pos int) error
	Pause(pause bool) error
	Next() error
	Previous() error
	Stop() error
	SetRandom(on bool) error
	SetRepeat(on bool) error
	SetSingle(on bool) error
	Watch(subsystems ...string) (<-chan string, error)
}

// StatusReader exposes the sampled transport state.
type StatusReader interface {
	Playing() bool
	Buffering() bool
	Duration() float64
	CurrentTime() float64
}

// Seeker moves the playback position.
type Seeker interface {
	Seek(seconds float64) error
}

// Library resolves media-server items for tracks streamed through MPD.
type Library interface {
	TrackIDFromURI(uri string) (string, bool)
	StreamURL(trackID string) string
	ImageURL(itemID string) string
	InstantMix(ctx context.Context, trackID string, limit int) ([]Track, error)
}

// Poster publishes notifications.
type Poster interface {
	Post(name bus.Name)
}

// Service is an MPD-backed Player. MPD's idle subsystems drive the refreshes and
// every change is announced on the bus.
type Service struct {
	mpd     MPD
	bus     Poster
	state   *State
	status  StatusReader
	seeker  Seeker
	library Library

	ctx context.Context

	mu             sync.Mutex
	lastState      string
	userSkip       bool
	mixFor         string
	onItemFinished func()
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLibrary resolves Jellyfin stream URLs, covers and instant mixes.
func WithLibrary(l Library) ServiceOption {
	return func(s *Service) {
		s.library = l
	}
}

// WithStatusReader supplies the sampled transport state.
func WithStatusReader(r StatusReader) ServiceOption {
	return func(s *Service) {
		s.status = r
	}
}

// WithSeeker routes SetCurrentTime to the engine.
func WithSeeker(sk Seeker) ServiceOption {
	return func(s *Service) {
		s.seeker = sk
	}
}

// NewService creates a new player service.
func NewService(mpdClient MPD, b Poster, opts ...ServiceOption) *Service {
	s := &Service{
		mpd:   mpdClient,
		bus:   b,
		state: NewState(),
		ctx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetStatusReader connects the sampler after construction.
func (s *Service) SetStatusReader(r StatusReader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = r
}

// OnItemFinished registers the handler called when MPD finishes a song on its own.
func (s *Service) OnItemFinished(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onItemFinished = fn
}

// --- Player getters ---

// Source returns where the current queue streams from.
func (s *Service) Source() PlaybackSource { return s.state.Source() }

// PlaybackInfo returns what started the current queue.
func (s *Service) PlaybackInfo() *PlaybackInfo { return s.state.PlaybackInfo() }

// Playing reports whether the engine is running.
func (s *Service) Playing() bool {
	if r := s.statusReader(); r != nil {
		return r.Playing()
	}
	return false
}

// Buffering reports whether the engine is starved.
func (s *Service) Buffering() bool {
	if r := s.statusReader(); r != nil {
		return r.Buffering()
	}
	return false
}

// Duration returns the current item duration in seconds.
func (s *Service) Duration() float64 {
	if r := s.statusReader(); r != nil {
		return r.Duration()
	}
	return 0
}

// CurrentTime returns the playback position in seconds.
func (s *Service) CurrentTime() float64 {
	if r := s.statusReader(); r != nil {
		return r.CurrentTime()
	}
	return 0
}

// SetCurrentTime seeks the current song.
func (s *Service) SetCurrentTime(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	log.Info().Float64("position", seconds).Msg("Seek")

	var err error
	if s.seeker != nil {
		err = s.seeker.Seek(seconds)
	} else {
		err = fmt.Errorf("no seeker configured")
	}
	if err != nil {
		log.Error().Err(err).Msg("Seek failed")
	}
}

// History returns the tracks before the current one.
func (s *Service) History() []Track { return s.state.History() }

// NowPlaying returns the current track or nil.
func (s *Service) NowPlaying() *Track { return s.state.NowPlaying() }

// Queue returns the tracks after the current one.
func (s *Service) Queue() []Track { return s.state.Queue() }

// InfiniteQueue returns the suggested continuation, or nil.
func (s *Service) InfiniteQueue() []Track { return s.state.InfiniteQueue() }

// Shuffled reports whether random mode is on.
func (s *Service) Shuffled() bool { return s.state.Shuffled() }

// RepeatMode returns the repeat mode.
func (s *Service) RepeatMode() RepeatMode { return s.state.RepeatMode() }

// OutputRoute returns the enabled output.
func (s *Service) OutputRoute() AudioRoute { return s.state.OutputRoute() }

// AllowQueueLater reports whether "queue later" differs from "queue next":
// only when tracks are already queued.
func (s *Service) AllowQueueLater() bool { return len(s.state.Queue()) > 0 }

// MediaInfo queries MPD for the current stream format.
func (s *Service) MediaInfo(ctx context.Context) *MediaInfo {
	if ctx.Err() != nil {
		return nil
	}

	status, err := s.mpd.Status()
	if err != nil {
		log.Debug().Err(err).Msg("Media info: status failed")
		return nil
	}
	song, err := s.mpd.CurrentSong()
	if err != nil {
		log.Debug().Err(err).Msg("Media info: current song failed")
		return nil
	}
	return mediaInfoFromAttrs(status, song)
}

// ObserveAudioFormat records the engine's audio format and announces changes.
func (s *Service) ObserveAudioFormat(format string) {
	if s.state.SetAudioFormat(format) {
		log.Debug().Str("format", format).Msg("Audio format changed")
		s.bus.Post(BitrateChanged)
	}
}

// --- Sequencing ---

// TrackDidFinish continues into the infinite queue when MPD ran out of tracks.
func (s *Service) TrackDidFinish() {
	status, err := s.mpd.Status()
	if err != nil {
		log.Warn().Err(err).Msg("TrackDidFinish: status failed")
		return
	}
	if status["state"] != "stop" || len(s.state.Queue()) > 0 {
		return
	}

	infinite := s.state.InfiniteQueue()
	if len(infinite) == 0 {
		log.Debug().Msg("Queue finished")
		return
	}

	next := infinite[0]
	log.Info().Str("track", next.ID).Msg("Continuing with infinite queue")

	if err := s.mpd.Add(next.URI); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue infinite queue track")
		return
	}
	s.state.SetInfiniteQueue(infinite[1:])

	playlist, err := s.mpd.PlaylistInfo()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read playlist")
		return
	}
	if err := s.mpd.Play(len(playlist) - 1); err != nil {
		log.Error().Err(err).Msg("Failed to start infinite queue track")
	}
}

// --- Controls ---

// Play starts playback at the given position, or resumes if pos < 0.
func (s *Service) Play(pos int) error {
	log.Info().Int("position", pos).Msg("Play")
	if pos >= 0 {
		s.markUserSkip()
	}
	return s.mpd.Play(pos)
}

// Pause pauses playback.
func (s *Service) Pause() error {
	log.Info().Msg("Pause")
	return s.mpd.Pause(true)
}

// Resume resumes playback.
func (s *Service) Resume() error {
	log.Info().Msg("Resume")
	return s.mpd.Pause(false)
}

// Stop stops playback.
func (s *Service) Stop() error {
	log.Info().Msg("Stop")
	s.markUserSkip()
	return s.mpd.Stop()
}

// Next plays the next track.
func (s *Service) Next() error {
	log.Info().Msg("Next")
	s.markUserSkip()
	return s.mpd.Next()
}

// Previous plays the previous track.
func (s *Service) Previous() error {
	log.Info().Msg("Previous")
	s.markUserSkip()
	return s.mpd.Previous()
}

// SetShuffled sets random mode.
func (s *Service) SetShuffled(on bool) error {
	log.Info().Bool("shuffled", on).Msg("SetShuffled")
	return s.mpd.SetRandom(on)
}

// SetRepeatMode maps the repeat mode onto MPD's repeat and single flags.
func (s *Service) SetRepeatMode(mode RepeatMode) error {
	log.Info().Str("mode", string(mode)).Msg("SetRepeatMode")
	if err := s.mpd.SetRepeat(mode == RepeatQueue); err != nil {
		return err
	}
	return s.mpd.SetSingle(mode == RepeatTrack)
}

// StartQueue replaces the MPD queue with tracks and plays tracks[index].
func (s *Service) StartQueue(tracks []Track, index int, info *PlaybackInfo) error {
	if len(tracks) == 0 {
		return fmt.Errorf("no tracks to play")
	}
	if index < 0 || index >= len(tracks) {
		index = 0
	}

	log.Info().Int("tracks", len(tracks)).Int("index", index).Msg("StartQueue")

	if err := s.mpd.Clear(); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	for _, t := range tracks {
		uri := t.URI
		if uri == "" && s.library != nil {
			uri = s.library.StreamURL(t.ID)
		}
		if uri == "" {
			log.Warn().Str("track", t.ID).Msg("Track has no playable URI, skipping")
			continue
		}
		if err := s.mpd.Add(uri); err != nil {
			return fmt.Errorf("add %s: %w", t.ID, err)
		}
	}

	s.state.SetPlaybackInfo(info)
	s.state.SetInfiniteQueue(nil)
	s.bus.Post(PlaybackInfoChanged)

	s.markUserSkip()
	return s.mpd.Play(index)
}

// --- Refresh ---

// Refresh re-reads everything from MPD, posting notifications for changes.
func (s *Service) Refresh() {
	s.refreshOptions()
	s.refreshOutputs()
	s.refreshPlayer()
	s.refreshQueue()
}

// StartWatcher watches MPD subsystems and refreshes state on change.
func (s *Service) StartWatcher(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	subsystems := []string{"player", "playlist", "options", "output"}
	events, err := s.mpd.Watch(subsystems...)
	if err != nil {
		return err
	}

	s.Refresh()

	go func() {
		log.Info().Strs("subsystems", subsystems).Msg("MPD watcher started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("MPD watcher stopped")
				return
			case subsystem, ok := <-events:
				if !ok {
					log.Warn().Msg("MPD watcher channel closed")
					return
				}
				log.Debug().Str("subsystem", subsystem).Msg("MPD subsystem changed")
				s.HandleSubsystem(subsystem)
			}
		}
	}()

	return nil
}

// HandleSubsystem refreshes the state affected by an MPD idle subsystem.
func (s *Service) HandleSubsystem(subsystem string) {
	switch subsystem {
	case "player":
		s.refreshPlayer()
	case "playlist":
		s.refreshQueue()
		s.refreshPlayer()
	case "options":
		s.refreshOptions()
	case "output":
		s.refreshOutputs()
	}
}

func (s *Service) refreshPlayer() {
	status, err := s.mpd.Status()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read MPD status")
		return
	}
	song, err := s.mpd.CurrentSong()
	if err != nil {
		// Not fatal - might not have a song playing
		song = mpd.Attrs{}
	}

	track := trackFromAttrs(song, s.library)
	songID := status["songid"]
	changed := s.state.SetNowPlaying(songID, track)
	finished := s.detectFinish(status["state"], changed)

	if changed {
		log.Info().Str("song", songID).Msg("Track changed")
		s.bus.Post(TrackChanged)
		s.refreshQueue()
		s.refreshInfiniteQueue(track)
	}

	if s.state.SetSource(sourceOf(track)) {
		s.bus.Post(SourceChanged)
	}

	if finished {
		s.mu.Lock()
		fn := s.onItemFinished
		s.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

// detectFinish reports whether MPD moved on by itself: the song changed while
// playing, or playback stopped on the same song, without a user command.
func (s *Service) detectFinish(state string, songChanged bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.lastState
	s.lastState = state

	if s.userSkip {
		if songChanged || state != prev {
			s.userSkip = false
		}
		return false
	}
	if prev != "play" {
		return false
	}
	return songChanged || state == "stop"
}

func (s *Service) markUserSkip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userSkip = true
}

func (s *Service) refreshQueue() {
	playlist, err := s.mpd.PlaylistInfo()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read MPD playlist")
		return
	}
	status, err := s.mpd.Status()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read MPD status")
		return
	}

	tracks := lo.FilterMap(playlist, func(song mpd.Attrs, _ int) (Track, bool) {
		t := trackFromAttrs(song, s.library)
		if t == nil {
			return Track{}, false
		}
		return *t, true
	})

	history, queue := []Track{}, tracks
	if pos, err := strconv.Atoi(status["song"]); err == nil && pos >= 0 && pos < len(tracks) {
		history = tracks[:pos:pos]
		queue = tracks[pos+1:]
	}

	s.state.SetQueue(history, queue)
	s.bus.Post(QueueChanged)

	if s.state.SetQueueMode(status["random"] == "1", repeatModeFromStatus(status)) {
		s.bus.Post(QueueModeChanged)
	}
}

func (s *Service) refreshOptions() {
	status, err := s.mpd.Status()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read MPD status")
		return
	}
	if s.state.SetQueueMode(status["random"] == "1", repeatModeFromStatus(status)) {
		s.bus.Post(QueueModeChanged)
	}
}

func (s *Service) refreshOutputs() {
	outputs, err := s.mpd.ListOutputs()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list MPD outputs")
		return
	}

	route := AudioRoute{}
	if out, ok := lo.Find(outputs, func(o mpd.Attrs) bool { return o["outputenabled"] == "1" }); ok {
		route = AudioRoute{Name: out["outputname"], Port: out["plugin"]}
	}
	if s.state.SetOutputRoute(route) {
		log.Info().Str("output", route.Name).Msg("Output route changed")
		s.bus.Post(RouteChanged)
	}
}

// refreshInfiniteQueue fetches an instant mix for Jellyfin tracks in the background.
func (s *Service) refreshInfiniteQueue(track *Track) {
	if s.library == nil || track == nil || track.Cover == nil || track.Cover.Type != CoverRemote {
		return
	}

	s.mu.Lock()
	if s.mixFor == track.ID {
		s.mu.Unlock()
		return
	}
	s.mixFor = track.ID
	ctx := s.ctx
	s.mu.Unlock()

	go func(id string) {
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		mix, err := s.library.InstantMix(ctx, id, infiniteQueueSize)
		if err != nil {
			log.Debug().Err(err).Str("track", id).Msg("Instant mix unavailable")
			return
		}

		queued := make(map[string]bool)
		for _, t := range s.state.Queue() {
			queued[t.ID] = true
		}
		for _, t := range s.state.History() {
			queued[t.ID] = true
		}
		queued[id] = true

		suggestions := lo.Filter(mix, func(t Track, _ int) bool { return !queued[t.ID] })
		for i := range suggestions {
			if suggestions[i].URI == "" {
				suggestions[i].URI = s.library.StreamURL(suggestions[i].ID)
			}
		}

		s.mu.Lock()
		current := s.mixFor
		s.mu.Unlock()
		if current != id {
			return
		}

		s.state.SetInfiniteQueue(suggestions)
		s.bus.Post(QueueChanged)
	}(track.ID)
}

func (s *Service) statusReader() StatusReader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func sourceOf(track *Track) PlaybackSource {
	switch {
	case track == nil:
		return SourceNone
	case isStream(track.URI):
		return SourceRemote
	default:
		return SourceLocal
	}
}
