package player

import "sync"

// State is the mirrored player service state.
// It is safe for concurrent access; slices are replaced, never mutated in place.
type State struct {
	mu sync.RWMutex

	source        PlaybackSource
	playbackInfo  *PlaybackInfo
	songID        string
	nowPlaying    *Track
	history       []Track
	queue         []Track
	infiniteQueue []Track
	shuffled      bool
	repeatMode    RepeatMode
	outputRoute   AudioRoute
	audioFormat   string
}

// NewState creates a player state with default values.
func NewState() *State {
	return &State{
		source:     SourceNone,
		repeatMode: RepeatOff,
	}
}

// Source returns the playback source.
func (s *State) Source() PlaybackSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// SetSource updates the source and reports whether it changed.
func (s *State) SetSource(source PlaybackSource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == source {
		return false
	}
	s.source = source
	return true
}

// PlaybackInfo returns what started the current queue.
func (s *State) PlaybackInfo() *PlaybackInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playbackInfo
}

// SetPlaybackInfo replaces the playback info.
func (s *State) SetPlaybackInfo(info *PlaybackInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playbackInfo = info
}

// NowPlaying returns the current track or nil.
func (s *State) NowPlaying() *Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowPlaying
}

// SetNowPlaying updates the current track, keyed by the engine's song id,
// and reports whether it changed.
func (s *State) SetNowPlaying(songID string, track *Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.songID == songID && (s.nowPlaying == nil) == (track == nil) {
		return false
	}
	s.songID = songID
	s.nowPlaying = track
	return true
}

// History returns tracks played before the current one.
func (s *State) History() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}

// Queue returns tracks after the current one.
func (s *State) Queue() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue
}

// SetQueue replaces history and queue.
func (s *State) SetQueue(history, queue []Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
	s.queue = queue
}

// InfiniteQueue returns the suggested continuation or nil.
func (s *State) InfiniteQueue() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infiniteQueue
}

// SetInfiniteQueue replaces the suggested continuation.
func (s *State) SetInfiniteQueue(tracks []Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infiniteQueue = tracks
}

// Shuffled reports whether shuffle is on.
func (s *State) Shuffled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shuffled
}

// RepeatMode returns the repeat mode.
func (s *State) RepeatMode() RepeatMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repeatMode
}

// SetQueueMode updates shuffle and repeat, reporting whether either changed.
func (s *State) SetQueueMode(shuffled bool, mode RepeatMode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuffled == shuffled && s.repeatMode == mode {
		return false
	}
	s.shuffled = shuffled
	s.repeatMode = mode
	return true
}

// OutputRoute returns the audio output in use.
func (s *State) OutputRoute() AudioRoute {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outputRoute
}

// SetOutputRoute updates the route and reports whether it changed.
func (s *State) SetOutputRoute(route AudioRoute) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outputRoute == route {
		return false
	}
	s.outputRoute = route
	return true
}

// SetAudioFormat records the engine's audio format and reports whether it changed.
func (s *State) SetAudioFormat(format string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioFormat == format {
		return false
	}
	s.audioFormat = format
	return true
}
