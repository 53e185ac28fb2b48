package mpd

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/playback"
)

// StatusSource is the part of the client the engine polls.
type StatusSource interface {
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
}

// Controls is the part of the client the engine drives.
type Controls interface {
	Seek(seconds float64) error
	Play(pos int) error
	Pause(pause bool) error
}

// Engine adapts MPD to the playback engine and transport contracts.
//
// MPD has no buffer flags, so they are inferred: a local file is always
// "full"; a stream that is playing with no bitrate yet is "empty"; a stream
// with a bitrate is keeping up. A failed song read does not fail the state;
// the song is then treated as it was last seen, or as a local file.
type Engine struct {
	status   StatusSource
	controls Controls

	mu       sync.Mutex
	format   string
	onFormat func(format string)

	// kind of the last song read, reused when the song read fails
	songID string
	stream bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFormatHook is called whenever MPD's output audio format changes.
func WithFormatHook(fn func(format string)) EngineOption {
	return func(e *Engine) {
		e.onFormat = fn
	}
}

// NewEngine creates an engine adapter.
func NewEngine(status StatusSource, controls Controls, opts ...EngineOption) *Engine {
	e := &Engine{status: status, controls: controls}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State implements playback.Engine.
func (e *Engine) State(ctx context.Context) (playback.EngineState, error) {
	if err := ctx.Err(); err != nil {
		return playback.EngineState{}, err
	}

	status, err := e.status.Status()
	if err != nil {
		return playback.EngineState{}, err
	}

	st := playback.EngineState{
		CurrentTime: parseFloat(status["elapsed"]),
	}
	state := status["state"]
	if state == "play" {
		st.Rate = 1
	}

	e.observeFormat(status["audio"])

	if state == "stop" || status["songid"] == "" {
		return st, nil
	}

	item := &playback.Item{Duration: parseFloat(status["duration"])}
	stream, known := e.songKind(status["songid"])
	if song, err := e.status.CurrentSong(); err == nil {
		if item.Duration == 0 {
			item.Duration = parseFloat(song["duration"])
		}
		stream = isStream(song["file"])
		e.rememberSong(status["songid"], stream)
	} else {
		log.Debug().Err(err).Str("songid", status["songid"]).Bool("known", known).Msg("Current song unavailable")
	}

	if stream {
		kbps, _ := strconv.Atoi(status["bitrate"])
		item.BufferEmpty = state == "play" && kbps == 0
		item.LikelyToKeepUp = kbps > 0
	} else {
		item.BufferFull = true
	}
	st.Item = item

	return st, nil
}

func isStream(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// songKind reports whether songID was last seen as a stream.
func (e *Engine) songKind(songID string) (stream, known bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if songID == "" || songID != e.songID {
		return false, false
	}
	return e.stream, true
}

func (e *Engine) rememberSong(songID string, stream bool) {
	e.mu.Lock()
	e.songID = songID
	e.stream = stream
	e.mu.Unlock()
}

// Seek implements playback.Transport.
func (e *Engine) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	return e.controls.Seek(seconds)
}

// SetPlaying implements playback.Transport. Resuming a stopped song restarts it.
func (e *Engine) SetPlaying(playing bool) error {
	if !playing {
		return e.controls.Pause(true)
	}

	status, err := e.status.Status()
	if err != nil {
		return err
	}
	if status["state"] == "stop" {
		return e.controls.Play(-1)
	}
	return e.controls.Pause(false)
}

func (e *Engine) observeFormat(format string) {
	e.mu.Lock()
	if format == "" || format == e.format {
		e.mu.Unlock()
		return
	}
	e.format = format
	fn := e.onFormat
	e.mu.Unlock()

	if fn != nil {
		fn(format)
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
