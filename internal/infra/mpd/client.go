// Package mpd wraps the gompd client and adapts MPD to the playback engine contract.
package mpd

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// ErrNotPlaying is returned when a command needs a current song.
var ErrNotPlaying = errors.New("no current song")

var errNotConnected = errors.New("not connected to MPD")

const (
	watchBuffer     = 10
	watchBackoffMin = 500 * time.Millisecond
	watchBackoffMax = 30 * time.Second
)

// Client is a command connection to MPD that redials when the server drops it.
// Idle notifications use a separate connection, see Watch.
type Client struct {
	addr     string
	password string

	mu      sync.RWMutex
	conn    *mpd.Client
	watcher *mpd.Watcher
}

// NewClient returns a client for host:port. Nothing is dialed until the
// first command or Connect.
func NewClient(host string, port int, password string) *Client {
	return &Client{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		password: password,
	}
}

// Addr returns the host:port MPD listens on.
func (c *Client) Addr() string {
	return c.addr
}

// Connect dials MPD, replacing any existing connection.
func (c *Client) Connect() error {
	_, err := c.redial(nil)
	return err
}

// Ping checks the current connection without redialing.
func (c *Client) Ping() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return errNotConnected
	}
	return conn.Ping()
}

// Close closes the command connection and the watcher.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watcher != nil {
		c.watcher.Close()
		c.watcher = nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// active returns the open connection, dialing one if there is none.
func (c *Client) active() (*mpd.Client, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn != nil {
		return conn, nil
	}
	return c.redial(nil)
}

// redial replaces stale with a new connection. When another caller has
// already replaced it, that connection is returned instead.
func (c *Client) redial(stale *mpd.Client) (*mpd.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stale != nil && c.conn != nil && c.conn != stale {
		return c.conn, nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	log.Info().Str("addr", c.addr).Msg("Connecting to MPD")
	conn, err := mpd.DialAuthenticated("tcp", c.addr, c.password)
	if err != nil {
		return nil, fmt.Errorf("connect to MPD at %s: %w", c.addr, err)
	}
	c.conn = conn
	log.Info().Msg("Connected to MPD")
	return conn, nil
}

// query runs fn on the live connection. When fn fails and the connection no
// longer answers a ping, fn is retried once on a fresh connection. Protocol
// errors on a healthy connection are returned as they are.
func query[T any](c *Client, fn func(*mpd.Client) (T, error)) (T, error) {
	var zero T

	conn, err := c.active()
	if err != nil {
		return zero, err
	}
	v, err := fn(conn)
	if err == nil || conn.Ping() == nil {
		return v, err
	}

	log.Warn().Err(err).Msg("MPD connection lost, reconnecting")
	if conn, err = c.redial(conn); err != nil {
		return zero, err
	}
	return fn(conn)
}

func (c *Client) exec(fn func(*mpd.Client) error) error {
	_, err := query(c, func(m *mpd.Client) (struct{}, error) {
		return struct{}{}, fn(m)
	})
	return err
}

// Status returns the current MPD status.
func (c *Client) Status() (mpd.Attrs, error) {
	return query(c, (*mpd.Client).Status)
}

// CurrentSong returns the current song, empty when nothing is queued.
func (c *Client) CurrentSong() (mpd.Attrs, error) {
	return query(c, (*mpd.Client).CurrentSong)
}

// PlaylistInfo returns the whole queue.
func (c *Client) PlaylistInfo() ([]mpd.Attrs, error) {
	return query(c, func(m *mpd.Client) ([]mpd.Attrs, error) {
		return m.PlaylistInfo(-1, -1)
	})
}

// ListOutputs returns the configured audio outputs.
func (c *Client) ListOutputs() ([]mpd.Attrs, error) {
	return query(c, (*mpd.Client).ListOutputs)
}

// Play starts playback at pos, or resumes the current song when pos < 0.
func (c *Client) Play(pos int) error {
	return c.exec(func(m *mpd.Client) error { return m.Play(pos) })
}

func (c *Client) Pause(pause bool) error {
	return c.exec(func(m *mpd.Client) error { return m.Pause(pause) })
}

func (c *Client) Stop() error     { return c.exec((*mpd.Client).Stop) }
func (c *Client) Next() error     { return c.exec((*mpd.Client).Next) }
func (c *Client) Previous() error { return c.exec((*mpd.Client).Previous) }
func (c *Client) Clear() error    { return c.exec((*mpd.Client).Clear) }

// Seek moves to seconds in the current song. A stopped song starts playing.
func (c *Client) Seek(seconds float64) error {
	return c.exec(func(m *mpd.Client) error {
		status, err := m.Status()
		if err != nil {
			return err
		}
		song, ok := status["song"]
		if !ok {
			return ErrNotPlaying
		}
		pos, err := strconv.Atoi(song)
		if err != nil {
			return ErrNotPlaying
		}
		return m.Command("seek %d %s", pos, strconv.FormatFloat(seconds, 'f', 3, 64)).OK()
	})
}

// SetRandom toggles shuffled playback order.
func (c *Client) SetRandom(on bool) error {
	return c.exec(func(m *mpd.Client) error { return m.Random(on) })
}

func (c *Client) SetRepeat(on bool) error {
	return c.exec(func(m *mpd.Client) error { return m.Repeat(on) })
}

// SetSingle makes MPD stop after the current song.
func (c *Client) SetSingle(on bool) error {
	return c.exec(func(m *mpd.Client) error { return m.Single(on) })
}

// Add appends uri to the queue.
func (c *Client) Add(uri string) error {
	return c.exec(func(m *mpd.Client) error { return m.Add(uri) })
}

// ReadPicture returns the picture embedded in the song's tags.
func (c *Client) ReadPicture(uri string) ([]byte, error) {
	return query(c, func(m *mpd.Client) ([]byte, error) { return m.ReadPicture(uri) })
}

// AlbumArt returns the cover file from the song's directory.
func (c *Client) AlbumArt(uri string) ([]byte, error) {
	return query(c, func(m *mpd.Client) ([]byte, error) { return m.AlbumArt(uri) })
}

// Watch opens an idle connection for subsystems and relays the names of the
// ones that change. A second call replaces the first watcher. The channel is
// closed once the watcher is closed by Close or a later Watch.
func (c *Client) Watch(subsystems ...string) (<-chan string, error) {
	watcher, err := mpd.NewWatcher("tcp", c.addr, c.password, subsystems...)
	if err != nil {
		return nil, fmt.Errorf("watch MPD at %s: %w", c.addr, err)
	}

	c.mu.Lock()
	if c.watcher != nil {
		c.watcher.Close()
	}
	c.watcher = watcher
	c.mu.Unlock()

	changes := make(chan string, watchBuffer)
	go relay(watcher, changes)
	return changes, nil
}

// relay forwards watcher events until its channels close. Consecutive errors
// back off so a dead server does not spin the loop.
func relay(w *mpd.Watcher, changes chan<- string) {
	defer close(changes)

	backoff := watchBackoffMin
	for {
		select {
		case name, ok := <-w.Event:
			if !ok {
				return
			}
			backoff = watchBackoffMin
			changes <- name
		case err, ok := <-w.Error:
			if !ok {
				return
			}
			log.Error().Err(err).Dur("retry_in", backoff).Msg("MPD watcher error")
			time.Sleep(backoff)
			backoff = min(backoff*2, watchBackoffMax)
		}
	}
}
