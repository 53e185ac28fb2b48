// Package socketio pushes the now-playing snapshot to web and kiosk clients
// and accepts their commands over Socket.io.
package socketio

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/nowplaying"
)

const (
	// DefaultDebounce is the quiet window before a snapshot change is broadcast.
	DefaultDebounce = 50 * time.Millisecond

	// DefaultMaxBroadcastDelay bounds how long a change may wait for a quiet window.
	DefaultMaxBroadcastDelay = 250 * time.Millisecond
)

// NowPlaying is the state and setter surface clients drive.
type NowPlaying interface {
	Snapshot() nowplaying.Snapshot
	OnChange(fn func(nowplaying.Snapshot))

	SelectTab(tab nowplaying.Tab)
	SetPresented(presented bool)
	SetPosition(percentage float64)
	DidInteract()
	SetQueueTab(tab nowplaying.QueueTab)
	SetDragging(kind nowplaying.DragKind, dragging bool)
	ToggleMediaInfo()
}

// Controls are the transport commands clients may send.
type Controls interface {
	Play(pos int) error
	Pause() error
	Resume() error
	Next() error
	Previous() error
}

// Interrupter receives audio session interruptions reported by a client.
type Interrupter interface {
	HandleInterruption(began, shouldResume bool)
}

// Server handles Socket.io connections and events.
type Server struct {
	io          *socket.Server
	nowPlaying  NowPlaying
	controls    Controls
	interrupter Interrupter
	debouncer   *BroadcastDebouncer
	limiter     *ConnectionLimiter
	commands    map[string]func(args ...any)

	debounce time.Duration
	maxDelay time.Duration
	maxConns int

	mu      sync.RWMutex
	clients map[string]*socket.Socket
	diff    stateDiff
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithInterrupter forwards "interruption" events to i.
func WithInterrupter(i Interrupter) ServerOption {
	return func(s *Server) {
		s.interrupter = i
	}
}

// WithDebounce sets the broadcast quiet window and its upper bound.
func WithDebounce(window, maxDelay time.Duration) ServerOption {
	return func(s *Server) {
		if window > 0 {
			s.debounce = window
		}
		if maxDelay > 0 {
			s.maxDelay = maxDelay
		}
	}
}

// WithMaxRemoteClients caps concurrent non-loopback clients.
func WithMaxRemoteClients(n int) ServerOption {
	return func(s *Server) {
		s.maxConns = n
	}
}

// NewServer creates a new Socket.io server and starts following np.
func NewServer(np NowPlaying, controls Controls, opts ...ServerOption) (*Server, error) {
	// Configure Socket.io server options
	sopts := socket.DefaultServerOptions()
	sopts.SetPingTimeout(20 * time.Second)
	sopts.SetPingInterval(25 * time.Second)
	sopts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	s := &Server{
		io:         socket.NewServer(nil, sopts),
		nowPlaying: np,
		controls:   controls,
		debounce:   DefaultDebounce,
		maxDelay:   DefaultMaxBroadcastDelay,
		clients:    make(map[string]*socket.Socket),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.limiter = NewConnectionLimiter(s.maxConns)
	s.debouncer = NewBroadcastDebouncer(s.debounce, s.maxDelay, s.BroadcastNowPlaying)
	s.commands = s.commandTable()

	s.setupHandlers()
	np.OnChange(func(nowplaying.Snapshot) { s.debouncer.Trigger() })

	return s, nil
}

// setupHandlers registers the connection handler and per-client events.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		addr := client.Handshake().Address

		log.Info().Str("id", clientID).Str("addr", addr).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		if evicted := s.limiter.TryAdd(clientID, addr); evicted != "" {
			s.evict(evicted)
		}

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushNowPlaying(client)
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
			s.limiter.Remove(clientID)
		})

		client.On("getNowPlaying", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getNowPlaying")
			s.pushNowPlaying(client)
		})

		for event := range s.commands {
			client.On(event, func(args ...any) {
				log.Debug().Str("id", clientID).Str("event", event).Interface("data", args).Msg("Command")
				s.dispatch(event, args...)
			})
		}
	})
}

// commandTable maps client events to now-playing setters and controls.
func (s *Server) commandTable() map[string]func(args ...any) {
	return map[string]func(args ...any){
		"selectTab": func(args ...any) {
			if tab, ok := stringArg(args); ok {
				s.nowPlaying.SelectTab(nowplaying.Tab(tab))
			}
		},
		"setPresented": func(args ...any) {
			if v, ok := boolArg(args); ok {
				s.nowPlaying.SetPresented(v)
			}
		},
		"setPosition": func(args ...any) {
			if p, ok := floatArg(args); ok && p >= 0 && p <= 1 {
				s.nowPlaying.SetPosition(p)
			}
		},
		"didInteract": func(args ...any) {
			s.nowPlaying.DidInteract()
		},
		"setQueueTab": func(args ...any) {
			if tab, ok := stringArg(args); ok {
				s.nowPlaying.SetQueueTab(nowplaying.QueueTab(tab))
			}
		},
		"setDragging": func(args ...any) {
			m := mapArg(args)
			kind, _ := m["kind"].(string)
			dragging, ok := m["value"].(bool)
			if kind != "" && ok {
				s.nowPlaying.SetDragging(nowplaying.DragKind(kind), dragging)
			}
		},
		"toggleMediaInfo": func(args ...any) {
			s.nowPlaying.ToggleMediaInfo()
		},
		"play": func(args ...any) {
			var err error
			if pos, ok := floatArg(args); ok {
				err = s.controls.Play(int(pos))
			} else {
				err = s.controls.Resume()
			}
			if err != nil {
				log.Error().Err(err).Msg("Play failed")
			}
		},
		"pause": func(args ...any) {
			if err := s.controls.Pause(); err != nil {
				log.Error().Err(err).Msg("Pause failed")
			}
		},
		"next": func(args ...any) {
			if err := s.controls.Next(); err != nil {
				log.Error().Err(err).Msg("Next failed")
			}
		},
		"prev": func(args ...any) {
			if err := s.controls.Previous(); err != nil {
				log.Error().Err(err).Msg("Previous failed")
			}
		},
		"interruption": func(args ...any) {
			if s.interrupter == nil {
				return
			}
			m := mapArg(args)
			began, _ := m["began"].(bool)
			shouldResume, _ := m["shouldResume"].(bool)
			s.interrupter.HandleInterruption(began, shouldResume)
		},
	}
}

// dispatch runs the command for event. Unknown events are ignored.
func (s *Server) dispatch(event string, args ...any) {
	if cmd, ok := s.commands[event]; ok {
		cmd(args...)
	}
}

// evict disconnects a client pushed out by the connection limit.
func (s *Server) evict(clientID string) {
	s.mu.Lock()
	client := s.clients[clientID]
	delete(s.clients, clientID)
	s.mu.Unlock()

	if client == nil {
		return
	}
	log.Info().Str("id", clientID).Msg("Evicting client over the connection limit")
	client.Disconnect(true)
}

// pushNowPlaying sends the full snapshot to one client.
func (s *Server) pushNowPlaying(client *socket.Socket) {
	client.Emit(EventNowPlaying, NewNowPlayingPayload(s.nowPlaying.Snapshot()))
}

// BroadcastNowPlaying sends the snapshot to all clients, or only the time
// fields when nothing else changed since the last broadcast.
func (s *Server) BroadcastNowPlaying() {
	snap := s.nowPlaying.Snapshot()

	s.mu.Lock()
	event, data := s.diff.next(snap)
	clientCount := len(s.clients)
	s.mu.Unlock()

	s.io.Emit(event, data)

	if event == EventNowPlaying {
		log.Debug().Int("clients", clientCount).Bool("presented", snap.Presented).Msg("Broadcast now playing")
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	if m, ok := args[0].(map[string]any); ok {
		if v, ok := m["value"]; ok {
			return v
		}
	}
	return args[0]
}

func mapArg(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	m, _ := args[0].(map[string]any)
	return m
}

func stringArg(args []any) (string, bool) {
	v, ok := firstArg(args).(string)
	return v, ok && v != ""
}

func boolArg(args []any) (bool, bool) {
	v, ok := firstArg(args).(bool)
	return v, ok
}

// floatArg accepts JSON numbers and Go integers.
func floatArg(args []any) (float64, bool) {
	switch v := firstArg(args).(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
