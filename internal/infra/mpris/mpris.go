// Package mpris publishes the now-playing track on the D-Bus session bus so
// desktop media controls can show and drive it.
package mpris

import (
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/playback"
)

const (
	busNamePrefix = "org.mpris.MediaPlayer2."
	objectPath    = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootIface     = "org.mpris.MediaPlayer2"
	playerIface   = "org.mpris.MediaPlayer2.Player"
	trackPrefix   = "/org/stellar/nowplaying/track/"
)

// Controls is what media keys drive.
type Controls interface {
	Play(pos int) error
	Pause() error
	Resume() error
	Stop() error
	Next() error
	Previous() error
}

// setter is the part of prop.Properties the display writes through.
type setter interface {
	SetMust(iface, property string, v interface{})
}

// Display is an MPRIS media player exported on the session bus.
type Display struct {
	conn  *dbus.Conn
	props setter

	mu      sync.Mutex
	trackID string
	title   string
	status  string
	playing bool
	cleared bool
}

// Export claims org.mpris.MediaPlayer2.<name> on the session bus.
func Export(name string, controls Controls) (*Display, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	busName := busNamePrefix + name
	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("request name %s: %w", busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", busName)
	}

	d := &Display{conn: conn}

	if controls != nil {
		if err := conn.Export(&playerMethods{controls: controls, display: d}, objectPath, playerIface); err != nil {
			conn.Close()
			return nil, fmt.Errorf("export player methods: %w", err)
		}
	}
	if err := conn.Export(rootMethods{}, objectPath, rootIface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("export root methods: %w", err)
	}

	props, err := prop.Export(conn, objectPath, propertyMap(name, controls != nil))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("export properties: %w", err)
	}
	d.props = props

	log.Info().Str("name", busName).Msg("MPRIS display exported")
	return d, nil
}

func newDisplay(props setter) *Display {
	return &Display{props: props}
}

func propertyMap(identity string, canControl bool) prop.Map {
	ro := func(v interface{}) *prop.Prop {
		return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitTrue}
	}
	return prop.Map{
		rootIface: {
			"CanQuit":             ro(false),
			"CanRaise":            ro(false),
			"HasTrackList":        ro(false),
			"Identity":            ro(identity),
			"SupportedUriSchemes": ro([]string{}),
			"SupportedMimeTypes":  ro([]string{}),
		},
		playerIface: {
			"PlaybackStatus": ro("Stopped"),
			"LoopStatus":     ro("None"),
			"Rate":           ro(1.0),
			"Shuffle":        ro(false),
			"Metadata":       ro(map[string]dbus.Variant{}),
			"Volume":         ro(1.0),
			"Position":       {Value: int64(0), Writable: false, Emit: prop.EmitFalse},
			"MinimumRate":    ro(1.0),
			"MaximumRate":    ro(1.0),
			"CanGoNext":      ro(canControl),
			"CanGoPrevious":  ro(canControl),
			"CanPlay":        ro(canControl),
			"CanPause":       ro(canControl),
			"CanSeek":        ro(false),
			"CanControl":     ro(canControl),
		},
	}
}

// Set implements playback.Display. Metadata is only re-emitted when the
// track changes; position is updated silently as MPRIS expects.
func (d *Display) Set(md playback.Metadata) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cleared = false
	d.playing = md.Playing

	if md.TrackID != d.trackID || md.Title != d.title {
		d.trackID = md.TrackID
		d.title = md.Title
		d.props.SetMust(playerIface, "Metadata", metadataMap(md))
	}

	status := "Paused"
	if md.Playing {
		status = "Playing"
	}
	if status != d.status {
		d.status = status
		d.props.SetMust(playerIface, "PlaybackStatus", status)
	}

	d.props.SetMust(playerIface, "Position", micros(md.Position))
}

// Clear implements playback.Display. Clearing twice is a no-op.
func (d *Display) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cleared {
		return
	}
	d.cleared = true
	d.trackID, d.title, d.status, d.playing = "", "", "Stopped", false

	d.props.SetMust(playerIface, "Metadata", map[string]dbus.Variant{})
	d.props.SetMust(playerIface, "PlaybackStatus", "Stopped")
}

// Close releases the session bus connection.
func (d *Display) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func (d *Display) isPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func metadataMap(md playback.Metadata) map[string]dbus.Variant {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackPath(md.TrackID)),
		"xesam:title":   dbus.MakeVariant(md.Title),
	}
	if md.Artist != "" {
		m["xesam:artist"] = dbus.MakeVariant([]string{md.Artist})
	}
	if md.Album != "" {
		m["xesam:album"] = dbus.MakeVariant(md.Album)
	}
	if md.Duration > 0 {
		m["mpris:length"] = dbus.MakeVariant(micros(md.Duration))
	}
	if md.ArtURL != "" {
		m["mpris:artUrl"] = dbus.MakeVariant(md.ArtURL)
	}
	return m
}

// trackPath turns an id into a valid object path element.
func trackPath(id string) dbus.ObjectPath {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		b.WriteString("none")
	}
	return dbus.ObjectPath(trackPrefix + b.String())
}

func micros(seconds float64) int64 {
	return int64(seconds * 1e6)
}

type rootMethods struct{}

func (rootMethods) Raise() *dbus.Error { return nil }
func (rootMethods) Quit() *dbus.Error  { return nil }

type playerMethods struct {
	controls Controls
	display  *Display
}

func (m *playerMethods) Play() *dbus.Error     { return dbusErr(m.controls.Resume()) }
func (m *playerMethods) Pause() *dbus.Error    { return dbusErr(m.controls.Pause()) }
func (m *playerMethods) Stop() *dbus.Error     { return dbusErr(m.controls.Stop()) }
func (m *playerMethods) Next() *dbus.Error     { return dbusErr(m.controls.Next()) }
func (m *playerMethods) Previous() *dbus.Error { return dbusErr(m.controls.Previous()) }

func (m *playerMethods) PlayPause() *dbus.Error {
	if m.display.isPlaying() {
		return m.Pause()
	}
	return m.Play()
}

func dbusErr(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Msg("MPRIS command failed")
	return dbus.MakeFailedError(err)
}
