package player

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/fhs/gompd/v2/mpd"
)

// losslessCodecs lists container/codec names that carry lossless audio.
var losslessCodecs = map[string]bool{
	"flac": true,
	"alac": true,
	"wav":  true,
	"aiff": true,
	"aif":  true,
	"ape":  true,
	"wv":   true,
	"dsf":  true,
	"dff":  true,
	"dsd":  true,
	"pcm":  true,
}

// trackFromAttrs converts an MPD song to a Track. It returns nil for an empty song.
func trackFromAttrs(attrs mpd.Attrs, library Library) *Track {
	uri := attrs["file"]
	if uri == "" {
		return nil
	}

	t := &Track{
		ID:          uri,
		URI:         uri,
		Name:        attrs["Title"],
		Album:       attrs["Album"],
		AlbumArtist: attrs["AlbumArtist"],
		Released:    attrs["Date"],
		Index:       leadingInt(attrs["Track"]),
		Disc:        leadingInt(attrs["Disc"]),
	}

	if t.Name == "" {
		// Internet radio streams carry the station in Name
		if name := attrs["Name"]; name != "" {
			t.Name = name
		} else {
			t.Name = path.Base(uri)
		}
	}

	if artist := attrs["Artist"]; artist != "" {
		for _, a := range strings.Split(artist, ";") {
			if a = strings.TrimSpace(a); a != "" {
				t.Artists = append(t.Artists, a)
			}
		}
	}

	if d, err := strconv.ParseFloat(attrs["duration"], 64); err == nil {
		t.Duration = d
	} else if d, err := strconv.Atoi(attrs["Time"]); err == nil {
		t.Duration = float64(d)
	}

	if library != nil {
		if id, ok := library.TrackIDFromURI(uri); ok {
			t.ID = id
			t.Cover = &Cover{Type: CoverRemote, URL: library.ImageURL(id)}
			return t
		}
	}

	if !isStream(uri) {
		t.Cover = &Cover{Type: CoverLocal, URL: uri}
	}
	return t
}

// mediaInfoFromAttrs derives stream format details from MPD status and song.
func mediaInfoFromAttrs(status, song mpd.Attrs) *MediaInfo {
	uri := song["file"]
	if uri == "" {
		return nil
	}

	info := &MediaInfo{Codec: codecFromURI(uri)}
	info.Lossless = losslessCodecs[info.Codec]

	// Format: samplerate:bits:channels (e.g. "96000:24:2", "dsd64:2")
	format := status["audio"]
	if format == "" {
		format = song["Format"]
	}
	if parts := strings.Split(format, ":"); len(parts) == 3 {
		info.SampleRate = atoiPtr(parts[0])
		info.BitDepth = atoiPtr(parts[1])
		info.Channels = atoiPtr(parts[2])
	} else if len(parts) == 2 {
		info.Channels = atoiPtr(parts[1])
	}

	// MPD reports kbit/s
	if kbps, err := strconv.Atoi(status["bitrate"]); err == nil && kbps > 0 {
		bps := kbps * 1000
		info.Bitrate = &bps
	}

	return info
}

// codecFromURI returns the lower-case codec hint of a library path or stream URL.
func codecFromURI(uri string) string {
	if isStream(uri) {
		if u, err := url.Parse(uri); err == nil {
			q := u.Query()
			for _, key := range []string{"audioCodec", "AudioCodec", "container", "Container"} {
				if v := q.Get(key); v != "" {
					return strings.ToLower(strings.Split(v, ",")[0])
				}
			}
			uri = u.Path
		}
	}

	ext := path.Ext(uri)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// repeatModeFromStatus maps MPD's repeat/single flags to a RepeatMode.
// Single mode is how RepeatTrack is realised: MPD stops after the song and
// the endpoint restarts it.
func repeatModeFromStatus(status mpd.Attrs) RepeatMode {
	switch {
	case status["single"] == "1":
		return RepeatTrack
	case status["repeat"] == "1":
		return RepeatQueue
	default:
		return RepeatOff
	}
}

func isStream(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

func leadingInt(s string) int {
	// Track and Disc may be "3/12"
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
