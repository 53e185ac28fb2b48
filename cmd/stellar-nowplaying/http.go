package main

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/nowplaying"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/visuals"
	"github.com/edumarques81/stellar-nowplaying/internal/transport/socketio"
	"github.com/edumarques81/stellar-nowplaying/internal/version"
)

type pinger interface {
	Ping() error
}

type snapshotSource interface {
	Snapshot() nowplaying.Snapshot
}

// newMux routes the Socket.io endpoint and the REST fallbacks.
func newMux(socket http.Handler, mpd pinger, pictures visuals.PictureSource, np snapshotSource) *http.ServeMux {
	mux := http.NewServeMux()

	// Socket.io endpoint
	mux.Handle("/socket.io/", socket)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := mpd.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","mpd":"disconnected"}`))
			return
		}
		w.Write([]byte(`{"status":"ok","mpd":"connected"}`))
	})

	// Version endpoint
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, version.GetInfo())
	})

	// Snapshot endpoint (REST fallback)
	mux.HandleFunc("/api/v1/nowplaying", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, socketio.NewNowPlayingPayload(np.Snapshot()))
	})

	// Album art endpoint
	mux.HandleFunc("/albumart", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			http.Error(w, "path parameter required", http.StatusBadRequest)
			return
		}

		// Try embedded picture first
		data, err := pictures.ReadPicture(path)
		if err != nil || len(data) == 0 {
			data, err = pictures.AlbumArt(path)
			if err != nil || len(data) == 0 {
				log.Debug().Err(err).Str("path", path).Msg("Album art not found")
				http.Error(w, "album art not found", http.StatusNotFound)
				return
			}
		}

		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Header().Set("Cache-Control", "public, max-age=86400") // Cache for 1 day
		w.Write(data)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
