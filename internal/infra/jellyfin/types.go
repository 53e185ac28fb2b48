// Package jellyfin is a client for the parts of the Jellyfin API the now-playing daemon uses.
package jellyfin

import (
	"errors"
	"strings"
	"time"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
)

// Common errors
var (
	// ErrNotFound indicates the item does not exist or has no such resource
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing or rejected access token
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTemporaryFailure indicates the server is overloaded or restarting
	ErrTemporaryFailure = errors.New("temporary failure")
)

// ticksPerSecond converts Jellyfin's 100ns ticks.
const ticksPerSecond = 10_000_000

// TracksItemResponse is the item listing returned for track queries.
type TracksItemResponse struct {
	Items            []JellyfinTrackItem `json:"Items"`
	TotalRecordCount int                 `json:"TotalRecordCount"`
}

// JellyfinTrackItem is a single audio item.
type JellyfinTrackItem struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`

	PremiereDate      string `json:"PremiereDate,omitempty"`
	IndexNumber       *int   `json:"IndexNumber,omitempty"`
	ParentIndexNumber *int   `json:"ParentIndexNumber,omitempty"`

	UserData    UserData         `json:"UserData"`
	ArtistItems []JellyfinArtist `json:"ArtistItems"`

	Album        string           `json:"Album,omitempty"`
	AlbumID      string           `json:"AlbumId"`
	AlbumArtists []JellyfinArtist `json:"AlbumArtists"`

	ImageTags            ImageTags `json:"ImageTags"`
	AlbumPrimaryImageTag string    `json:"AlbumPrimaryImageTag,omitempty"`

	LUFS         *float32 `json:"LUFS,omitempty"`
	RunTimeTicks int64    `json:"RunTimeTicks,omitempty"`
	Container    string   `json:"Container,omitempty"`
}

// UserData is the per-user state of an item.
type UserData struct {
	IsFavorite bool `json:"IsFavorite"`
	PlayCount  int  `json:"PlayCount"`
	Played     bool `json:"Played"`
}

// JellyfinArtist is an artist reference.
type JellyfinArtist struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// ImageTags lists the image types an item has.
type ImageTags struct {
	Primary string `json:"Primary,omitempty"`
}

// LyricsResponse is the body of /Audio/{id}/Lyrics.
type LyricsResponse struct {
	Lyrics []LyricLine `json:"Lyrics"`
}

// LyricLine is one line; Start is in ticks and absent for unsynced lyrics.
type LyricLine struct {
	Text  string `json:"Text"`
	Start *int64 `json:"Start,omitempty"`
}

// PlaybackProgress is the body of the session playback endpoints.
type PlaybackProgress struct {
	ItemID        string `json:"ItemId"`
	PositionTicks int64  `json:"PositionTicks"`
	IsPaused      bool   `json:"IsPaused"`
	CanSeek       bool   `json:"CanSeek"`
	PlaySessionID string `json:"PlaySessionId"`
	PlayMethod    string `json:"PlayMethod"`
}

// toTrack converts an item; streamURL and imageURL build the playable URI and cover.
func (item JellyfinTrackItem) toTrack(streamURL func(id, container string) string, imageURL func(id string) string) player.Track {
	t := player.Track{
		ID:       item.ID,
		Name:     item.Name,
		Album:    item.Album,
		AlbumID:  item.AlbumID,
		Favorite: item.UserData.IsFavorite,
		LUFS:     item.LUFS,
		Duration: float64(item.RunTimeTicks) / ticksPerSecond,
		URI:      streamURL(item.ID, item.Container),
	}

	for _, a := range item.ArtistItems {
		t.Artists = append(t.Artists, a.Name)
	}
	if len(item.AlbumArtists) > 0 {
		t.AlbumArtist = item.AlbumArtists[0].Name
	}
	if item.IndexNumber != nil {
		t.Index = *item.IndexNumber
	}
	if item.ParentIndexNumber != nil {
		t.Disc = *item.ParentIndexNumber
	}
	if item.PremiereDate != "" {
		if d, err := time.Parse(time.RFC3339, item.PremiereDate); err == nil {
			t.Released = d.Format("2006-01-02")
		} else {
			t.Released = strings.SplitN(item.PremiereDate, "T", 2)[0]
		}
	}

	switch {
	case item.ImageTags.Primary != "":
		t.Cover = &player.Cover{Type: player.CoverRemote, URL: imageURL(item.ID)}
	case item.AlbumPrimaryImageTag != "" && item.AlbumID != "":
		t.Cover = &player.Cover{Type: player.CoverRemote, URL: imageURL(item.AlbumID)}
	}

	return t
}
