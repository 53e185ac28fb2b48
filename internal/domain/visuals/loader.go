package visuals

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
)

// ImageFetcher downloads remote images.
type ImageFetcher interface {
	Image(ctx context.Context, url string) ([]byte, error)
}

// PictureSource reads artwork of library files.
type PictureSource interface {
	ReadPicture(uri string) ([]byte, error)
	AlbumArt(uri string) ([]byte, error)
}

// Loader loads remote covers over HTTP and local covers from the music library.
type Loader struct {
	Remote ImageFetcher
	Local  PictureSource
}

// Load implements CoverLoader. Local covers try embedded art first, then the
// folder image.
func (l Loader) Load(ctx context.Context, cover player.Cover) ([]byte, error) {
	switch cover.Type {
	case player.CoverRemote:
		if l.Remote == nil {
			return nil, ErrNoCover
		}
		return l.Remote.Image(ctx, cover.URL)

	case player.CoverLocal:
		if l.Local == nil {
			return nil, ErrNoCover
		}
		data, err := l.Local.ReadPicture(cover.URL)
		if err == nil && len(data) > 0 {
			return data, nil
		}
		if err != nil {
			log.Debug().Err(err).Str("uri", cover.URL).Msg("No embedded picture, trying album art")
		}
		data, err = l.Local.AlbumArt(cover.URL)
		if err != nil {
			return nil, fmt.Errorf("album art %s: %w", cover.URL, err)
		}
		if len(data) == 0 {
			return nil, ErrNoCover
		}
		return data, nil
	}

	return nil, fmt.Errorf("unknown cover type %q", cover.Type)
}
