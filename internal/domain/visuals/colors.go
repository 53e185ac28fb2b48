// Package visuals extracts dominant colors from cover art and classifies them.
package visuals

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"sort"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
)

// ErrNoCover is returned when a track has no cover art to analyse.
var ErrNoCover = errors.New("no cover")

const (
	// sampleSize is the longest side covers are downscaled to before clustering.
	sampleSize = 64

	// minAlpha ignores mostly transparent pixels.
	minAlpha = 0x8000
)

// CoverLoader fetches the raw image bytes of a cover.
type CoverLoader interface {
	Load(ctx context.Context, cover player.Cover) ([]byte, error)
}

// DominantColor is a color and the share of sampled pixels close to it.
type DominantColor struct {
	Color colorful.Color
	Share float64
}

// Extractor computes dominant colors of covers.
type Extractor struct {
	loader CoverLoader
}

// NewExtractor creates an extractor that loads covers with loader.
func NewExtractor(loader CoverLoader) *Extractor {
	return &Extractor{loader: loader}
}

// TopDominantColors returns up to n colors of cover, most dominant first.
func (e *Extractor) TopDominantColors(ctx context.Context, n int, cover *player.Cover) ([]colorful.Color, error) {
	if cover == nil || cover.URL == "" {
		return nil, ErrNoCover
	}

	data, err := e.loader.Load(ctx, *cover)
	if err != nil {
		return nil, fmt.Errorf("load cover: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	dominant := DominantColors(img, n)

	log.Debug().
		Str("cover", cover.URL).
		Str("format", format).
		Int("colors", len(dominant)).
		Msg("Extracted dominant colors")

	colors := make([]colorful.Color, len(dominant))
	for i, d := range dominant {
		colors[i] = d.Color
	}
	return colors, nil
}

// DominantColors clusters the opaque pixels of img with k-means and returns up
// to n cluster centers, most populated first.
func DominantColors(img image.Image, n int) []DominantColor {
	if n <= 0 {
		return nil
	}
	sample, distinct := opaque(downscale(img, sampleSize), n)
	if distinct == 0 {
		return nil
	}

	// k is capped at the distinct color count; the resize width is the
	// sample's own.
	items, err := prominentcolor.KmeansWithAll(
		min(n, distinct),
		sample,
		prominentcolor.ArgumentNoCropping,
		uint(sample.Bounds().Dx()),
		nil,
	)
	if err != nil {
		log.Debug().Err(err).Msg("Color clustering failed")
		return nil
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Cnt > items[j].Cnt })

	total := 0
	for _, it := range items {
		total += it.Cnt
	}
	out := make([]DominantColor, 0, len(items))
	for _, it := range items {
		if it.Cnt == 0 {
			continue
		}
		out = append(out, DominantColor{
			Color: colorful.Color{
				R: float64(it.Color.R) / 255,
				G: float64(it.Color.G) / 255,
				B: float64(it.Color.B) / 255,
			}.Clamped(),
			Share: float64(it.Cnt) / float64(total),
		})
	}
	return out
}

// opaque copies src into a non-premultiplied image in which mostly
// transparent pixels are fully transparent, so clustering skips them. It also
// counts distinct opaque colors, stopping at limit.
func opaque(src image.Image, limit int) (*image.NRGBA, int) {
	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	seen := make(map[color.NRGBA]struct{}, limit)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.At(x, y)
			if _, _, _, a := c.RGBA(); a < minAlpha {
				continue
			}
			px := color.NRGBAModel.Convert(c).(color.NRGBA)
			px.A = 0xff
			dst.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, px)
			if len(seen) < limit {
				seen[px] = struct{}{}
			}
		}
	}
	return dst, len(seen)
}

// downscale shrinks img so its longest side is at most maxSize.
func downscale(src image.Image, maxSize int) image.Image {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= maxSize && srcH <= maxSize {
		return src
	}

	var newW, newH int
	if srcW > srcH {
		newW = maxSize
		newH = max(1, srcH*maxSize/srcW)
	} else {
		newH = maxSize
		newW = max(1, srcW*maxSize/srcH)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}
