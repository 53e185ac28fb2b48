package visuals

import (
	"github.com/lucasb-eyer/go-colorful"
	"github.com/samber/lo"
)

const (
	// HighPassThreshold drops dark colors before looking for highlights.
	HighPassThreshold = 0.5

	// SaturationThreshold is the minimum saturation of a highlight.
	SaturationThreshold = 0.3
)

// HighPassFilter keeps colors whose lightness is at least threshold (0..1).
func HighPassFilter(colors []colorful.Color, threshold float64) []colorful.Color {
	return lo.Filter(colors, func(c colorful.Color, _ int) bool {
		l, _, _ := c.Lab()
		return l >= threshold
	})
}

// DetermineSaturated keeps colors whose HSV saturation is at least threshold.
func DetermineSaturated(colors []colorful.Color, threshold float64) []colorful.Color {
	return lo.Filter(colors, func(c colorful.Color, _ int) bool {
		_, s, _ := c.Hsv()
		return s >= threshold
	})
}

// Partition splits dominant colors into highlights and background colors.
// Highlights are the saturated survivors of the high-pass filter; the
// background is everything else, in input order.
func Partition(colors []colorful.Color) (highlights, background []colorful.Color) {
	highlights = DetermineSaturated(HighPassFilter(colors, HighPassThreshold), SaturationThreshold)
	background = lo.Filter(colors, func(c colorful.Color, _ int) bool {
		return !lo.Contains(highlights, c)
	})
	return highlights, background
}
