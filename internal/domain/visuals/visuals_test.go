package visuals

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
)

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
)

// stripes paints rows of colors; each entry covers rows[i] rows.
func stripes(width int, colors []color.RGBA, rows []int) *image.RGBA {
	height := 0
	for _, r := range rows {
		height += r
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	y := 0
	for i, c := range colors {
		for n := 0; n < rows[i]; n++ {
			for x := 0; x < width; x++ {
				img.Set(x, y, c)
			}
			y++
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func near(a colorful.Color, b color.Color) bool {
	c, _ := colorful.MakeColor(b)
	return a.DistanceRgb(c) < 0.05
}

func TestDominantColors_Order(t *testing.T) {
	img := stripes(32, []color.RGBA{blue, red, green}, []int{8, 20, 4})

	got := DominantColors(img, 10)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if !near(got[0].Color, red) || !near(got[1].Color, blue) || !near(got[2].Color, green) {
		t.Errorf("order = %v, want red, blue, green", got)
	}
	if math.Abs(got[0].Share-20.0/32.0) > 0.01 {
		t.Errorf("red share = %v, want %v", got[0].Share, 20.0/32.0)
	}
}

func TestDominantColors_Limit(t *testing.T) {
	img := stripes(8, []color.RGBA{blue, red, green}, []int{3, 2, 1})

	if got := DominantColors(img, 2); len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
	if got := DominantColors(img, 0); got != nil {
		t.Errorf("DominantColors(n=0) = %v, want nil", got)
	}
}

func TestDominantColors_LargeImageIsDownscaled(t *testing.T) {
	img := stripes(400, []color.RGBA{red, blue}, []int{300, 100})

	got := DominantColors(img, 2)
	if len(got) != 2 || !near(got[0].Color, red) || !near(got[1].Color, blue) {
		t.Errorf("DominantColors() = %v, want red then blue", got)
	}
}

func TestDominantColors_SkipsTransparent(t *testing.T) {
	img := stripes(4, []color.RGBA{{}, red}, []int{10, 2})

	got := DominantColors(img, 5)
	if len(got) != 1 || !near(got[0].Color, red) || math.Abs(got[0].Share-1) > 0.01 {
		t.Errorf("DominantColors() = %v, want only red", got)
	}
}

func TestDominantColors_SemiTransparentIgnored(t *testing.T) {
	faint := color.RGBA{B: 0x20, A: 0x20}
	img := stripes(4, []color.RGBA{faint, green}, []int{6, 3})

	got := DominantColors(img, 5)
	if len(got) != 1 || !near(got[0].Color, green) {
		t.Errorf("DominantColors() = %v, want only green", got)
	}
}

func TestDominantColors_FullyTransparent(t *testing.T) {
	img := stripes(4, []color.RGBA{{}}, []int{4})

	if got := DominantColors(img, 5); got != nil {
		t.Errorf("DominantColors() = %v, want nil", got)
	}
}

type fakeLoader struct {
	data []byte
	err  error
}

func (f fakeLoader) Load(ctx context.Context, cover player.Cover) ([]byte, error) {
	return f.data, f.err
}

func TestExtractor_TopDominantColors(t *testing.T) {
	data := encodePNG(t, stripes(16, []color.RGBA{red, blue}, []int{10, 6}))
	e := NewExtractor(fakeLoader{data: data})

	colors, err := e.TopDominantColors(context.Background(), 10, &player.Cover{Type: player.CoverRemote, URL: "http://x"})
	if err != nil {
		t.Fatalf("TopDominantColors() error = %v", err)
	}
	if len(colors) != 2 || !near(colors[0], red) {
		t.Errorf("colors = %v", colors)
	}
}

func TestExtractor_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := NewExtractor(fakeLoader{}).TopDominantColors(ctx, 10, nil); !errors.Is(err, ErrNoCover) {
		t.Errorf("nil cover error = %v, want ErrNoCover", err)
	}

	cover := &player.Cover{Type: player.CoverRemote, URL: "http://x"}
	if _, err := NewExtractor(fakeLoader{err: errors.New("404")}).TopDominantColors(ctx, 10, cover); err == nil {
		t.Error("expected load error")
	}
	if _, err := NewExtractor(fakeLoader{data: []byte("not an image")}).TopDominantColors(ctx, 10, cover); err == nil {
		t.Error("expected decode error")
	}
}

func TestHighPassFilter(t *testing.T) {
	black := colorful.Color{R: 0, G: 0, B: 0}
	white := colorful.Color{R: 1, G: 1, B: 1}
	darkBlue := colorful.Color{R: 0, G: 0, B: 0.3}

	got := HighPassFilter([]colorful.Color{black, white, darkBlue}, 0.5)
	if len(got) != 1 || got[0] != white {
		t.Errorf("HighPassFilter() = %v, want [white]", got)
	}
}

func TestDetermineSaturated(t *testing.T) {
	gray := colorful.Color{R: 0.6, G: 0.6, B: 0.6}
	pastel := colorful.Color{R: 1, G: 0.8, B: 0.8}
	vivid := colorful.Color{R: 1, G: 0.2, B: 0.1}

	got := DetermineSaturated([]colorful.Color{gray, pastel, vivid}, 0.3)
	if len(got) != 1 || got[0] != vivid {
		t.Errorf("DetermineSaturated() = %v, want [vivid]", got)
	}
}

func TestPartition(t *testing.T) {
	vivid := colorful.Color{R: 1, G: 0.6, B: 0}     // bright and saturated
	darkVivid := colorful.Color{R: 0.3, G: 0, B: 0} // saturated but dark
	paleGray := colorful.Color{R: 0.8, G: 0.8, B: 0.8}

	highlights, background := Partition([]colorful.Color{darkVivid, vivid, paleGray})

	if len(highlights) != 1 || highlights[0] != vivid {
		t.Errorf("highlights = %v, want [vivid]", highlights)
	}
	if len(background) != 2 || background[0] != darkVivid || background[1] != paleGray {
		t.Errorf("background = %v, want [darkVivid paleGray]", background)
	}

	h, b := Partition(nil)
	if len(h) != 0 || len(b) != 0 {
		t.Errorf("Partition(nil) = %v, %v", h, b)
	}
}

type fakePictures struct {
	embedded []byte
	folder   []byte
	calls    []string
}

func (f *fakePictures) ReadPicture(uri string) ([]byte, error) {
	f.calls = append(f.calls, "readpicture")
	if f.embedded == nil {
		return nil, errors.New("no picture")
	}
	return f.embedded, nil
}

func (f *fakePictures) AlbumArt(uri string) ([]byte, error) {
	f.calls = append(f.calls, "albumart")
	return f.folder, nil
}

type fakeFetcher struct{ url string }

func (f *fakeFetcher) Image(ctx context.Context, url string) ([]byte, error) {
	f.url = url
	return []byte{1}, nil
}

func TestLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("remote", func(t *testing.T) {
		fetch := &fakeFetcher{}
		data, err := Loader{Remote: fetch}.Load(ctx, player.Cover{Type: player.CoverRemote, URL: "http://img"})
		if err != nil || len(data) != 1 || fetch.url != "http://img" {
			t.Errorf("Load() = %v, %v (url %q)", data, err, fetch.url)
		}
	})

	t.Run("embedded first", func(t *testing.T) {
		pics := &fakePictures{embedded: []byte{1}, folder: []byte{2}}
		data, _ := Loader{Local: pics}.Load(ctx, player.Cover{Type: player.CoverLocal, URL: "a.flac"})
		if data[0] != 1 || len(pics.calls) != 1 {
			t.Errorf("data = %v, calls = %v", data, pics.calls)
		}
	})

	t.Run("folder fallback", func(t *testing.T) {
		pics := &fakePictures{folder: []byte{2}}
		data, _ := Loader{Local: pics}.Load(ctx, player.Cover{Type: player.CoverLocal, URL: "a.flac"})
		if data[0] != 2 || len(pics.calls) != 2 {
			t.Errorf("data = %v, calls = %v", data, pics.calls)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		pics := &fakePictures{}
		if _, err := (Loader{Local: pics}).Load(ctx, player.Cover{Type: player.CoverLocal, URL: "a.flac"}); !errors.Is(err, ErrNoCover) {
			t.Errorf("error = %v, want ErrNoCover", err)
		}
	})

	t.Run("unconfigured", func(t *testing.T) {
		if _, err := (Loader{}).Load(ctx, player.Cover{Type: player.CoverRemote, URL: "x"}); !errors.Is(err, ErrNoCover) {
			t.Errorf("error = %v, want ErrNoCover", err)
		}
	})
}
