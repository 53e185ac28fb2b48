package lyrics

import (
	"context"
	"errors"
	"testing"
)

func TestActiveLine(t *testing.T) {
	keys := []float64{0.0, 12.5, 40.0}

	tests := []struct {
		name string
		keys []float64
		t    float64
		want int
	}{
		{"between lines", keys, 15.0, 1},
		{"first line", keys, 5.0, 0},
		{"exact last key", keys, 40.0, 2},
		{"past the end", keys, 300, 2},
		{"exact middle key", keys, 12.5, 1},
		{"before first key", []float64{3, 6}, 1, 0},
		{"empty", nil, 10, 0},
		{"negative time", keys, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActiveLine(tt.keys, tt.t); got != tt.want {
				t.Errorf("ActiveLine(%v, %v) = %d, want %d", tt.keys, tt.t, got, tt.want)
			}
		})
	}
}

// TestActiveLine_GreatestQualifyingIndex checks the rule against a linear scan.
func TestActiveLine_GreatestQualifyingIndex(t *testing.T) {
	keys := []float64{0, 1.5, 1.5001, 7, 7.25, 19, 60}
	for tt := -2.0; tt < 70; tt += 0.125 {
		want := 0
		for i, k := range keys {
			if k <= tt {
				want = i
			}
		}
		if got := ActiveLine(keys, tt); got != want {
			t.Fatalf("ActiveLine(t=%v) = %d, want %d", tt, got, want)
		}
	}
}

func TestLyricsKeysSorted(t *testing.T) {
	l := Lyrics{40: "c", 0: "a", 12.5: "b"}

	keys := l.Keys()
	want := []float64{0, 12.5, 40}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}

	lines := l.Lines()
	if lines[0] != "a" || lines[2] != "c" {
		t.Errorf("Lines() = %v", lines)
	}
}

type fakeOffline struct {
	lyrics Lyrics
	err    error
	calls  int
	update bool
}

func (f *fakeOffline) Lyrics(trackID string, allowUpdate bool) (Lyrics, error) {
	f.calls++
	f.update = allowUpdate
	return f.lyrics, f.err
}

type fakeRemote struct {
	lyrics Lyrics
	err    error
	calls  int
}

func (f *fakeRemote) Lyrics(ctx context.Context, trackID string) (Lyrics, error) {
	f.calls++
	return f.lyrics, f.err
}

func TestChainFetch(t *testing.T) {
	t.Run("offline hit skips remote", func(t *testing.T) {
		off := &fakeOffline{lyrics: Lyrics{0: "hello"}}
		rem := &fakeRemote{lyrics: Lyrics{0: "remote"}}

		l, ok := Chain{Offline: off, Remote: rem}.Fetch(context.Background(), "t1")
		if !ok || l[0] != "hello" {
			t.Errorf("Fetch() = %v, %v", l, ok)
		}
		if rem.calls != 0 {
			t.Errorf("remote called %d times, want 0", rem.calls)
		}
		if !off.update {
			t.Error("offline lookup should allow a background update")
		}
	})

	t.Run("offline miss falls back to remote", func(t *testing.T) {
		off := &fakeOffline{}
		rem := &fakeRemote{lyrics: Lyrics{1: "remote"}}

		l, ok := Chain{Offline: off, Remote: rem}.Fetch(context.Background(), "t1")
		if !ok || l[1] != "remote" {
			t.Errorf("Fetch() = %v, %v", l, ok)
		}
	})

	t.Run("offline error falls back to remote", func(t *testing.T) {
		off := &fakeOffline{err: errors.New("corrupt")}
		rem := &fakeRemote{lyrics: Lyrics{1: "remote"}}

		if _, ok := (Chain{Offline: off, Remote: rem}).Fetch(context.Background(), "t1"); !ok {
			t.Error("expected remote lyrics")
		}
	})

	t.Run("both fail", func(t *testing.T) {
		off := &fakeOffline{}
		rem := &fakeRemote{err: errors.New("503")}

		l, ok := Chain{Offline: off, Remote: rem}.Fetch(context.Background(), "t1")
		if ok || len(l) != 0 {
			t.Errorf("Fetch() = %v, %v, want nothing", l, ok)
		}
	})

	t.Run("no track id", func(t *testing.T) {
		off := &fakeOffline{}
		if _, ok := (Chain{Offline: off}).Fetch(context.Background(), ""); ok {
			t.Error("expected failure without track id")
		}
		if off.calls != 0 {
			t.Error("offline source queried without track id")
		}
	})
}
