package nowplaying

import "time"

// scrollTimer debounces the lyrics auto-hide. At most one timer is pending:
// starting a new one supersedes the old, and a superseded expiry changes nothing.
// All fields are owned by the loop.
type scrollTimer struct {
	timer *time.Timer
	gen   uint64
}

// stop cancels the pending timer. Loop only.
func (t *scrollTimer) stop() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// startScrollTimer (re)arms the auto-hide. Loop only.
func (s *Synchronizer) startScrollTimer() {
	s.scroll.stop()
	gen := s.scroll.gen

	s.scroll.timer = time.AfterFunc(s.scrollTimeout, func() {
		s.loop.Post(func() { s.scrollExpired(gen) })
	})
}

// scrollExpired hides the controls and resumes auto-scroll, unless the timer
// was superseded, a drag is in progress or the lyrics tab is no longer shown.
func (s *Synchronizer) scrollExpired(gen uint64) {
	if gen != s.scroll.gen {
		return
	}
	s.scroll.timer = nil

	if s.snap.ControlsDragging || s.snap.Tab != TabLyrics {
		return
	}

	s.snap.ControlsVisible = false
	s.snap.Scrolling = false
	s.changed()
}
