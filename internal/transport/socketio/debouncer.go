package socketio

import (
	"sync"
	"time"
)

// BroadcastDebouncer collapses bursts of snapshot changes into one broadcast.
// The callback runs once the window passes without a new trigger, or once
// maxWait has passed since the first pending trigger, whichever comes first,
// so a steady stream of time updates still goes out.
type BroadcastDebouncer struct {
	window   time.Duration
	maxWait  time.Duration
	callback func()

	mu      sync.Mutex
	pending bool
	first   time.Time
	timer   *time.Timer
	stopped bool
}

// NewBroadcastDebouncer creates a debouncer. A maxWait below window is raised to it.
func NewBroadcastDebouncer(window, maxWait time.Duration, callback func()) *BroadcastDebouncer {
	if maxWait < window {
		maxWait = window
	}
	return &BroadcastDebouncer{
		window:   window,
		maxWait:  maxWait,
		callback: callback,
	}
}

// Trigger records a change. The broadcast is deferred to the end of the window.
func (d *BroadcastDebouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	if !d.pending {
		d.pending = true
		d.first = now
	}

	wait := d.window
	if deadline := d.first.Add(d.maxWait); now.Add(wait).After(deadline) {
		wait = deadline.Sub(now)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(wait, d.flush)
}

// flush fires the callback if a change is pending.
func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	fire := d.pending && !d.stopped
	d.pending = false
	d.mu.Unlock()

	if fire && d.callback != nil {
		d.callback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
}
