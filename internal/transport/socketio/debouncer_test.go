package socketio

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerRapidChangesCollapseToOne(t *testing.T) {
	var calls int32

	d := NewBroadcastDebouncer(50*time.Millisecond, time.Second,
		func() { atomic.AddInt32(&calls, 1) },
	)
	defer d.Stop()

	// Track change publishes several snapshots back to back
	for i := 0; i < 10; i++ {
		d.Trigger()
	}

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 callback, got %d", got)
	}
}

func TestDebouncerMaxWaitBoundsLatency(t *testing.T) {
	var calls int32

	d := NewBroadcastDebouncer(50*time.Millisecond, 120*time.Millisecond,
		func() { atomic.AddInt32(&calls, 1) },
	)
	defer d.Stop()

	// Triggers closer together than the window never let it elapse
	for i := 0; i < 20; i++ {
		d.Trigger()
		time.Sleep(20 * time.Millisecond)
	}

	if got := atomic.LoadInt32(&calls); got < 2 {
		t.Errorf("expected maxWait to force callbacks during a steady stream, got %d", got)
	}
}

func TestDebouncerSeparateWindowsFireIndependently(t *testing.T) {
	var calls int32

	d := NewBroadcastDebouncer(50*time.Millisecond, time.Second,
		func() { atomic.AddInt32(&calls, 1) },
	)
	defer d.Stop()

	d.Trigger()
	time.Sleep(100 * time.Millisecond)

	d.Trigger()
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 callbacks for separate windows, got %d", got)
	}
}

func TestDebouncerStopPreventsCallbacks(t *testing.T) {
	var calls int32

	d := NewBroadcastDebouncer(50*time.Millisecond, time.Second,
		func() { atomic.AddInt32(&calls, 1) },
	)

	d.Trigger()
	d.Stop()

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("expected 0 callbacks after stop, got %d", got)
	}
}

func TestDebouncerTriggerAfterStopIsIgnored(t *testing.T) {
	var calls int32

	d := NewBroadcastDebouncer(50*time.Millisecond, time.Second,
		func() { atomic.AddInt32(&calls, 1) },
	)

	d.Stop()
	d.Trigger()

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("expected 0 callbacks after stop+trigger, got %d", got)
	}
}
