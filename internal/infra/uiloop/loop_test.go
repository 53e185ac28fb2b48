package uiloop

import (
	"context"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l, cancel
}

func TestPostRunsInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 50; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}

	var n int
	l.Call(func() { n = len(got) })

	if n != 50 {
		t.Fatalf("expected 50 closures to run, got %d", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("closure %d ran out of order (got %d)", i, v)
		}
	}
}

func TestPostFromManyGoroutinesIsSerialized(t *testing.T) {
	l, _ := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var got int
	l.Call(func() { got = counter })
	if got != 1000 {
		t.Errorf("expected 1000 increments, got %d", got)
	}
}

func TestPostAfterStopFails(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	if l.Post(func() {}) {
		t.Error("expected Post to fail after stop")
	}
	if l.Call(func() { t.Error("closure should not run") }) {
		t.Error("expected Call to fail after stop")
	}
}
