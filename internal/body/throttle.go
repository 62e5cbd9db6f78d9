package body

import (
	"sync"
	"time"
)

// throttle runs fn at most once per interval. The first trigger in a quiet
// period fires immediately (leading edge); triggers arriving inside the
// interval coalesce into exactly one run at the interval boundary (trailing
// edge). fn is invoked on the triggering goroutine for leading runs and on
// the timer goroutine for trailing runs.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	timer    *time.Timer
	active   bool // inside an interval window
	pending  bool // a trigger arrived mid-window
	stopped  bool
}

func newThrottle(interval time.Duration, fn func()) *throttle {
	return &throttle{interval: interval, fn: fn}
}

// Trigger requests a run. It never blocks on fn's async work and never
// drops the last trigger of a burst.
func (t *throttle) Trigger() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.active {
		t.pending = true
		t.mu.Unlock()
		return
	}
	t.active = true
	t.timer = time.AfterFunc(t.interval, t.expire)
	t.mu.Unlock()

	t.fn()
}

func (t *throttle) expire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if !t.pending {
		t.active = false
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.timer = time.AfterFunc(t.interval, t.expire)
	t.mu.Unlock()

	t.fn()
}

// Stop cancels any scheduled trailing run and ignores further triggers.
func (t *throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}
