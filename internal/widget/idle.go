package widget

import (
	"sync"
	"time"
)

// IdleTimer calls onExpire once the timer runs for timeout without a Reset.
// A Reset that races an expiry wins: the stale callback is dropped.
type IdleTimer struct {
	mu       sync.Mutex
	timeout  time.Duration
	onExpire func()
	timer    *time.Timer
	gen      uint64
}

// NewIdleTimer creates a stopped timer
func NewIdleTimer(timeout time.Duration, onExpire func()) *IdleTimer {
	return &IdleTimer{timeout: timeout, onExpire: onExpire}
}

// Reset restarts the countdown
func (t *IdleTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.timeout, func() { t.fire(gen) })
}

// Stop cancels the countdown
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// Active reports whether a countdown is running
func (t *IdleTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *IdleTimer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.onExpire()
}
