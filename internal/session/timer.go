package session

import (
	"sync"
	"time"
)

// Timer is the session countdown. It ticks once per second from the
// configured budget down to zero, then fires the expiry callback exactly
// once and stops. There is no pause: it runs from session start until it
// expires or is stopped.
type Timer struct {
	mu        sync.Mutex
	remaining int
	stopped   bool
	expired   bool
	done      chan struct{}
	onExpire  func()
}

// NewTimer starts a countdown from budget seconds. onExpire is invoked from
// the timer goroutine when the budget reaches zero. A non-positive budget
// fires immediately.
func NewTimer(budget int, onExpire func()) *Timer {
	t := &Timer{
		remaining: budget,
		done:      make(chan struct{}),
		onExpire:  onExpire,
	}
	go t.run()
	return t
}

func (t *Timer) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	t.mu.Lock()
	if t.remaining <= 0 {
		t.mu.Unlock()
		t.fire()
		return
	}
	t.mu.Unlock()

	for {
		select {
		case <-ticker.C:
			t.mu.Lock()
			if t.stopped {
				t.mu.Unlock()
				return
			}
			t.remaining--
			expired := t.remaining <= 0
			if expired {
				t.remaining = 0
			}
			t.mu.Unlock()
			if expired {
				t.fire()
				return
			}
		case <-t.done:
			return
		}
	}
}

// fire delivers the expiry signal exactly once.
func (t *Timer) fire() {
	t.mu.Lock()
	if t.stopped || t.expired {
		t.mu.Unlock()
		return
	}
	t.expired = true
	t.mu.Unlock()
	if t.onExpire != nil {
		t.onExpire()
	}
}

// Remaining returns the remaining seconds, never negative.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Stop releases the timer. It is idempotent and suppresses any expiry that
// has not fired yet.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	close(t.done)
	t.mu.Unlock()
}
