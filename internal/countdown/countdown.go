// Package countdown implements the attempt timer. Remaining time is derived
// from wall-clock elapsed time, so a reload or reconnect never extends it.
package countdown

import (
	"sync"
	"time"
)

// Remaining returns duration - (now - startedAt), floored at zero and
// truncated to whole seconds.
func Remaining(duration time.Duration, startedAt, now time.Time) time.Duration {
	left := startedAt.Add(duration).Sub(now)
	if left <= 0 {
		return 0
	}
	return left.Truncate(time.Second)
}

// Timer tracks a single attempt's countdown.
type Timer struct {
	mu        sync.Mutex
	duration  time.Duration
	startedAt time.Time
	onExpire  func()
	expired   bool
	stopped   bool
}

// New creates a timer that started at startedAt. onExpire may be nil.
func New(duration time.Duration, startedAt time.Time, onExpire func()) *Timer {
	return &Timer{
		duration:  duration,
		startedAt: startedAt,
		onExpire:  onExpire,
	}
}

// FromRemaining builds a timer from a server-reported remaining value by
// back-computing the equivalent start instant.
func FromRemaining(duration, remaining time.Duration, now time.Time, onExpire func()) *Timer {
	if remaining > duration {
		remaining = duration
	}
	if remaining < 0 {
		remaining = 0
	}
	return New(duration, now.Add(remaining-duration), onExpire)
}

// StartedAt returns the (possibly back-computed) start instant.
func (t *Timer) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

// Duration returns the total configured length.
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Remaining returns the time left at now.
func (t *Timer) Remaining(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expired {
		return 0
	}
	return Remaining(t.duration, t.startedAt, now)
}

// Elapsed returns how long the attempt has run, capped at the duration.
func (t *Timer) Elapsed(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := now.Sub(t.startedAt)
	if e < 0 {
		return 0
	}
	if e > t.duration {
		return t.duration
	}
	return e
}

// Tick advances the timer to now. It reports the remaining time and whether
// this call fired the expiry. onExpire runs at most once, outside the lock.
func (t *Timer) Tick(now time.Time) (time.Duration, bool) {
	t.mu.Lock()
	if t.stopped || t.expired {
		t.mu.Unlock()
		return 0, false
	}
	left := Remaining(t.duration, t.startedAt, now)
	if left > 0 {
		t.mu.Unlock()
		return left, false
	}
	t.expired = true
	fn := t.onExpire
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
	return 0, true
}

// Expired reports whether the expiry has fired.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Stop disarms the timer; a stopped timer never fires.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}
