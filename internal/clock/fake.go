package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Scheduler. Callbacks run synchronously on the
// goroutine calling Advance, in due-time order (ties in scheduling order).
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

var _ Scheduler = (*Fake)(nil)

type fakeTimer struct {
	f       *Fake
	id      int
	at      time.Time
	period  time.Duration
	fn      func()
	stopped bool
}

// NewFake returns a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration, fn func()) Handle {
	return f.schedule(d, 0, fn)
}

// Every panics on a non-positive period, like time.NewTicker.
func (f *Fake) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		panic("clock: non-positive interval for Every")
	}
	return f.schedule(d, d, fn)
}

func (f *Fake) schedule(d, period time.Duration, fn func()) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d < 0 {
		d = 0
	}
	f.seq++
	t := &fakeTimer{f: f, id: f.seq, at: f.now.Add(d), period: period, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every callback that becomes
// due on the way. Callbacks scheduled by other callbacks fire too if they
// fall inside the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.nextDueLocked(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = next.at
		if next.period > 0 {
			next.at = next.at.Add(next.period)
		} else {
			next.stopped = true
			f.removeLocked(next)
		}
		fn := next.fn
		f.mu.Unlock()

		fn()
	}
}

// Pending returns the number of scheduled, not yet stopped callbacks.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (f *Fake) nextDueLocked(target time.Time) *fakeTimer {
	var best *fakeTimer
	for _, t := range f.timers {
		if t.stopped || t.at.After(target) {
			continue
		}
		if best == nil || t.at.Before(best.at) || (t.at.Equal(best.at) && t.id < best.id) {
			best = t
		}
	}
	return best
}

func (f *Fake) removeLocked(t *fakeTimer) {
	for i, x := range f.timers {
		if x == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return
		}
	}
}

func (t *fakeTimer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.f.removeLocked(t)
	return true
}
