// Package clock provides the scheduling primitives used by the session
// core: one-shot and repeating callbacks with cancellation handles, a
// trailing-edge debouncer, and a fake clock for deterministic tests.
package clock

import (
	"sync"
	"time"
)

// Handle cancels a scheduled callback.
type Handle interface {
	// Stop cancels the callback. It reports whether anything was still
	// scheduled. A callback already running is not interrupted.
	Stop() bool
}

// Scheduler runs callbacks after a delay or at a fixed period.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Handle
	Every(d time.Duration, fn func()) Handle
}

// Real is a Scheduler backed by the runtime timers. Callbacks run on
// their own goroutines.
type Real struct{}

var _ Scheduler = Real{}

func (Real) Now() time.Time { return time.Now() }

func (Real) After(d time.Duration, fn func()) Handle {
	return timerHandle{t: time.AfterFunc(d, fn)}
}

func (Real) Every(d time.Duration, fn func()) Handle {
	h := &tickerHandle{done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				// Stop may race with a tick that was already delivered.
				select {
				case <-h.done:
					return
				default:
				}
				fn()
			}
		}
	}()
	return h
}

type timerHandle struct {
	t *time.Timer
}

func (h timerHandle) Stop() bool { return h.t.Stop() }

type tickerHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *tickerHandle) Stop() bool {
	stopped := false
	h.once.Do(func() {
		close(h.done)
		stopped = true
	})
	return stopped
}
