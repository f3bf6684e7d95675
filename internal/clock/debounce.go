package clock

import (
	"sync"
	"time"
)

// Debouncer delays fn until no Trigger has happened for the wait period.
// Each Trigger cancels the pending call and schedules a new one.
type Debouncer struct {
	sched Scheduler
	wait  time.Duration
	fn    func()

	mu      sync.Mutex
	pending Handle
	gen     uint64
}

// NewDebouncer creates a debouncer running fn on sched.
func NewDebouncer(sched Scheduler, wait time.Duration, fn func()) *Debouncer {
	return &Debouncer{sched: sched, wait: wait, fn: fn}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.sched.After(d.wait, func() { d.fire(gen) })
}

// Flush runs fn immediately if a call is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.pending == nil {
		d.mu.Unlock()
		return
	}
	d.pending.Stop()
	d.pending = nil
	d.gen++
	d.mu.Unlock()
	d.fn()
}

// Cancel drops a pending call without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.gen++
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		// Superseded by a later Trigger, Flush or Cancel.
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()
	d.fn()
}
