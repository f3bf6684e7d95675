// Package deadline implements the soft-deadline countdown for the
// interaction phase. The countdown warns but never ends a session.
package deadline

import (
	"sync"
	"time"

	"github.com/abhisek/studyctl/internal/clock"
)

// DefaultDuration is the recommended interaction length.
const DefaultDuration = 30 * time.Minute

// Warning thresholds in seconds remaining.
const (
	FiveMinuteMark = 300
	OneMinuteMark  = 60
	elevatedMark   = 600
)

// Signal is a one-shot countdown notification.
type Signal int

const (
	SignalFiveMinutes Signal = iota + 1
	SignalOneMinute
	SignalTimeUp
)

func (s Signal) String() string {
	switch s {
	case SignalFiveMinutes:
		return "five_minutes_remaining"
	case SignalOneMinute:
		return "one_minute_remaining"
	case SignalTimeUp:
		return "time_up"
	default:
		return "unknown"
	}
}

// Urgency classifies remaining time for presentation.
type Urgency int

const (
	UrgencyNormal Urgency = iota
	UrgencyElevated
	UrgencyWarning
	UrgencyUrgent
)

func (u Urgency) String() string {
	switch u {
	case UrgencyElevated:
		return "elevated"
	case UrgencyWarning:
		return "warning"
	case UrgencyUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// Classify maps remaining seconds to an urgency level.
func Classify(remainingSeconds int) Urgency {
	switch {
	case remainingSeconds < OneMinuteMark:
		return UrgencyUrgent
	case remainingSeconds < FiveMinuteMark:
		return UrgencyWarning
	case remainingSeconds < elevatedMark:
		return UrgencyElevated
	default:
		return UrgencyNormal
	}
}

// Handlers receive countdown notifications. They are called without the
// timer's lock held and may call back into the timer.
type Handlers struct {
	OnTick   func(remainingSeconds int)
	OnSignal func(Signal)
}

// State is a point-in-time view of the countdown.
type State struct {
	RemainingSeconds int
	Paused           bool
	Running          bool
	Expired          bool
	Urgency          Urgency
}

// Timer counts down once per second while not paused.
type Timer struct {
	sched    clock.Scheduler
	handlers Handlers

	mu        sync.Mutex
	remaining int
	paused    bool
	started   bool
	stopped   bool
	expired   bool
	tick      clock.Handle
	fired     map[Signal]bool
}

// New creates a timer with the given remaining time, rounded down to whole
// seconds. A timer created at zero is already expired and never fires
// time-up; the notification belongs to the run that crossed zero.
func New(sched clock.Scheduler, remaining time.Duration, h Handlers) *Timer {
	secs := int(remaining / time.Second)
	if secs < 0 {
		secs = 0
	}
	return &Timer{
		sched:     sched,
		handlers:  h,
		remaining: secs,
		expired:   secs == 0,
		fired:     make(map[Signal]bool),
	}
}

// Start begins ticking unless the timer is paused or already started.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.stopped {
		return
	}
	t.started = true
	if !t.paused && t.remaining > 0 {
		t.startTickLocked()
	}
}

// Pause stops ticking without touching remaining time.
func (t *Timer) Pause() { t.SetPaused(true) }

// Resume continues from the exact remaining value.
func (t *Timer) Resume() { t.SetPaused(false) }

// SetPaused forces the running state. The caller's value always wins over
// whatever the timer last believed.
func (t *Timer) SetPaused(paused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = paused
	if t.stopped || !t.started {
		return
	}
	if paused {
		t.stopTickLocked()
		return
	}
	if t.tick == nil && t.remaining > 0 {
		t.startTickLocked()
	}
}

// Stop cancels the tick for good.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.stopTickLocked()
}

// Remaining returns the remaining time.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.remaining) * time.Second
}

// Fired reports whether the given signal has been emitted.
func (t *Timer) Fired(s Signal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired[s]
}

// State returns a snapshot of the countdown.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		RemainingSeconds: t.remaining,
		Paused:           t.paused,
		Running:          t.tick != nil,
		Expired:          t.expired,
		Urgency:          Classify(t.remaining),
	}
}

func (t *Timer) startTickLocked() {
	t.tick = t.sched.Every(time.Second, t.onTick)
}

func (t *Timer) stopTickLocked() {
	if t.tick != nil {
		t.tick.Stop()
		t.tick = nil
	}
}

func (t *Timer) onTick() {
	t.mu.Lock()
	if t.stopped || t.paused || t.remaining == 0 {
		t.mu.Unlock()
		return
	}
	prev := t.remaining
	t.remaining--
	now := t.remaining

	var signals []Signal
	crossed := func(mark int, s Signal) {
		if prev > mark && now <= mark && !t.fired[s] {
			t.fired[s] = true
			signals = append(signals, s)
		}
	}
	crossed(FiveMinuteMark, SignalFiveMinutes)
	crossed(OneMinuteMark, SignalOneMinute)
	if now == 0 {
		t.expired = true
		t.stopTickLocked()
		if !t.fired[SignalTimeUp] {
			t.fired[SignalTimeUp] = true
			signals = append(signals, SignalTimeUp)
		}
	}
	h := t.handlers
	t.mu.Unlock()

	if h.OnTick != nil {
		h.OnTick(now)
	}
	if h.OnSignal != nil {
		for _, s := range signals {
			h.OnSignal(s)
		}
	}
}
