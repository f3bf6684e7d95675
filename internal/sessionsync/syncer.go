// Package sessionsync periodically pushes active interaction time and the
// pause flag to the session store.
//
// Only unpaused wall-clock time counts. Sync failures are logged and
// dropped; the next push carries the cumulative value, so at most one
// interval (10s by default) of active time is lost if the process dies
// between pushes.
package sessionsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abhisek/studyctl/internal/clock"
	"github.com/abhisek/studyctl/internal/study"
)

// DefaultInterval is the push period.
const DefaultInterval = 10 * time.Second

// Options configures a Syncer.
type Options struct {
	Interval time.Duration
	// InitialSeconds is active time already recorded for the session, so a
	// resumed session keeps counting from where it left off.
	InitialSeconds int
	Logger         *slog.Logger
}

// Syncer accumulates active time and pushes it on a fixed interval.
type Syncer struct {
	sched     clock.Scheduler
	api       study.SessionAPI
	sessionID string
	interval  time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	base    time.Duration
	active  time.Duration
	last    time.Time
	paused  bool
	started bool
	stopped bool
	tick    clock.Handle
	pushes  int
}

// New creates a syncer for one session.
func New(sched clock.Scheduler, api study.SessionAPI, sessionID string, opts Options) *Syncer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		sched:     sched,
		api:       api,
		sessionID: sessionID,
		interval:  opts.Interval,
		base:      time.Duration(opts.InitialSeconds) * time.Second,
		log:       log.With("component", "session_sync", "session_id", sessionID),
	}
}

// Start begins the periodic push. ctx is used for the interval pushes.
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.ctx = ctx
	s.last = s.sched.Now()
	s.tick = s.sched.Every(s.interval, s.onTick)
}

// Stop cancels the periodic push without a final flush.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulateLocked()
	s.stopped = true
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
}

// SetPaused records the pause flag. Pausing banks the active time so far;
// resuming moves the reference point to now so paused time never counts.
func (s *Syncer) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paused == s.paused {
		return
	}
	if paused {
		s.accumulateLocked()
	} else {
		s.last = s.sched.Now()
	}
	s.paused = paused
}

// Elapsed returns total active seconds including InitialSeconds.
func (s *Syncer) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulateLocked()
	return s.elapsedLocked()
}

// Pushes returns the number of successful pushes.
func (s *Syncer) Pushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushes
}

// Flush makes one final push, typically on unload. There is no retry.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.accumulateLocked()
	update := study.TimeUpdate{TimeSpent: s.elapsedLocked(), IsPaused: s.paused}
	s.mu.Unlock()

	return s.push(ctx, update)
}

func (s *Syncer) onTick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.accumulateLocked()
	update := study.TimeUpdate{TimeSpent: s.elapsedLocked(), IsPaused: s.paused}
	ctx := s.ctx
	s.mu.Unlock()

	if err := s.push(ctx, update); err != nil {
		s.log.Warn("session time sync failed", "time_spent", update.TimeSpent, "error", err)
	}
}

func (s *Syncer) push(ctx context.Context, update study.TimeUpdate) error {
	if err := s.api.UpdateSessionTime(ctx, s.sessionID, update); err != nil {
		return err
	}
	s.mu.Lock()
	s.pushes++
	s.mu.Unlock()
	return nil
}

// accumulateLocked banks wall-clock time since the last reference point.
func (s *Syncer) accumulateLocked() {
	if !s.started || s.stopped || s.paused {
		return
	}
	now := s.sched.Now()
	if d := now.Sub(s.last); d > 0 {
		s.active += d
	}
	s.last = now
}

func (s *Syncer) elapsedLocked() int {
	return int((s.base + s.active) / time.Second)
}
