package tracking

import (
	"fmt"
	"sync"
	"time"

	"github.com/abhisek/studyctl/internal/clock"
	"github.com/abhisek/studyctl/internal/study"
)

// Default debounce windows.
const (
	DefaultScrollDebounce  = 500 * time.Millisecond
	DefaultSummaryDebounce = 250 * time.Millisecond
)

// ReadingOptions configures a ReadingTracker.
type ReadingOptions struct {
	// TotalUnits is the number of pages in the document.
	TotalUnits int

	ScrollDebounce  time.Duration
	SummaryDebounce time.Duration

	// OnSummary receives (elapsed seconds, units visited), debounced.
	OnSummary func(elapsedSeconds, unitsVisited int)
	// OnScrollCommit receives the last scroll sample of a debounce window.
	OnScrollCommit func(unit, depth int)
	// OnUnitChange fires when the current unit changes; from is 0 on the
	// first navigation.
	OnUnitChange func(from, to int, firstVisit bool)
}

type scrollSample struct {
	unit  int
	depth int
}

// ReadingTracker records per-page dwell time and scroll depth.
type ReadingTracker struct {
	sched clock.Scheduler
	opts  ReadingOptions

	scrollDeb  *clock.Debouncer
	summaryDeb *clock.Debouncer

	mu            sync.Mutex
	units         map[int]*UnitRecord
	current       int
	elapsed       int
	paused        bool
	started       bool
	stopped       bool
	tick          clock.Handle
	pendingScroll *scrollSample
}

var _ Tracker = (*ReadingTracker)(nil)

// NewReadingTracker creates a tracker for a document of opts.TotalUnits pages.
func NewReadingTracker(sched clock.Scheduler, opts ReadingOptions) *ReadingTracker {
	if opts.ScrollDebounce <= 0 {
		opts.ScrollDebounce = DefaultScrollDebounce
	}
	if opts.SummaryDebounce <= 0 {
		opts.SummaryDebounce = DefaultSummaryDebounce
	}
	r := &ReadingTracker{
		sched: sched,
		opts:  opts,
		units: make(map[int]*UnitRecord),
	}
	r.scrollDeb = clock.NewDebouncer(sched, opts.ScrollDebounce, r.commitScroll)
	r.summaryDeb = clock.NewDebouncer(sched, opts.SummaryDebounce, r.notifySummary)
	return r
}

// Start begins the per-unit one second tick.
func (r *ReadingTracker) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	r.tick = r.sched.Every(time.Second, r.onTick)
}

// Stop cancels the tick and any pending debounced work.
func (r *ReadingTracker) Stop() {
	r.mu.Lock()
	r.stopped = true
	if r.tick != nil {
		r.tick.Stop()
		r.tick = nil
	}
	r.mu.Unlock()
	r.scrollDeb.Cancel()
	r.summaryDeb.Cancel()
}

// Finish commits pending scroll and summary work, stops tracking and
// returns the final summary.
func (r *ReadingTracker) Finish() Summary {
	r.scrollDeb.Flush()
	r.summaryDeb.Flush()
	r.Stop()
	return r.Summary()
}

// SetPaused suspends dwell time accounting.
func (r *ReadingTracker) SetPaused(paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = paused
}

// Navigate makes unit the current page. The outgoing page keeps its record;
// the incoming page gets a fresh record on first visit only.
func (r *ReadingTracker) Navigate(unit int) error {
	if unit < 1 || (r.opts.TotalUnits > 0 && unit > r.opts.TotalUnits) {
		return fmt.Errorf("unit %d out of range 1..%d", unit, r.opts.TotalUnits)
	}

	// A pending scroll sample belongs to the outgoing unit.
	r.scrollDeb.Flush()

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	from := r.current
	if from == unit {
		r.mu.Unlock()
		return nil
	}
	first := false
	if _, ok := r.units[unit]; !ok {
		r.units[unit] = &UnitRecord{Unit: unit, TimeEntered: r.sched.Now()}
		first = true
	}
	r.current = unit
	cb := r.opts.OnUnitChange
	r.mu.Unlock()

	if cb != nil {
		cb(from, unit, first)
	}
	r.summaryDeb.Trigger()
	return nil
}

// RecordScroll takes a scroll depth sample (0–100) for the current unit.
// The maximum is taken from every sample; the committed depth is the last
// sample of a debounce window.
func (r *ReadingTracker) RecordScroll(depth int) {
	depth = clampPercent(depth)

	r.mu.Lock()
	if r.stopped || r.current == 0 {
		r.mu.Unlock()
		return
	}
	rec := r.units[r.current]
	if depth > rec.MaxScrollDepth {
		rec.MaxScrollDepth = depth
	}
	r.pendingScroll = &scrollSample{unit: r.current, depth: depth}
	r.mu.Unlock()

	r.scrollDeb.Trigger()
}

// Current returns the current unit, 0 before the first navigation.
func (r *ReadingTracker) Current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Unit returns a copy of the record for a unit.
func (r *ReadingTracker) Unit(unit int) (UnitRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.units[unit]
	if !ok {
		return UnitRecord{}, false
	}
	return *rec, true
}

// Progress is visited units over total units, in percent.
func (r *ReadingTracker) Progress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progressLocked()
}

// Summary returns the current aggregated telemetry.
func (r *ReadingTracker) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summary{
		Modality:        study.ModalityReading,
		ElapsedSeconds:  r.elapsed,
		UnitsVisited:    len(r.units),
		TotalUnits:      r.opts.TotalUnits,
		ReadingProgress: r.progressLocked(),
		Units:           sortedUnits(r.units),
	}
}

func (r *ReadingTracker) progressLocked() float64 {
	if r.opts.TotalUnits <= 0 {
		return 0
	}
	return float64(len(r.units)) / float64(r.opts.TotalUnits) * 100
}

func (r *ReadingTracker) onTick() {
	r.mu.Lock()
	if r.stopped || r.paused || r.current == 0 {
		r.mu.Unlock()
		return
	}
	r.units[r.current].TotalTimeMs += 1000
	r.elapsed++
	r.mu.Unlock()

	r.summaryDeb.Trigger()
}

func (r *ReadingTracker) commitScroll() {
	r.mu.Lock()
	s := r.pendingScroll
	r.pendingScroll = nil
	if s == nil {
		r.mu.Unlock()
		return
	}
	if rec, ok := r.units[s.unit]; ok {
		rec.ScrollDepth = s.depth
	}
	cb := r.opts.OnScrollCommit
	r.mu.Unlock()

	if cb != nil {
		cb(s.unit, s.depth)
	}
	r.summaryDeb.Trigger()
}

func (r *ReadingTracker) notifySummary() {
	r.mu.Lock()
	elapsed, visited := r.elapsed, len(r.units)
	cb := r.opts.OnSummary
	r.mu.Unlock()

	if cb != nil {
		cb(elapsed, visited)
	}
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
