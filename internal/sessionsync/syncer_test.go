package sessionsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/studyctl/internal/clock"
	"github.com/abhisek/studyctl/internal/study"
)

type timeRecorder struct {
	study.SessionAPI

	mu      sync.Mutex
	updates []study.TimeUpdate
	fail    bool
}

func (r *timeRecorder) UpdateSessionTime(_ context.Context, _ string, u study.TimeUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("network down")
	}
	r.updates = append(r.updates, u)
	return nil
}

func newSyncer(t *testing.T, opts Options) (*Syncer, *timeRecorder, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	rec := &timeRecorder{}
	s := New(fc, rec, "sess-1", opts)
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s, rec, fc
}

func TestSyncer_PushesEveryInterval(t *testing.T) {
	_, rec, fc := newSyncer(t, Options{})

	fc.Advance(25 * time.Second)
	require.Len(t, rec.updates, 2)
	assert.Equal(t, study.TimeUpdate{TimeSpent: 10}, rec.updates[0])
	assert.Equal(t, study.TimeUpdate{TimeSpent: 20}, rec.updates[1])
}

func TestSyncer_PauseExcludedFromElapsed(t *testing.T) {
	s, rec, fc := newSyncer(t, Options{})

	fc.Advance(4 * time.Second)
	s.SetPaused(true)
	fc.Advance(30 * time.Second)
	assert.Equal(t, 4, s.Elapsed())

	s.SetPaused(false)
	fc.Advance(6 * time.Second)
	assert.Equal(t, 10, s.Elapsed())

	require.NotEmpty(t, rec.updates)
	for _, u := range rec.updates[:3] {
		assert.True(t, u.IsPaused)
		assert.Equal(t, 4, u.TimeSpent)
	}
}

func TestSyncer_RepeatedResumeDoesNotReset(t *testing.T) {
	s, _, fc := newSyncer(t, Options{})
	fc.Advance(3 * time.Second)
	s.SetPaused(false)
	fc.Advance(2 * time.Second)
	assert.Equal(t, 5, s.Elapsed())
}

func TestSyncer_ErrorsSwallowed(t *testing.T) {
	s, rec, fc := newSyncer(t, Options{})
	rec.fail = true
	fc.Advance(20 * time.Second)
	assert.Equal(t, 0, s.Pushes())

	rec.fail = false
	fc.Advance(10 * time.Second)
	require.Len(t, rec.updates, 1)
	assert.Equal(t, 30, rec.updates[0].TimeSpent, "next push carries the cumulative value")
}

func TestSyncer_FlushBestEffort(t *testing.T) {
	s, rec, fc := newSyncer(t, Options{InitialSeconds: 100})
	fc.Advance(7 * time.Second)
	require.NoError(t, s.Flush(context.Background()))
	require.Len(t, rec.updates, 1)
	assert.Equal(t, 107, rec.updates[0].TimeSpent)

	rec.fail = true
	assert.Error(t, s.Flush(context.Background()))
	assert.Len(t, rec.updates, 1, "no retry")
}

func TestSyncer_StopCancelsInterval(t *testing.T) {
	s, rec, fc := newSyncer(t, Options{Interval: time.Second})
	s.Stop()
	assert.Equal(t, 0, fc.Pending())
	fc.Advance(5 * time.Second)
	assert.Empty(t, rec.updates)
}
