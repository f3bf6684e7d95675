package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/studyctl/internal/clock"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newReading(t *testing.T, opts ReadingOptions) (*ReadingTracker, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(epoch)
	r := NewReadingTracker(fc, opts)
	r.Start()
	t.Cleanup(r.Stop)
	return r, fc
}

func TestReading_RevisitKeepsFirstEntry(t *testing.T) {
	r, fc := newReading(t, ReadingOptions{TotalUnits: 5})

	var lastTotals = map[int]int64{}
	visit := func(unit int, secs int) {
		require.NoError(t, r.Navigate(unit))
		fc.Advance(time.Duration(secs) * time.Second)
		rec, ok := r.Unit(unit)
		require.True(t, ok)
		assert.GreaterOrEqual(t, rec.TotalTimeMs, lastTotals[unit], "unit time never decreases")
		lastTotals[unit] = rec.TotalTimeMs
	}

	visit(1, 3)
	visit(2, 2)
	visit(1, 4)
	visit(3, 1)
	s := r.Finish()

	require.Len(t, s.Units, 3)
	assert.Equal(t, 3, s.UnitsVisited)
	assert.Equal(t, []int{1, 2, 3}, []int{s.Units[0].Unit, s.Units[1].Unit, s.Units[2].Unit})

	assert.Equal(t, epoch, s.Units[0].TimeEntered, "first visit only")
	assert.Equal(t, epoch.Add(3*time.Second), s.Units[1].TimeEntered)
	assert.Equal(t, epoch.Add(9*time.Second), s.Units[2].TimeEntered)

	assert.Equal(t, int64(7000), s.Units[0].TotalTimeMs)
	assert.Equal(t, int64(2000), s.Units[1].TotalTimeMs)
	assert.Equal(t, int64(1000), s.Units[2].TotalTimeMs)
	assert.Equal(t, 10, s.ElapsedSeconds)
	assert.InDelta(t, 60.0, s.ReadingProgress, 0.001)
	assert.Equal(t, 0, fc.Pending(), "finish leaves no background work")
}

func TestReading_ScrollMaxAndLast(t *testing.T) {
	var commits []int
	r, fc := newReading(t, ReadingOptions{
		TotalUnits:     2,
		OnScrollCommit: func(_, depth int) { commits = append(commits, depth) },
	})
	require.NoError(t, r.Navigate(1))

	for _, d := range []int{10, 40, 25, 80, 60} {
		r.RecordScroll(d)
		fc.Advance(100 * time.Millisecond)
	}
	rec, _ := r.Unit(1)
	assert.Equal(t, 80, rec.MaxScrollDepth, "max taken from every sample")
	assert.Empty(t, commits, "still inside the debounce window")

	fc.Advance(time.Second)
	rec, _ = r.Unit(1)
	assert.Equal(t, 60, rec.ScrollDepth)
	assert.Equal(t, []int{60}, commits)
}

func TestReading_ScrollFlushedOnFinish(t *testing.T) {
	r, _ := newReading(t, ReadingOptions{TotalUnits: 1})
	require.NoError(t, r.Navigate(1))
	for _, d := range []int{10, 40, 25, 80, 60} {
		r.RecordScroll(d)
	}
	s := r.Finish()
	assert.Equal(t, 80, s.Units[0].MaxScrollDepth)
	assert.Equal(t, 60, s.Units[0].ScrollDepth)
}

func TestReading_ScrollBelongsToOutgoingUnit(t *testing.T) {
	r, _ := newReading(t, ReadingOptions{TotalUnits: 3})
	require.NoError(t, r.Navigate(1))
	r.RecordScroll(70)
	require.NoError(t, r.Navigate(2))

	one, _ := r.Unit(1)
	two, _ := r.Unit(2)
	assert.Equal(t, 70, one.ScrollDepth)
	assert.Equal(t, 0, two.ScrollDepth)
}

func TestReading_SummaryDebounced(t *testing.T) {
	type call struct{ elapsed, visited int }
	var calls []call
	r, fc := newReading(t, ReadingOptions{
		TotalUnits:      4,
		SummaryDebounce: 250 * time.Millisecond,
		OnSummary:       func(e, v int) { calls = append(calls, call{e, v}) },
	})

	require.NoError(t, r.Navigate(1))
	require.NoError(t, r.Navigate(2))
	fc.Advance(200 * time.Millisecond)
	assert.Empty(t, calls)

	fc.Advance(100 * time.Millisecond)
	require.Len(t, calls, 1)
	assert.Equal(t, call{0, 2}, calls[0])

	// One tick per second, each followed by a quiet window.
	fc.Advance(3 * time.Second)
	assert.Len(t, calls, 4)
	assert.Equal(t, call{3, 2}, calls[3])
}

func TestReading_PauseStopsDwell(t *testing.T) {
	r, fc := newReading(t, ReadingOptions{TotalUnits: 1})
	require.NoError(t, r.Navigate(1))
	fc.Advance(2 * time.Second)
	r.SetPaused(true)
	fc.Advance(10 * time.Second)
	r.SetPaused(false)
	fc.Advance(time.Second)

	rec, _ := r.Unit(1)
	assert.Equal(t, int64(3000), rec.TotalTimeMs)
}

func TestReading_UnitChangeCallback(t *testing.T) {
	type change struct {
		from, to int
		first    bool
	}
	var changes []change
	r, _ := newReading(t, ReadingOptions{
		TotalUnits:   3,
		OnUnitChange: func(from, to int, first bool) { changes = append(changes, change{from, to, first}) },
	})
	require.NoError(t, r.Navigate(1))
	require.NoError(t, r.Navigate(1))
	require.NoError(t, r.Navigate(2))
	require.NoError(t, r.Navigate(1))

	assert.Equal(t, []change{{0, 1, true}, {1, 2, true}, {2, 1, false}}, changes)
}

func TestReading_NavigateOutOfRange(t *testing.T) {
	r, _ := newReading(t, ReadingOptions{TotalUnits: 3})
	assert.Error(t, r.Navigate(0))
	assert.Error(t, r.Navigate(4))
	assert.Equal(t, 0, r.Current())
}

func TestReading_ScrollClamped(t *testing.T) {
	r, _ := newReading(t, ReadingOptions{TotalUnits: 1})
	require.NoError(t, r.Navigate(1))
	r.RecordScroll(140)
	s := r.Finish()
	assert.Equal(t, 100, s.Units[0].MaxScrollDepth)
}

func TestSummary_EventData(t *testing.T) {
	r, fc := newReading(t, ReadingOptions{TotalUnits: 2})
	require.NoError(t, r.Navigate(1))
	fc.Advance(2 * time.Second)
	data := r.Finish().EventData()

	assert.Equal(t, "READING", data["modality"])
	assert.Equal(t, 1, data["units_visited"])
	assert.Equal(t, 2, data["elapsed_seconds"])
	units, ok := data["units"].([]map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(2000), units[0]["total_time_ms"])
}
