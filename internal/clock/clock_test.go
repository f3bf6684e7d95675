package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFake_AfterFiresOnce(t *testing.T) {
	f := NewFake(epoch)
	calls := 0
	f.After(2*time.Second, func() { calls++ })

	f.Advance(time.Second)
	assert.Equal(t, 0, calls)
	f.Advance(time.Second)
	assert.Equal(t, 1, calls)
	f.Advance(time.Minute)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, f.Pending())
}

func TestFake_EveryFiresPerPeriod(t *testing.T) {
	f := NewFake(epoch)
	var seen []time.Time
	h := f.Every(time.Second, func() { seen = append(seen, f.Now()) })

	f.Advance(3500 * time.Millisecond)
	assert.Len(t, seen, 3)
	assert.Equal(t, epoch.Add(time.Second), seen[0])
	assert.Equal(t, epoch.Add(3*time.Second), seen[2])
	assert.Equal(t, epoch.Add(3500*time.Millisecond), f.Now())

	assert.True(t, h.Stop())
	assert.False(t, h.Stop())
	f.Advance(5 * time.Second)
	assert.Len(t, seen, 3)
}

func TestFake_OrderAcrossTimers(t *testing.T) {
	f := NewFake(epoch)
	var order []string
	f.Every(time.Second, func() { order = append(order, "tick") })
	f.After(1500*time.Millisecond, func() { order = append(order, "once") })

	f.Advance(2 * time.Second)
	assert.Equal(t, []string{"tick", "once", "tick"}, order)
}

func TestFake_CallbackSchedulesInsideWindow(t *testing.T) {
	f := NewFake(epoch)
	fired := false
	f.After(time.Second, func() {
		f.After(time.Second, func() { fired = true })
	})
	f.Advance(2 * time.Second)
	assert.True(t, fired)
}

func TestDebouncer_TrailingEdge(t *testing.T) {
	f := NewFake(epoch)
	calls := 0
	d := NewDebouncer(f, 250*time.Millisecond, func() { calls++ })

	for i := 0; i < 5; i++ {
		d.Trigger()
		f.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 0, calls, "each trigger cancels the pending call")

	f.Advance(250 * time.Millisecond)
	assert.Equal(t, 1, calls)
	assert.False(t, d.Pending())
}

func TestDebouncer_FlushAndCancel(t *testing.T) {
	f := NewFake(epoch)
	calls := 0
	d := NewDebouncer(f, time.Second, func() { calls++ })

	d.Flush()
	assert.Equal(t, 0, calls, "flush without pending call is a no-op")

	d.Trigger()
	d.Flush()
	assert.Equal(t, 1, calls)
	f.Advance(2 * time.Second)
	assert.Equal(t, 1, calls, "flushed call does not fire again")

	d.Trigger()
	d.Cancel()
	f.Advance(2 * time.Second)
	assert.Equal(t, 1, calls)
}

func TestReal_EveryStops(t *testing.T) {
	var n atomic.Int32
	h := Real{}.Every(5*time.Millisecond, func() { n.Add(1) })
	assert.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)
	assert.True(t, h.Stop())

	time.Sleep(20 * time.Millisecond)
	after := n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, n.Load())
}
