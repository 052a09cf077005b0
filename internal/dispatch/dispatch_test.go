package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Manual scheduler
// =============================================================================

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var order []string
	m.Schedule(300*time.Millisecond, func() { order = append(order, "c") })
	m.Schedule(100*time.Millisecond, func() { order = append(order, "a") })
	m.Schedule(200*time.Millisecond, func() { order = append(order, "b") })

	m.Advance(150 * time.Millisecond)
	assert.Equal(t, []string{"a"}, order)
	assert.Equal(t, time.Unix(0, 0).Add(150*time.Millisecond), m.Now())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_ClockAtDeadlineDuringCallback(t *testing.T) {
	start := time.Unix(0, 0)
	m := NewManual(start)
	var at time.Time
	m.Schedule(time.Second, func() { at = m.Now() })
	m.Advance(5 * time.Second)
	assert.Equal(t, start.Add(time.Second), at)
}

func TestManual_Cancel(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	fired := false
	h := m.Schedule(time.Second, func() { fired = true })

	assert.True(t, m.Cancel(h))
	assert.False(t, m.Cancel(h), "second cancel reports not pending")
	m.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestManual_RescheduleFromCallback(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		m.Schedule(500*time.Millisecond, tick)
	}
	m.Schedule(500*time.Millisecond, tick)

	m.Advance(2 * time.Second)
	assert.Equal(t, 4, ticks)
}

func TestManual_PostIsReentrantInOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var order []int
	m.Post(func() {
		order = append(order, 1)
		m.Post(func() { order = append(order, 3) })
		order = append(order, 2)
	})
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.False(t, m.Post(nil))
}

func TestManual_PanicDoesNotWedgeQueue(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	m.Post(func() { panic("boom") })
	ran := false
	m.Post(func() { ran = true })
	assert.True(t, ran)
	assert.Equal(t, uint64(1), m.Panics())
}

// =============================================================================
// Loop
// =============================================================================

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := NewLoop(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	t.Cleanup(func() {
		cancel()
		l.Stop()
	})
	return l
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	l := startLoop(t)
	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		require.True(t, l.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, l.Sync(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestLoop_ScheduleAndCancel(t *testing.T) {
	l := startLoop(t)
	var fired atomic.Int32
	done := make(chan struct{})

	h := l.Schedule(10*time.Millisecond, func() { fired.Add(100) })
	assert.True(t, l.Cancel(h))
	l.Schedule(20*time.Millisecond, func() {
		fired.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, 0, l.Pending())
}

func TestLoop_CancelAfterFireQueuedIsNoop(t *testing.T) {
	l := NewLoop(16, nil)
	var fired atomic.Bool
	h := l.Schedule(time.Millisecond, func() { fired.Store(true) })

	// The loop isn't running, so the firing waits for Run.
	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.Cancel(h))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)
	require.NoError(t, l.Sync(context.Background()))
	assert.False(t, fired.Load())
	l.Stop()
}

func TestLoop_RecoversPanics(t *testing.T) {
	l := startLoop(t)
	l.Post(func() { panic("boom") })
	ran := false
	l.Post(func() { ran = true })
	require.NoError(t, l.Sync(context.Background()))
	assert.True(t, ran)
	assert.Equal(t, uint64(1), l.Panics())
}

func TestLoop_DropsWhenFull(t *testing.T) {
	l := NewLoop(2, nil)
	assert.True(t, l.Post(func() {}))
	assert.True(t, l.Post(func() {}))
	assert.False(t, l.Post(func() {}))
	assert.Equal(t, uint64(1), l.Dropped())
}

func TestLoop_StopIsIdempotent(t *testing.T) {
	l := NewLoop(4, nil)
	l.Schedule(time.Hour, func() {})
	l.Stop()
	l.Stop()
	assert.Equal(t, 0, l.Pending())
	assert.False(t, l.Post(func() {}))
	assert.Equal(t, TimerHandle(0), l.Schedule(time.Second, func() {}))
	assert.ErrorIs(t, l.Run(context.Background()), ErrStopped)
}

func TestLoop_TimerFiresWhileQueueFull(t *testing.T) {
	l := NewLoop(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	t.Cleanup(func() {
		cancel()
		l.Stop()
	})

	release := make(chan struct{})
	blocked := make(chan struct{})
	require.True(t, l.Post(func() {
		close(blocked)
		<-release
	}))
	<-blocked
	fired := make(chan struct{})
	l.Schedule(10*time.Millisecond, func() { close(fired) })
	for l.Post(func() {}) {
	}

	time.Sleep(40 * time.Millisecond)
	close(release)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never fired; pending=%d dropped=%d", l.Pending(), l.Dropped())
	}
	assert.Equal(t, 0, l.Pending())
	assert.NotZero(t, l.Dropped())
}

func TestLoop_RunResumesAfterCancel(t *testing.T) {
	l := NewLoop(16, nil)
	t.Cleanup(l.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	exited := l.Start(ctx)
	require.NoError(t, l.Sync(context.Background()))
	cancel()
	<-exited

	var ran atomic.Bool
	fired := make(chan struct{})
	require.True(t, l.Post(func() { ran.Store(true) }))
	l.Schedule(time.Millisecond, func() { close(fired) })

	l.Start(context.Background())
	require.NoError(t, l.Sync(context.Background()))
	assert.True(t, ran.Load())
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer scheduled while paused did not fire")
	}
}
