package aggregator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputviz/internal/dispatch"
	"inputviz/internal/event"
	"inputviz/internal/metrics"
)

var t0 = time.Unix(1_700_000_000, 0)

func newTestAggregator(t *testing.T, opts Options) (*Aggregator, *dispatch.Manual, *metrics.PipelineMetrics) {
	t.Helper()
	sched := dispatch.NewManual(t0)
	m := metrics.NewPipelineMetrics(nil)
	return New(sched, opts, nil, m), sched, m
}

func keyDown(ts time.Time, code int) event.KeyboardEvent {
	return event.KeyboardEvent{ID: event.NewID(), Timestamp: ts, KeyCode: code, IsDown: true}
}

func keyUp(ts time.Time, code int) event.KeyboardEvent {
	return event.KeyboardEvent{ID: event.NewID(), Timestamp: ts, KeyCode: code}
}

func click(ts time.Time, b event.Button) event.MouseEvent {
	return event.MouseEvent{ID: event.NewID(), Timestamp: ts, Kind: event.MouseButtonAction, Button: &b, IsDown: true}
}

func gesture(ts time.Time, g event.GestureType) event.TrackpadGestureEvent {
	return event.TrackpadGestureEvent{Gesture: event.TrackpadGesture{ID: event.NewID(), Timestamp: ts, Type: g}}
}

// =============================================================================
// Auto-hide
// =============================================================================

func TestPush_ActivatesAndAutoHides(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{})

	a.Push(keyDown(sched.Now(), 0))
	assert.True(t, a.ActiveTypes().Has(event.TypeKeyboard))
	assert.True(t, a.Visible())

	sched.Advance(1499 * time.Millisecond)
	assert.True(t, a.Visible())

	sched.Advance(101 * time.Millisecond)
	assert.False(t, a.Visible())
	assert.Empty(t, a.Snapshot().Keyboard)
}

func TestPush_ResetsTimer(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{})

	a.Push(keyDown(sched.Now(), 0))
	sched.Advance(time.Second)
	a.Push(keyDown(sched.Now(), 1))

	// 1.6s after the first push, 0.6s after the second.
	sched.Advance(600 * time.Millisecond)
	assert.True(t, a.ActiveTypes().Has(event.TypeKeyboard))
	assert.Len(t, a.Snapshot().Keyboard, 2)

	sched.Advance(900 * time.Millisecond)
	assert.False(t, a.Visible())
	assert.Equal(t, 0, sched.Pending())
}

func TestTimers_AreIndependentPerType(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{})

	a.Push(keyDown(sched.Now(), 0))
	sched.Advance(time.Second)
	a.Push(click(sched.Now(), event.ButtonLeft))

	sched.Advance(600 * time.Millisecond)
	active := a.ActiveTypes()
	assert.False(t, active.Has(event.TypeKeyboard))
	assert.True(t, active.Has(event.TypeMouse))
	assert.True(t, a.Visible())

	sched.Advance(time.Second)
	assert.False(t, a.Visible())
}

func TestSetAutoHideDelay_AppliesToNextPush(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{})
	a.SetAutoHideDelay(200 * time.Millisecond)
	assert.Equal(t, 200*time.Millisecond, a.AutoHideDelay())

	a.Push(gesture(sched.Now(), event.Pinch()))
	sched.Advance(250 * time.Millisecond)
	assert.False(t, a.Visible())

	a.SetAutoHideDelay(0)
	assert.Equal(t, DefaultAutoHideDelay, a.AutoHideDelay())
}

// =============================================================================
// Buffer routing
// =============================================================================

func TestKeyUp_RemovesWithoutRearming(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{})

	a.Push(keyDown(sched.Now(), 0))
	sched.Advance(time.Second)
	a.Push(keyUp(sched.Now(), 0))

	assert.Empty(t, a.Snapshot().Keyboard)
	assert.True(t, a.ActiveTypes().Has(event.TypeKeyboard), "type stays active until its timer fires")

	sched.Advance(500 * time.Millisecond)
	assert.False(t, a.Visible())
}

func TestKeyboardBuffer_RespectsMaxKeys(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{MaxKeys: 2})
	for code := 0; code < 4; code++ {
		a.Push(keyDown(sched.Now(), code))
	}
	snap := a.Snapshot()
	require.Len(t, snap.Keyboard, 2)
	assert.Equal(t, 2, snap.Keyboard[0].(event.KeyboardEvent).KeyCode)

	a.SetMaxKeys(1)
	assert.Len(t, a.Snapshot().Keyboard, 1)
}

func TestTrackpadBuffer_OneGesturePerKind(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{})
	a.Push(gesture(sched.Now(), event.Pinch()))
	a.Push(gesture(sched.Now(), event.Pinch()))
	a.Push(gesture(sched.Now(), event.Swipe(event.DirectionLeft)))

	assert.Len(t, a.Snapshot().Trackpad, 2)
}

// =============================================================================
// Enable, clear, settings
// =============================================================================

func TestDisabledType_IsDropped(t *testing.T) {
	a, sched, m := newTestAggregator(t, Options{})

	a.Push(click(sched.Now(), event.ButtonLeft))
	a.SetTypeEnabled(event.TypeMouse, false)
	assert.False(t, a.TypeEnabled(event.TypeMouse))
	assert.Empty(t, a.Snapshot().Mouse, "disabling clears the type")
	assert.False(t, a.Visible())

	a.Push(click(sched.Now(), event.ButtonRight))
	assert.Empty(t, a.Snapshot().Mouse)
	assert.Equal(t, uint64(1), m.Suppressed.Value("disabled"))
	assert.False(t, a.Snapshot().Enabled.Has(event.TypeMouse))

	a.SetTypeEnabled(event.TypeMouse, true)
	a.Push(click(sched.Now(), event.ButtonRight))
	assert.Len(t, a.Snapshot().Mouse, 1)
}

func TestClearAll(t *testing.T) {
	a, sched, m := newTestAggregator(t, Options{})
	a.Push(keyDown(sched.Now(), 0))
	a.Push(click(sched.Now(), event.ButtonLeft))
	a.Push(gesture(sched.Now(), event.Tap(2)))

	a.ClearAll()
	snap := a.Snapshot()
	assert.Equal(t, 0, snap.Len())
	assert.True(t, snap.ActiveTypes.Empty())
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, int64(0), m.ActiveTypes.Value())
}

func TestStaleTimer_CountsRace(t *testing.T) {
	a, sched, m := newTestAggregator(t, Options{})
	a.Push(keyDown(sched.Now(), 0))
	stale := a.timers[event.TypeKeyboard].token
	a.Push(keyDown(sched.Now(), 1))

	a.expire(event.TypeKeyboard, stale)
	assert.Len(t, a.Snapshot().Keyboard, 2)
	assert.Equal(t, uint64(1), m.TimerRaces.Value())
}

func TestSettingsFlowIntoSnapshot(t *testing.T) {
	a, _, _ := newTestAggregator(t, Options{MinimalDisplay: true})
	assert.True(t, a.Snapshot().MinimalDisplay)

	a.SetMinimalDisplay(false)
	a.SetMonitoring(true)
	snap := a.Snapshot()
	assert.False(t, snap.MinimalDisplay)
	assert.True(t, snap.Monitoring)
}

// =============================================================================
// Snapshots and subscriptions
// =============================================================================

func TestSnapshot_IsImmutable(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{})
	a.Push(keyDown(sched.Now(), 0))
	before := a.Snapshot()

	a.Push(keyDown(sched.Now(), 1))
	assert.Len(t, before.Keyboard, 1)
	assert.Greater(t, a.Snapshot().Seq, before.Seq)
}

func TestSnapshot_JSONShape(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{})
	a.Push(keyDown(sched.Now(), 0))

	raw, err := json.Marshal(a.Snapshot())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, []any{"keyboard"}, doc["active_types"])
	assert.Equal(t, []any{}, doc["mouse"])
	assert.Equal(t, true, doc["visible"])
	keys := doc["keyboard"].([]any)
	require.Len(t, keys, 1)
	assert.Equal(t, "keyboard", keys[0].(map[string]any)["type"])
}

func TestSubscribe_LatestWins(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{})
	ch, cancel := a.Subscribe()
	defer cancel()

	first := <-ch
	assert.False(t, first.Visible)

	a.Push(keyDown(sched.Now(), 0))
	a.Push(keyDown(sched.Now(), 1))
	a.Push(keyDown(sched.Now(), 2))

	got := <-ch
	assert.Len(t, got.Keyboard, 3)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected queued snapshot seq=%d", extra.Seq)
	default:
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	a, sched, _ := newTestAggregator(t, Options{})
	ch, cancel := a.Subscribe()
	<-ch
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	a.Push(keyDown(sched.Now(), 0))
}
