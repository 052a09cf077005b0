package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputviz/internal/aggregator"
	"inputviz/internal/capture"
	"inputviz/internal/dispatch"
	"inputviz/internal/event"
	"inputviz/internal/pipeline"
	"inputviz/internal/trackpad"
)

type manualClock struct {
	sched *dispatch.Manual
	start time.Time
}

func (c manualClock) WaitUntil(_ context.Context, offset time.Duration) (time.Time, error) {
	ts := c.start.Add(offset)
	c.sched.AdvanceTo(ts)
	return ts, nil
}

type gestureLog []event.TrackpadGesture

func (g *gestureLog) OnGesture(x event.TrackpadGesture)  { *g = append(*g, x) }
func (g *gestureLog) OnTouchesBegan([]event.FingerTouch) {}
func (g *gestureLog) OnTouchesEnded([]event.FingerTouch) {}

func TestScriptIsOrdered(t *testing.T) {
	steps := Script()
	require.NotEmpty(t, steps)
	for i := 1; i < len(steps); i++ {
		assert.LessOrEqual(t, steps[i-1].At, steps[i].At, steps[i].Name)
	}
}

func TestPlayExercisesEveryPath(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	provider := capture.NewSynthetic()
	sched := dispatch.NewManual(t0)
	var log gestureLog
	p := pipeline.New(pipeline.Options{
		Provider:  provider,
		Scheduler: sched,
		Trackpad:  trackpad.Options{Delegate: &log},
	})
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)

	after := map[string]*aggregator.Snapshot{}
	err := Play(context.Background(), provider, manualClock{sched: sched, start: t0}, Script(), func(s Step) {
		after[s.Name] = p.Snapshot()
	})
	require.NoError(t, err)

	keys := after["shift+h down"].Keyboard
	require.Len(t, keys, 1)
	assert.True(t, keys[0].(event.KeyboardEvent).Modifiers.Has(event.ModShift))

	mice := after["double click"].Mouse
	require.NotEmpty(t, mice)
	assert.True(t, mice[len(mice)-1].(event.MouseEvent).IsDoubleClick)

	kinds := map[event.GestureKind]int{}
	for _, g := range log {
		kinds[g.Type.Kind]++
	}
	assert.Positive(t, kinds[event.GesturePinch])
	assert.Equal(t, 1, kinds[event.GestureMultiFingerSwipe])
	assert.Equal(t, 1, kinds[event.GestureTap])
	assert.Equal(t, 1, kinds[event.GestureScroll])
}

func TestPlayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Play(ctx, capture.NewSynthetic(), NewWallClock(), []Step{
		{At: time.Hour, Name: "never", Do: func(*capture.Synthetic, time.Time) { calls++ }},
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
