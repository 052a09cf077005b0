package mouse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputviz/internal/capture"
	"inputviz/internal/dispatch"
	"inputviz/internal/event"
	"inputviz/internal/metrics"
)

type harness struct {
	provider *capture.Synthetic
	mon      *Monitor
	metrics  *metrics.PipelineMetrics
	buf      *Buffer
	pushed   []event.MouseEvent
	t0       time.Time
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		provider: capture.NewSynthetic(),
		metrics:  metrics.NewPipelineMetrics(nil),
		buf:      NewBuffer(),
		t0:       time.Unix(1_700_000_000, 0),
	}
	sink := event.SinkFunc(func(e event.Event) {
		h.pushed = append(h.pushed, e.(event.MouseEvent))
		h.buf.Apply(e)
	})
	h.mon = New(h.provider, dispatch.NewManual(h.t0), sink, opts, nil, h.metrics)
	require.NoError(t, h.mon.Start())
	t.Cleanup(h.mon.Stop)
	return h
}

func (h *harness) at(ms int) time.Time {
	return h.t0.Add(time.Duration(ms) * time.Millisecond)
}

func TestParseMomentumPolicy(t *testing.T) {
	p, err := ParseMomentumPolicy(" Hide ")
	require.NoError(t, err)
	assert.Equal(t, MomentumHide, p)
	_, err = ParseMomentumPolicy("fade")
	assert.Error(t, err)
}

func TestMonitor_DoubleClick(t *testing.T) {
	tests := []struct {
		name   string
		second int
		want   bool
	}{
		{"within threshold", 200, true},
		{"outside threshold", 400, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DefaultOptions())
			h.provider.Click(h.at(0), 0, event.Point{X: 10, Y: 10})
			h.provider.Release(h.at(50), 0, event.Point{X: 10, Y: 10})
			h.provider.Click(h.at(tt.second), 0, event.Point{X: 10, Y: 10})

			require.Len(t, h.pushed, 3)
			assert.False(t, h.pushed[0].IsDoubleClick)
			assert.Equal(t, tt.want, h.pushed[2].IsDoubleClick)
		})
	}
}

func TestMonitor_ButtonsTrackedIndependently(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.provider.Click(h.at(0), 0, event.Point{})
	h.provider.Click(h.at(100), 1, event.Point{})

	require.Len(t, h.pushed, 2)
	assert.False(t, h.pushed[1].IsDoubleClick, "right click after left is not a double click")
	assert.Equal(t, event.ButtonRight, *h.pushed[1].Button)
	assert.Equal(t, 2, h.buf.Len())
}

func TestMonitor_UnknownButtonIgnored(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.provider.Click(h.at(0), 9, event.Point{})
	assert.Empty(t, h.pushed)
}

func TestMonitor_MovementDisabledByDefault(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.provider.Move(h.at(0), event.Point{X: 100, Y: 100})
	h.provider.Move(h.at(500), event.Point{X: 400, Y: 400})
	assert.Empty(t, h.pushed)
}

func TestMonitor_MovementGating(t *testing.T) {
	opts := DefaultOptions()
	opts.TrackMovement = true
	h := newHarness(t, opts)

	h.provider.Move(h.at(0), event.Point{X: 0, Y: 0})   // first move always shown
	h.provider.Move(h.at(20), event.Point{X: 50, Y: 0}) // inside debounce
	h.provider.Move(h.at(60), event.Point{X: 1, Y: 0})  // too small, too soon
	h.provider.Move(h.at(70), event.Point{X: 10, Y: 0}) // far enough
	h.provider.Move(h.at(180), event.Point{X: 11, Y: 0})

	require.Len(t, h.pushed, 3)
	assert.Equal(t, 10.0, h.pushed[1].Position.X)
	assert.Equal(t, 11.0, h.pushed[2].Position.X, "elapsed interval admits a small move")
	assert.Equal(t, 1, h.buf.Len(), "moves replace each other")
	assert.Equal(t, uint64(2), h.metrics.Suppressed.Value("debounce"))
}

func TestMonitor_Scroll(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.provider.Scroll(capture.ScrollEvent{Timestamp: h.at(0), DeltaY: -3})
	h.provider.Scroll(capture.ScrollEvent{Timestamp: h.at(10)})
	h.provider.Scroll(capture.ScrollEvent{Timestamp: h.at(20), DeltaY: -2, Phase: capture.ScrollPhaseMomentum})

	require.Len(t, h.pushed, 2, "zero delta dropped")
	assert.Equal(t, event.Point{Y: -3}, *h.pushed[0].ScrollDelta)
	assert.False(t, h.pushed[0].IsMomentumScroll)
	assert.True(t, h.pushed[1].IsMomentumScroll)
	assert.Equal(t, 1, h.buf.Len())
}

func TestMonitor_MomentumHidden(t *testing.T) {
	opts := DefaultOptions()
	opts.MomentumScroll = MomentumHide
	h := newHarness(t, opts)
	h.provider.Scroll(capture.ScrollEvent{Timestamp: h.at(0), DeltaY: -2, Phase: capture.ScrollPhaseMomentum})
	assert.Empty(t, h.pushed)
	assert.Equal(t, uint64(1), h.metrics.Suppressed.Value("momentum"))
}

func TestMonitor_ContinuousScrollLeftToTrackpad(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.provider.Scroll(capture.ScrollEvent{Timestamp: h.at(0), DeltaY: -2, Continuous: true})
	assert.Empty(t, h.pushed)

	opts := DefaultOptions()
	opts.ContinuousScroll = true
	h = newHarness(t, opts)
	h.provider.Scroll(capture.ScrollEvent{Timestamp: h.at(0), DeltaY: -2, Continuous: true})
	assert.Len(t, h.pushed, 1)
}

func TestBuffer_ReplacesSameCategory(t *testing.T) {
	b := NewBuffer()
	left, right := event.ButtonLeft, event.ButtonRight
	b.Apply(event.MouseEvent{Kind: event.MouseButtonAction, Button: &left, IsDown: true})
	b.Apply(event.MouseEvent{Kind: event.MouseScroll, ScrollDelta: &event.Point{Y: 1}})
	b.Apply(event.MouseEvent{Kind: event.MouseButtonAction, Button: &right, IsDown: true})
	b.Apply(event.MouseEvent{Kind: event.MouseButtonAction, Button: &left, IsDown: false})

	require.Equal(t, 3, b.Len())
	last := b.Events()[2].(event.MouseEvent)
	assert.Equal(t, event.ButtonLeft, *last.Button)
	assert.False(t, last.IsDown)
	assert.False(t, b.Apply(event.KeyboardEvent{}))
}

func TestMonitor_PermissionDenied(t *testing.T) {
	p := capture.NewSynthetic()
	p.Deny(capture.KindMouse, true)
	m := New(p, dispatch.NewManual(time.Unix(0, 0)), event.SinkFunc(func(event.Event) {}), Options{}, nil, nil)
	err := m.Start()
	assert.True(t, errors.Is(err, event.ErrMonitoringUnavailable))
	assert.False(t, m.IsMonitoring())
	m.Stop()
}

func TestMonitor_StopClearsClickHistory(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.provider.Click(h.at(0), 0, event.Point{})
	h.mon.Stop()
	require.NoError(t, h.mon.Start())
	h.provider.Click(h.at(100), 0, event.Point{})
	require.Len(t, h.pushed, 2)
	assert.False(t, h.pushed[1].IsDoubleClick)
}
