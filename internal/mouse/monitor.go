// Package mouse normalizes button, movement and scroll notifications.
package mouse

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inputviz/internal/capture"
	"inputviz/internal/dispatch"
	"inputviz/internal/event"
	"inputviz/internal/logging"
	"inputviz/internal/metrics"
	"inputviz/internal/monitor"
)

// MomentumPolicy decides what happens to inertia scroll deltas.
type MomentumPolicy string

const (
	// MomentumShow forwards momentum scrolls flagged IsMomentumScroll.
	MomentumShow MomentumPolicy = "show"
	// MomentumHide drops momentum scrolls.
	MomentumHide MomentumPolicy = "hide"
)

// ParseMomentumPolicy parses "show" or "hide".
func ParseMomentumPolicy(s string) (MomentumPolicy, error) {
	switch MomentumPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case MomentumShow:
		return MomentumShow, nil
	case MomentumHide:
		return MomentumHide, nil
	default:
		return "", fmt.Errorf("unknown momentum scroll policy %q", s)
	}
}

// Options tunes the mouse monitor.
type Options struct {
	DoubleClickThreshold time.Duration

	// TrackMovement enables pointer movement events. Clicks-only is the
	// default because movement floods the display.
	TrackMovement   bool
	MoveMinDistance float64
	MoveMinInterval time.Duration
	MoveDebounce    time.Duration

	MomentumScroll MomentumPolicy
	// ContinuousScroll also shows precise scrolls here. Normally the
	// trackpad monitor reports them as scroll gestures.
	ContinuousScroll bool
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		DoubleClickThreshold: 300 * time.Millisecond,
		MoveMinDistance:      4,
		MoveMinInterval:      100 * time.Millisecond,
		MoveDebounce:         50 * time.Millisecond,
		MomentumScroll:       MomentumShow,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DoubleClickThreshold <= 0 {
		o.DoubleClickThreshold = d.DoubleClickThreshold
	}
	if o.MoveMinDistance <= 0 {
		o.MoveMinDistance = d.MoveMinDistance
	}
	if o.MoveMinInterval <= 0 {
		o.MoveMinInterval = d.MoveMinInterval
	}
	if o.MoveDebounce < 0 {
		o.MoveDebounce = 0
	}
	if o.MomentumScroll == "" {
		o.MomentumScroll = d.MomentumScroll
	}
	return o
}

// Monitor is the mouse monitor.
type Monitor struct {
	lc      *monitor.Lifecycle
	sink    event.Sink
	opts    Options
	metrics *metrics.PipelineMetrics

	lastClick map[event.Button]time.Time
	lastMove  time.Time
	lastPos   event.Point
	moved     bool
}

// New creates a stopped mouse monitor delivering to sink.
func New(p capture.Provider, s dispatch.Scheduler, sink event.Sink, opts Options, logger *slog.Logger, m *metrics.PipelineMetrics) *Monitor {
	return &Monitor{
		lc:        monitor.NewLifecycle("mouse", p, s, logger, m),
		sink:      sink,
		opts:      opts.withDefaults(),
		metrics:   m,
		lastClick: make(map[event.Button]time.Time),
	}
}

// Start registers the mouse tap.
func (m *Monitor) Start() error {
	return m.lc.Start(func(p capture.Provider) (capture.Handle, error) {
		return p.RegisterMouseTap(capture.MaskMouse, m.handleRaw)
	})
}

// Stop removes the tap and forgets click history. Idempotent.
func (m *Monitor) Stop() { m.lc.Stop(m.reset) }

// IsMonitoring reports whether the tap is installed.
func (m *Monitor) IsMonitoring() bool { return m.lc.IsMonitoring() }

// Err returns the last start failure.
func (m *Monitor) Err() error { return m.lc.Err() }

// SetOptions replaces the tuning. It must run on the apply context.
func (m *Monitor) SetOptions(opts Options) {
	m.opts = opts.withDefaults()
	m.moved = false
}

func (m *Monitor) handleRaw(ev capture.MouseTapEvent) {
	defer logging.RecoverCallback(m.lc.Logger(), "mouse tap", m.lc.OnPanic)
	m.metrics.Raw("mouse")
	m.lc.Post(func() { m.apply(ev) })
}

func (m *Monitor) apply(ev capture.MouseTapEvent) {
	switch ev.Action {
	case capture.MouseDown, capture.MouseUp:
		m.button(ev)
	case capture.MouseMoved:
		m.move(ev)
	case capture.MouseScroll:
		m.scroll(ev)
	}
}

func (m *Monitor) button(ev capture.MouseTapEvent) {
	b, ok := event.ButtonFromNumber(ev.Button)
	if !ok {
		m.lc.Logger().Debug("ignoring unknown mouse button", "button", ev.Button)
		return
	}
	down := ev.Action == capture.MouseDown

	e := event.MouseEvent{
		ID:        event.NewID(),
		Timestamp: ev.Timestamp,
		Kind:      event.MouseButtonAction,
		Position:  ev.Position,
		Button:    &b,
		IsDown:    down,
	}
	if down {
		if last, ok := m.lastClick[b]; ok {
			e.IsDoubleClick = ev.Timestamp.Sub(last) < m.opts.DoubleClickThreshold
		}
		m.lastClick[b] = ev.Timestamp
	}
	m.emit(e)
}

func (m *Monitor) move(ev capture.MouseTapEvent) {
	if !m.opts.TrackMovement {
		return
	}
	if m.moved {
		since := ev.Timestamp.Sub(m.lastMove)
		if since < m.opts.MoveDebounce {
			m.metrics.Suppress("debounce")
			return
		}
		if ev.Position.Distance(m.lastPos) < m.opts.MoveMinDistance && since < m.opts.MoveMinInterval {
			m.metrics.Suppress("debounce")
			return
		}
	}
	m.moved = true
	m.lastMove = ev.Timestamp
	m.lastPos = ev.Position
	m.emit(event.MouseEvent{
		ID:        event.NewID(),
		Timestamp: ev.Timestamp,
		Kind:      event.MouseMove,
		Position:  ev.Position,
	})
}

func (m *Monitor) scroll(ev capture.MouseTapEvent) {
	sc := ev.Scroll
	if sc.Continuous && !m.opts.ContinuousScroll {
		return
	}
	if sc.DeltaX == 0 && sc.DeltaY == 0 {
		return
	}
	momentum := sc.Phase.IsMomentum()
	if momentum && m.opts.MomentumScroll == MomentumHide {
		m.metrics.Suppress("momentum")
		return
	}
	m.emit(event.MouseEvent{
		ID:               event.NewID(),
		Timestamp:        ev.Timestamp,
		Kind:             event.MouseScroll,
		Position:         ev.Position,
		ScrollDelta:      &event.Point{X: sc.DeltaX, Y: sc.DeltaY},
		IsMomentumScroll: momentum,
	})
}

func (m *Monitor) emit(e event.MouseEvent) {
	m.metrics.Emit("mouse")
	m.sink.Push(e)
}

func (m *Monitor) reset() {
	clear(m.lastClick)
	m.moved = false
}
