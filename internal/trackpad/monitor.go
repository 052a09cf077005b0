// Package trackpad tracks multi-touch contacts and classifies them into
// gestures.
//
// The monitor keeps one FingerTouch per contact from Began until Ended,
// Cancelled or a staleness sweep removes it. Each frame in which a contact
// moved is handed to the Classifier. Two-finger taps are detected with an
// arm timer, and scroll notifications become scroll gestures, with
// placeholder touches when no finger backs them (momentum scrolling).
package trackpad

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"inputviz/internal/capture"
	"inputviz/internal/dispatch"
	"inputviz/internal/event"
	"inputviz/internal/logging"
	"inputviz/internal/metrics"
	"inputviz/internal/monitor"
)

// SyntheticTouchBaseID is the first id used for placeholder touches.
// Real contact identities are allocated below it.
const SyntheticTouchBaseID = 1_000_000

// Delegate observes trackpad activity. Methods run on the apply context.
type Delegate interface {
	OnGesture(g event.TrackpadGesture)
	OnTouchesBegan(touches []event.FingerTouch)
	OnTouchesEnded(touches []event.FingerTouch)
}

// Options tunes the trackpad monitor.
type Options struct {
	TapArmDelay     time.Duration
	TapSimultaneity time.Duration
	TapEpsilon      float64

	CleanupInterval time.Duration
	StaleTimeout    time.Duration

	// HideMomentum drops momentum scrolls instead of flagging them.
	HideMomentum bool

	Classifier ClassifierOptions

	// Delegate may be nil.
	Delegate Delegate
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		TapArmDelay:     200 * time.Millisecond,
		TapSimultaneity: 50 * time.Millisecond,
		TapEpsilon:      0.02,
		CleanupInterval: 500 * time.Millisecond,
		StaleTimeout:    time.Second,
		Classifier:      DefaultClassifierOptions(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TapArmDelay <= 0 {
		o.TapArmDelay = d.TapArmDelay
	}
	if o.TapSimultaneity <= 0 {
		o.TapSimultaneity = d.TapSimultaneity
	}
	if o.TapEpsilon <= 0 {
		o.TapEpsilon = d.TapEpsilon
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = d.CleanupInterval
	}
	if o.StaleTimeout <= 0 {
		o.StaleTimeout = d.StaleTimeout
	}
	o.Classifier = o.Classifier.withDefaults()
	return o
}

type contact struct {
	touch event.FingerTouch
	began time.Time
	start event.Point
}

type tapState struct {
	timer dispatch.TimerHandle
	ids   [2]int
}

// Monitor is the trackpad monitor. Everything below the lifecycle is
// owned by the apply context.
type Monitor struct {
	lc      *monitor.Lifecycle
	sched   dispatch.Scheduler
	sink    event.Sink
	opts    Options
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger

	classifier *Classifier
	live       map[int]*contact // keyed by platform id
	nextID     int
	tap        *tapState
	sweep      dispatch.TimerHandle
}

// New creates a stopped trackpad monitor delivering to sink.
func New(p capture.Provider, s dispatch.Scheduler, sink event.Sink, opts Options, logger *slog.Logger, m *metrics.PipelineMetrics) *Monitor {
	lc := monitor.NewLifecycle("trackpad", p, s, logger, m)
	opts = opts.withDefaults()
	return &Monitor{
		lc:         lc,
		sched:      s,
		sink:       sink,
		opts:       opts,
		metrics:    m,
		logger:     lc.Logger(),
		classifier: NewClassifier(opts.Classifier),
		live:       make(map[int]*contact),
	}
}

// Start registers the touch source and begins the staleness sweep.
func (m *Monitor) Start() error {
	err := m.lc.Start(func(p capture.Provider) (capture.Handle, error) {
		return p.RegisterTouchSource(capture.TouchFuncs{
			Touches: m.handleTouches,
			Scroll:  m.handleScroll,
			Gesture: m.handleGesture,
		})
	})
	if err != nil {
		return err
	}
	m.lc.Post(m.startSweep)
	return nil
}

// Stop removes the touch source, cancels the tap and sweep timers and
// forgets every contact. Idempotent.
func (m *Monitor) Stop() { m.lc.Stop(m.reset) }

// IsMonitoring reports whether the touch source is registered.
func (m *Monitor) IsMonitoring() bool { return m.lc.IsMonitoring() }

// Err returns the last start failure.
func (m *Monitor) Err() error { return m.lc.Err() }

// SetOptions replaces the tuning. It must run on the apply context. The
// delegate is kept when opts carries none.
func (m *Monitor) SetOptions(opts Options) {
	if opts.Delegate == nil {
		opts.Delegate = m.opts.Delegate
	}
	m.opts = opts.withDefaults()
	m.classifier.SetOptions(m.opts.Classifier)
}

// LiveTouches returns the tracked contacts ordered by id. It must run on
// the apply context.
func (m *Monitor) LiveTouches() []event.FingerTouch {
	out := make([]event.FingerTouch, 0, len(m.live))
	for _, c := range m.live {
		out = append(out, c.touch)
	}
	slices.SortFunc(out, func(a, b event.FingerTouch) int { return a.ID - b.ID })
	return out
}

func (m *Monitor) handleTouches(fr capture.TouchFrame) {
	defer logging.RecoverCallback(m.logger, "touch frame", m.lc.OnPanic)
	m.metrics.Raw("trackpad")
	fr.Touches = slices.Clone(fr.Touches)
	m.lc.Post(func() { m.applyFrame(fr) })
}

func (m *Monitor) handleScroll(ev capture.ScrollEvent) {
	defer logging.RecoverCallback(m.logger, "trackpad scroll", m.lc.OnPanic)
	m.metrics.Raw("trackpad")
	m.lc.Post(func() { m.applyScroll(ev) })
}

func (m *Monitor) handleGesture(g capture.PlatformGesture) {
	defer logging.RecoverCallback(m.logger, "platform gesture", m.lc.OnPanic)
	m.metrics.Raw("trackpad")
	m.lc.Post(func() { m.applyPlatformGesture(g) })
}

func validate(rt capture.RawTouch) error {
	if rt.ID < 0 {
		return fmt.Errorf("touch without identity: %w", event.ErrMalformedFrame)
	}
	if rt.Phase == capture.TouchEnded || rt.Phase == capture.TouchCancelled {
		return nil
	}
	for _, v := range []float64{rt.X, rt.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return fmt.Errorf("touch %d position (%g, %g): %w", rt.ID, rt.X, rt.Y, event.ErrMalformedFrame)
		}
	}
	return nil
}

func (m *Monitor) allocID() int {
	m.nextID++
	if m.nextID >= SyntheticTouchBaseID {
		m.nextID = 1
	}
	return m.nextID
}

func (m *Monitor) begin(rt capture.RawTouch, ts time.Time) *contact {
	pos := event.Point{X: rt.X, Y: rt.Y}
	c := &contact{
		touch: event.FingerTouch{ID: m.allocID(), FingerType: rt.FingerType},
		began: ts,
		start: pos,
	}
	m.live[rt.ID] = c
	c.update(rt, ts)
	return c
}

func (c *contact) update(rt capture.RawTouch, ts time.Time) {
	c.touch.Position = event.Point{X: rt.X, Y: rt.Y}
	c.touch.Pressure = rt.Pressure
	c.touch.MajorRadius = rt.MajorRadius
	c.touch.MinorRadius = rt.MinorRadius
	c.touch.Timestamp = ts
	if rt.FingerType != event.FingerUnknown {
		c.touch.FingerType = rt.FingerType
	}
}

func (m *Monitor) applyFrame(fr capture.TouchFrame) {
	var began, ended []event.FingerTouch
	changed := false

	for _, rt := range fr.Touches {
		if err := validate(rt); err != nil {
			m.metrics.MalformedTouch()
			m.logger.Debug("skipping touch", "error", err)
			continue
		}
		c, known := m.live[rt.ID]
		switch rt.Phase {
		case capture.TouchBegan, capture.TouchMoved:
			if !known {
				// A Moved for an unknown contact means its Began was missed.
				c = m.begin(rt, fr.Timestamp)
				began = append(began, c.touch)
			} else {
				c.update(rt, fr.Timestamp)
			}
			changed = true
		case capture.TouchStationary:
			if !known {
				c = m.begin(rt, fr.Timestamp)
				began = append(began, c.touch)
				changed = true
			} else {
				c.touch.Timestamp = fr.Timestamp
			}
		case capture.TouchEnded, capture.TouchCancelled:
			if known {
				delete(m.live, rt.ID)
				ended = append(ended, c.touch)
				changed = true
			}
		}
	}

	if len(began) > 0 {
		if d := m.opts.Delegate; d != nil {
			d.OnTouchesBegan(began)
		}
	}
	if len(ended) > 0 {
		if d := m.opts.Delegate; d != nil {
			d.OnTouchesEnded(ended)
		}
	}
	m.metrics.SetLiveTouches(len(m.live))

	if !changed {
		return
	}
	m.updateTap(len(began) > 0)
	m.publishTouches(fr.Timestamp)

	if res, ok := m.classifier.Classify(m.LiveTouches()); ok {
		m.emit(fr.Timestamp, res.Type, res.Magnitude, res.Rotation, false, m.LiveTouches())
	}
}

func (m *Monitor) publishTouches(ts time.Time) {
	m.sink.Push(event.TrackpadTouchEvent{Timestamp: ts, Touches: m.LiveTouches()})
}

// updateTap arms the two-finger tap when exactly two contacts began close
// together, and cancels it when the pair changes or drifts.
func (m *Monitor) updateTap(anyBegan bool) {
	if m.tap != nil {
		if !m.tapIntact() {
			m.cancelTap()
		}
		return
	}
	if !anyBegan || len(m.live) != 2 {
		return
	}
	var pair []*contact
	var ids []int
	for id, c := range m.live {
		pair = append(pair, c)
		ids = append(ids, id)
	}
	gap := pair[0].began.Sub(pair[1].began)
	if gap < 0 {
		gap = -gap
	}
	if gap > m.opts.TapSimultaneity {
		return
	}
	t := &tapState{ids: [2]int{ids[0], ids[1]}}
	t.timer = m.sched.Schedule(m.opts.TapArmDelay, func() { m.fireTap(t) })
	m.tap = t
}

func (m *Monitor) tapIntact() bool {
	if len(m.live) != 2 {
		return false
	}
	for _, id := range m.tap.ids {
		c, ok := m.live[id]
		if !ok || c.touch.Position.Distance(c.start) > m.opts.TapEpsilon {
			return false
		}
	}
	return true
}

func (m *Monitor) cancelTap() {
	if m.tap != nil {
		m.sched.Cancel(m.tap.timer)
		m.tap = nil
	}
}

func (m *Monitor) fireTap(t *tapState) {
	if m.tap != t {
		return
	}
	intact := m.tapIntact()
	m.tap = nil
	if !intact {
		return
	}
	m.emit(m.sched.Now(), event.Tap(2), 0, nil, false, m.LiveTouches())
}

func (m *Monitor) applyScroll(ev capture.ScrollEvent) {
	if ev.DeltaX == 0 && ev.DeltaY == 0 {
		return
	}
	momentum := ev.Phase.IsMomentum()
	if momentum && m.opts.HideMomentum {
		m.metrics.Suppress("momentum")
		return
	}
	touches := m.LiveTouches()
	fingers := len(touches)
	if fingers == 0 {
		fingers = 2
		touches = placeholderTouches(fingers, ev.Timestamp)
	}
	m.emit(ev.Timestamp, event.Scroll(fingers, ev.DeltaX, ev.DeltaY),
		math.Hypot(ev.DeltaX, ev.DeltaY), nil, momentum, touches)
}

// placeholderTouches stands in for fingers that are no longer on the
// surface. They sit side by side around the centre of the pad.
func placeholderTouches(n int, ts time.Time) []event.FingerTouch {
	out := make([]event.FingerTouch, n)
	spacing := 0.1
	left := 0.5 - spacing*float64(n-1)/2
	for i := range out {
		out[i] = event.FingerTouch{
			ID:         SyntheticTouchBaseID + i,
			Position:   event.Point{X: left + spacing*float64(i), Y: 0.5},
			FingerType: event.FingerSynthetic,
			Timestamp:  ts,
		}
	}
	return out
}

func (m *Monitor) applyPlatformGesture(g capture.PlatformGesture) {
	touches := m.LiveTouches()
	switch g.Kind {
	case capture.GestureMagnify:
		m.emit(g.Timestamp, event.Pinch(), g.Magnification, nil, false, touches)
	case capture.GestureRotate:
		rot := g.Rotation
		m.emit(g.Timestamp, event.Rotate(), math.Abs(rot), &rot, false, touches)
	case capture.GestureSwipe:
		if g.DeltaX == 0 && g.DeltaY == 0 {
			m.metrics.MalformedTouch()
			m.logger.Debug("skipping swipe without direction", "error", event.ErrMalformedFrame)
			return
		}
		dir := event.DirectionOf(g.DeltaX, g.DeltaY)
		gt := event.Swipe(dir)
		if g.FingerCount >= 3 {
			gt = event.MultiFingerSwipe(dir, g.FingerCount)
		}
		m.emit(g.Timestamp, gt, math.Hypot(g.DeltaX, g.DeltaY), nil, false, touches)
	}
}

func (m *Monitor) emit(ts time.Time, gt event.GestureType, magnitude float64, rotation *float64, momentum bool, touches []event.FingerTouch) {
	g := event.TrackpadGesture{
		ID:               event.NewID(),
		Timestamp:        ts,
		Type:             gt,
		Touches:          touches,
		Magnitude:        magnitude,
		Rotation:         rotation,
		IsMomentumScroll: momentum,
	}
	m.metrics.Gesture(gt.Kind.String())
	m.metrics.Emit("trackpad")
	if d := m.opts.Delegate; d != nil {
		d.OnGesture(g)
	}
	m.sink.Push(event.TrackpadGestureEvent{Gesture: g})
}

func (m *Monitor) startSweep() {
	if m.sweep != 0 {
		return
	}
	m.sweep = m.sched.Schedule(m.opts.CleanupInterval, m.runSweep)
}

// runSweep removes contacts whose last update is older than StaleTimeout,
// covering Ended notifications the platform never delivered.
func (m *Monitor) runSweep() {
	m.sweep = 0
	now := m.sched.Now()
	var ended []event.FingerTouch
	for id, c := range m.live {
		if now.Sub(c.touch.Timestamp) > m.opts.StaleTimeout {
			delete(m.live, id)
			ended = append(ended, c.touch)
		}
	}
	if len(ended) > 0 {
		m.logger.Debug("removed stale touches", "count", len(ended))
		slices.SortFunc(ended, func(a, b event.FingerTouch) int { return a.ID - b.ID })
		if d := m.opts.Delegate; d != nil {
			d.OnTouchesEnded(ended)
		}
		m.metrics.SetLiveTouches(len(m.live))
		m.updateTap(false)
		m.classifier.Reset()
		m.publishTouches(now)
	}
	m.startSweep()
}

func (m *Monitor) reset() {
	m.cancelTap()
	if m.sweep != 0 {
		m.sched.Cancel(m.sweep)
		m.sweep = 0
	}
	clear(m.live)
	m.classifier.Reset()
	m.metrics.SetLiveTouches(0)
}
