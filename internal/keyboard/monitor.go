// Package keyboard turns raw key notifications into display-ready key
// presses.
//
// The monitor drops autorepeat presses of ordinary keys, collapses
// duplicate notifications that some platforms deliver twice, and converts
// modifier flag transitions into explicit presses and releases. Releases
// are forwarded so the aggregator can remove the matching press.
package keyboard

import (
	"log/slog"
	"time"

	"inputviz/internal/capture"
	"inputviz/internal/dispatch"
	"inputviz/internal/event"
	"inputviz/internal/logging"
	"inputviz/internal/metrics"
	"inputviz/internal/monitor"
)

// Options tunes duplicate suppression.
type Options struct {
	// DuplicateWindow is how close a notification must follow the last
	// processed one with the same code and state to be dropped.
	DuplicateWindow time.Duration
	// RecentWindow is the looser window applied against the recent ring.
	RecentWindow time.Duration
	// RecentSize bounds the recent ring.
	RecentSize int
	// ExemptModifiers keeps modifier keys out of duplicate suppression.
	ExemptModifiers bool
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		DuplicateWindow: 50 * time.Millisecond,
		RecentWindow:    100 * time.Millisecond,
		RecentSize:      10,
		ExemptModifiers: true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DuplicateWindow <= 0 {
		o.DuplicateWindow = d.DuplicateWindow
	}
	if o.RecentWindow <= 0 {
		o.RecentWindow = d.RecentWindow
	}
	if o.RecentSize <= 0 {
		o.RecentSize = d.RecentSize
	}
	return o
}

type record struct {
	code int
	down bool
	at   time.Time
}

// Monitor is the keyboard monitor. State below the lifecycle is only
// touched on the apply context.
type Monitor struct {
	lc      *monitor.Lifecycle
	sink    event.Sink
	opts    Options
	metrics *metrics.PipelineMetrics

	last    record
	hasLast bool
	recent  []record
	next    int
	held    map[int]bool
}

// New creates a stopped keyboard monitor delivering to sink.
func New(p capture.Provider, s dispatch.Scheduler, sink event.Sink, opts Options, logger *slog.Logger, m *metrics.PipelineMetrics) *Monitor {
	return &Monitor{
		lc:      monitor.NewLifecycle("keyboard", p, s, logger, m),
		sink:    sink,
		opts:    opts.withDefaults(),
		metrics: m,
		held:    make(map[int]bool),
	}
}

// Start registers the key tap. See monitor.Lifecycle.Start.
func (m *Monitor) Start() error {
	return m.lc.Start(func(p capture.Provider) (capture.Handle, error) {
		return p.RegisterKeyTap(capture.MaskKeys, m.handleRaw)
	})
}

// Stop removes the key tap and forgets suppression state. Idempotent.
func (m *Monitor) Stop() {
	m.lc.Stop(m.reset)
}

// IsMonitoring reports whether the key tap is installed.
func (m *Monitor) IsMonitoring() bool { return m.lc.IsMonitoring() }

// Err returns the last start failure.
func (m *Monitor) Err() error { return m.lc.Err() }

// SetOptions replaces the tuning. It must run on the apply context.
func (m *Monitor) SetOptions(opts Options) {
	m.opts = opts.withDefaults()
	m.recent = nil
	m.next = 0
}

// handleRaw runs on the provider's thread.
func (m *Monitor) handleRaw(ev capture.KeyTapEvent) {
	defer logging.RecoverCallback(m.lc.Logger(), "keyboard tap", m.lc.OnPanic)
	m.metrics.Raw("keyboard")
	m.lc.Post(func() { m.apply(ev) })
}

func (m *Monitor) apply(ev capture.KeyTapEvent) {
	switch ev.Action {
	case capture.KeyDown:
		m.process(ev.Timestamp, ev.KeyCode, true, ev.IsRepeat, ev.Flags)
	case capture.KeyUp:
		m.process(ev.Timestamp, ev.KeyCode, false, false, ev.Flags)
	case capture.FlagsChanged:
		if down, ok := m.flagTransition(ev); ok {
			m.process(ev.Timestamp, ev.KeyCode, down, false, ev.Flags)
		}
	}
}

// flagTransition derives a press or release from a modifier flag change.
// Caps lock toggles, so its flag being set means the key went down.
func (m *Monitor) flagTransition(ev capture.KeyTapEvent) (down, ok bool) {
	mod, isMod := capture.ModifierForKey(ev.KeyCode)
	if !isMod {
		return false, false
	}
	held := m.held[ev.KeyCode]
	switch {
	case !ev.Flags.Has(mod):
		down = false
	case mod == event.ModCapsLock:
		down = true
	default:
		down = !held
	}
	return down, down != held
}

func (m *Monitor) process(ts time.Time, code int, down, repeat bool, mods event.ModifierSet) {
	isMod := IsModifierKey(code)
	if isMod {
		m.held[code] = down
	}

	if down && repeat && !isMod {
		m.metrics.Suppress("repeat")
		return
	}
	if !(isMod && m.opts.ExemptModifiers) && m.isDuplicate(code, down, ts) {
		m.metrics.Suppress("duplicate")
		return
	}
	m.remember(code, down, ts)

	m.metrics.Emit("keyboard")
	m.sink.Push(event.KeyboardEvent{
		ID:        event.NewID(),
		Timestamp: ts,
		KeyCode:   code,
		Glyph:     Glyph(code),
		IsDown:    down,
		IsRepeat:  repeat,
		Modifiers: mods,
	})
}

func within(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	return d >= 0 && d < window
}

func (m *Monitor) isDuplicate(code int, down bool, ts time.Time) bool {
	if m.hasLast && m.last.code == code && m.last.down == down && within(ts, m.last.at, m.opts.DuplicateWindow) {
		return true
	}
	for _, r := range m.recent {
		if r.code == code && r.down == down && within(ts, r.at, m.opts.RecentWindow) {
			return true
		}
	}
	return false
}

func (m *Monitor) remember(code int, down bool, ts time.Time) {
	r := record{code: code, down: down, at: ts}
	m.last, m.hasLast = r, true
	if len(m.recent) < m.opts.RecentSize {
		m.recent = append(m.recent, r)
		return
	}
	m.recent[m.next] = r
	m.next = (m.next + 1) % len(m.recent)
}

func (m *Monitor) reset() {
	m.hasLast = false
	m.recent = nil
	m.next = 0
	clear(m.held)
}
