// Package aggregator merges the keyboard, mouse and trackpad streams into
// per-type buffers, each with its own auto-hide timer.
//
// State machine per input type:
//
//	Idle --push--> Active --push (timer reset)--> Active --timer--> Idle
//
// Every method except Snapshot, ActiveTypes, Visible and Subscribe must run
// on the apply context. Readers on other goroutines see immutable
// snapshots published after each change.
package aggregator

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"inputviz/internal/dispatch"
	"inputviz/internal/event"
	"inputviz/internal/keyboard"
	"inputviz/internal/metrics"
	"inputviz/internal/mouse"
	"inputviz/internal/trackpad"
)

// DefaultAutoHideDelay is how long a type stays visible after its last push.
const DefaultAutoHideDelay = 1500 * time.Millisecond

// Buffer is a per-type buffer discipline.
type Buffer interface {
	// Apply inserts or removes according to the discipline and reports
	// whether the event is now displayed.
	Apply(e event.Event) bool
	Events() []event.Event
	Len() int
	Clear()
}

// Options configures an Aggregator.
type Options struct {
	AutoHideDelay  time.Duration
	MaxKeys        int
	MinimalDisplay bool
	// Disabled lists types whose pushes are dropped.
	Disabled event.TypeSet
}

type hideTimer struct {
	handle dispatch.TimerHandle
	token  uint64
}

// Aggregator owns the per-type buffers and the set of active types.
type Aggregator struct {
	sched   dispatch.Scheduler
	logger  *slog.Logger
	metrics *metrics.PipelineMetrics

	keys    *keyboard.Buffer
	buffers [3]Buffer
	timers  [3]hideTimer

	active     event.TypeSet
	disabled   event.TypeSet
	delay      time.Duration
	minimal    bool
	monitoring bool
	seq        uint64

	latest atomic.Pointer[Snapshot]

	subMu sync.Mutex
	subs  map[chan *Snapshot]struct{}
}

// New creates an aggregator scheduling its timers on s.
func New(s dispatch.Scheduler, opts Options, logger *slog.Logger, m *metrics.PipelineMetrics) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.AutoHideDelay <= 0 {
		opts.AutoHideDelay = DefaultAutoHideDelay
	}
	keys := keyboard.NewBuffer(opts.MaxKeys)
	a := &Aggregator{
		sched:    s,
		logger:   logger,
		metrics:  m,
		keys:     keys,
		disabled: opts.Disabled,
		delay:    opts.AutoHideDelay,
		minimal:  opts.MinimalDisplay,
		subs:     make(map[chan *Snapshot]struct{}),
	}
	a.buffers[event.TypeKeyboard] = keys
	a.buffers[event.TypeMouse] = mouse.NewBuffer()
	a.buffers[event.TypeTrackpad] = trackpad.NewBuffer()
	a.publish()
	return a
}

func (a *Aggregator) buffer(t event.InputType) Buffer {
	if int(t) >= len(a.buffers) {
		return nil
	}
	return a.buffers[t]
}

// Push routes e to its type's buffer. A push that displays something
// activates the type and restarts its auto-hide timer; removal-only pushes
// such as key releases change the buffer without touching the timer.
func (a *Aggregator) Push(e event.Event) {
	t := e.InputType()
	buf := a.buffer(t)
	if buf == nil {
		a.logger.Warn("dropping event of unknown type", "type", fmt.Sprintf("%T", e))
		return
	}
	if a.disabled.Has(t) {
		a.metrics.Suppress("disabled")
		return
	}
	if buf.Apply(e) {
		a.active = a.active.With(t)
		a.arm(t)
	}
	a.publish()
}

func (a *Aggregator) arm(t event.InputType) {
	ht := &a.timers[t]
	if ht.handle != 0 {
		a.sched.Cancel(ht.handle)
	}
	ht.token++
	token := ht.token
	ht.handle = a.sched.Schedule(a.delay, func() { a.expire(t, token) })
}

func (a *Aggregator) expire(t event.InputType, token uint64) {
	ht := &a.timers[t]
	if ht.token != token {
		a.metrics.TimerRace()
		a.logger.Debug("ignoring stale auto-hide timer", "type", t.String(), "error", event.ErrTimerRace)
		return
	}
	ht.handle = 0
	a.buffers[t].Clear()
	a.active = a.active.Without(t)
	a.publish()
}

func (a *Aggregator) disarm(t event.InputType) {
	ht := &a.timers[t]
	if ht.handle != 0 {
		a.sched.Cancel(ht.handle)
		ht.handle = 0
	}
	ht.token++
}

func (a *Aggregator) clearType(t event.InputType) {
	a.disarm(t)
	a.buffers[t].Clear()
	a.active = a.active.Without(t)
}

// ClearAll empties every buffer, cancels every timer and deactivates all
// types.
func (a *Aggregator) ClearAll() {
	for _, t := range event.AllTypes {
		a.clearType(t)
	}
	a.publish()
}

// SetTypeEnabled shows or hides one input type. Disabling clears it.
func (a *Aggregator) SetTypeEnabled(t event.InputType, on bool) {
	if a.buffer(t) == nil {
		return
	}
	if on {
		a.disabled = a.disabled.Without(t)
	} else {
		a.disabled = a.disabled.With(t)
		a.clearType(t)
	}
	a.publish()
}

func (a *Aggregator) enabled() event.TypeSet {
	var s event.TypeSet
	for _, t := range event.AllTypes {
		if !a.disabled.Has(t) {
			s = s.With(t)
		}
	}
	return s
}

// TypeEnabled reports whether pushes of t are accepted.
func (a *Aggregator) TypeEnabled(t event.InputType) bool {
	return !a.disabled.Has(t)
}

// SetAutoHideDelay changes the delay used by subsequent pushes.
func (a *Aggregator) SetAutoHideDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultAutoHideDelay
	}
	a.delay = d
}

// AutoHideDelay returns the current delay.
func (a *Aggregator) AutoHideDelay() time.Duration {
	return a.delay
}

// SetMaxKeys bounds the keyboard buffer.
func (a *Aggregator) SetMaxKeys(n int) {
	a.keys.SetMax(n)
	a.publish()
}

// SetMinimalDisplay stores the minimal display flag for consumers.
func (a *Aggregator) SetMinimalDisplay(on bool) {
	a.minimal = on
	a.publish()
}

// SetMonitoring records whether capture is running, for consumers.
func (a *Aggregator) SetMonitoring(on bool) {
	if a.monitoring == on {
		return
	}
	a.monitoring = on
	a.publish()
}

// Snapshot returns the latest published state. Safe from any goroutine.
func (a *Aggregator) Snapshot() *Snapshot {
	return a.latest.Load()
}

// ActiveTypes returns the types currently displayed. Safe from any
// goroutine.
func (a *Aggregator) ActiveTypes() event.TypeSet {
	return a.latest.Load().ActiveTypes
}

// Visible reports whether any type is active. Safe from any goroutine.
func (a *Aggregator) Visible() bool {
	return a.latest.Load().Visible
}

// Subscribe returns a channel receiving a snapshot after every change, and
// a function that ends the subscription. Slow readers only see the most
// recent snapshot.
func (a *Aggregator) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)
	ch <- a.latest.Load()

	a.subMu.Lock()
	a.subs[ch] = struct{}{}
	a.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subs, ch)
			a.subMu.Unlock()
			close(ch)
		})
	}
}

func (a *Aggregator) publish() {
	a.seq++
	s := &Snapshot{
		Seq:            a.seq,
		Timestamp:      a.sched.Now(),
		Keyboard:       a.buffers[event.TypeKeyboard].Events(),
		Mouse:          a.buffers[event.TypeMouse].Events(),
		Trackpad:       a.buffers[event.TypeTrackpad].Events(),
		ActiveTypes:    a.active,
		Visible:        !a.active.Empty(),
		MinimalDisplay: a.minimal,
		Monitoring:     a.monitoring,
		Enabled:        a.enabled(),
	}
	a.latest.Store(s)
	a.metrics.SetActiveTypes(len(a.active.Types()))

	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
