// Package sessionwatch restarts input monitoring when the login session
// comes back from sleep or is unlocked. Event taps installed before either
// transition can be silently invalidated by the OS.
package sessionwatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// ErrUnsupported is returned by NewSource on platforms without a session bus
// integration.
var ErrUnsupported = errors.New("session watching not supported on this platform")

// DefaultCoalesce merges a resume and the unlock that usually follows it
// into one restart.
const DefaultCoalesce = 2 * time.Second

const (
	loginManagerInterface = "org.freedesktop.login1.Manager"
	loginSessionInterface = "org.freedesktop.login1.Session"

	prepareForSleepSignal = loginManagerInterface + ".PrepareForSleep"
	unlockSignal          = loginSessionInterface + ".Unlock"
	lockSignal            = loginSessionInterface + ".Lock"
)

// Kind identifies a session transition.
type Kind uint8

const (
	Suspend Kind = iota + 1
	Resume
	Lock
	Unlock
)

func (k Kind) String() string {
	switch k {
	case Suspend:
		return "suspend"
	case Resume:
		return "resume"
	case Lock:
		return "lock"
	case Unlock:
		return "unlock"
	default:
		return "unknown"
	}
}

// Event is one observed transition.
type Event struct {
	Kind Kind
	At   time.Time
}

// Decode maps a logind signal to a transition. Signals from other
// interfaces, and malformed bodies, report false.
func Decode(sig *dbus.Signal) (Kind, bool) {
	if sig == nil {
		return 0, false
	}
	switch sig.Name {
	case prepareForSleepSignal:
		if len(sig.Body) != 1 {
			return 0, false
		}
		sleeping, ok := sig.Body[0].(bool)
		if !ok {
			return 0, false
		}
		if sleeping {
			return Suspend, true
		}
		return Resume, true
	case unlockSignal:
		return Unlock, true
	case lockSignal:
		return Lock, true
	}
	return 0, false
}

// Source delivers session transitions until ctx is done or it is closed.
type Source interface {
	Events(ctx context.Context) (<-chan Event, error)
	Close() error
}

// Restarter is the part of the pipeline the watcher drives.
type Restarter interface {
	RestartMonitoring() error
}

// Options selects which transitions trigger a restart.
type Options struct {
	RestartOnResume bool
	RestartOnUnlock bool
	// Coalesce drops a restart that follows another within this window.
	Coalesce time.Duration
}

// Watcher turns session transitions into monitoring restarts.
type Watcher struct {
	source Source
	target Restarter
	logger *slog.Logger

	mu          sync.Mutex
	opts        Options
	lastRestart time.Time
	restarts    int
}

// New creates a watcher. A nil logger discards output.
func New(source Source, target Restarter, opts Options, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Coalesce <= 0 {
		opts.Coalesce = DefaultCoalesce
	}
	return &Watcher{source: source, target: target, opts: opts, logger: logger}
}

// SetOptions replaces the trigger selection, for config reloads.
func (w *Watcher) SetOptions(opts Options) {
	if opts.Coalesce <= 0 {
		opts.Coalesce = DefaultCoalesce
	}
	w.mu.Lock()
	w.opts = opts
	w.mu.Unlock()
}

// Restarts reports how many restarts the watcher has issued.
func (w *Watcher) Restarts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.restarts
}

// Run consumes the source until ctx is done or the source closes.
func (w *Watcher) Run(ctx context.Context) error {
	events, err := w.source.Events(ctx)
	if err != nil {
		return err
	}
	defer w.source.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.Handle(ev)
		}
	}
}

// Handle applies one transition. It reports whether a restart was issued.
func (w *Watcher) Handle(ev Event) bool {
	w.mu.Lock()
	opts := w.opts
	wanted := (ev.Kind == Resume && opts.RestartOnResume) || (ev.Kind == Unlock && opts.RestartOnUnlock)
	if !wanted {
		w.mu.Unlock()
		w.logger.Debug("session transition", "kind", ev.Kind)
		return false
	}
	if !w.lastRestart.IsZero() && ev.At.Sub(w.lastRestart) < opts.Coalesce {
		w.mu.Unlock()
		w.logger.Debug("restart coalesced", "kind", ev.Kind)
		return false
	}
	w.lastRestart = ev.At
	w.restarts++
	w.mu.Unlock()

	if err := w.target.RestartMonitoring(); err != nil {
		w.logger.Warn("restart after session transition failed", "kind", ev.Kind, "error", err)
		return true
	}
	w.logger.Info("monitoring restarted", "kind", ev.Kind)
	return true
}
