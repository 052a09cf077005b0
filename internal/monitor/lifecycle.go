// Package monitor holds the start/stop bookkeeping shared by the keyboard,
// mouse and trackpad monitors.
//
// A Lifecycle owns one provider registration. Callbacks arriving from the
// provider are handed to Post, which forwards them to the apply context
// tagged with the registration generation; closures queued by a
// registration that has since been stopped are discarded when they run.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"inputviz/internal/capture"
	"inputviz/internal/dispatch"
	"inputviz/internal/event"
	"inputviz/internal/metrics"
)

// RegisterFunc installs the monitor's provider hook.
type RegisterFunc func(p capture.Provider) (capture.Handle, error)

// Lifecycle tracks whether a monitor is registered with its provider.
type Lifecycle struct {
	name     string
	provider capture.Provider
	sched    dispatch.Scheduler
	logger   *slog.Logger
	metrics  *metrics.PipelineMetrics

	mu      sync.Mutex
	handle  capture.Handle
	running bool
	err     error
	gen     atomic.Uint64
}

// NewLifecycle creates a stopped lifecycle. A nil logger discards.
func NewLifecycle(name string, p capture.Provider, s dispatch.Scheduler, logger *slog.Logger, m *metrics.PipelineMetrics) *Lifecycle {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Lifecycle{
		name:     name,
		provider: p,
		sched:    s,
		logger:   logger,
		metrics:  m,
	}
}

// Start registers the hook. It is a no-op when already running. A failed
// registration is recorded, wrapped in event.ErrMonitoringUnavailable and
// returned; the monitor stays stopped.
func (l *Lifecycle) Start(register RegisterFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	if l.provider == nil {
		l.err = fmt.Errorf("%s: %w: %w", l.name, event.ErrMonitoringUnavailable, capture.ErrNotAvailable)
		return l.err
	}

	l.gen.Add(1)
	h, err := register(l.provider)
	if err != nil {
		l.err = fmt.Errorf("%s: %w: %w", l.name, event.ErrMonitoringUnavailable, err)
		level := slog.LevelWarn
		if errors.Is(err, capture.ErrPermissionDenied) {
			level = slog.LevelInfo
		}
		l.logger.Log(context.Background(), level, "monitoring unavailable", "monitor", l.name, "error", err)
		return l.err
	}

	l.handle = h
	l.running = true
	l.err = nil
	l.logger.Debug("monitor started", "monitor", l.name)
	return nil
}

// Stop unregisters the hook and posts reset to the apply context. It is
// safe to call when already stopped; reset still runs so callers can rely
// on it to clear state.
func (l *Lifecycle) Stop(reset func()) {
	l.mu.Lock()
	wasRunning := l.running
	h := l.handle
	l.running = false
	l.handle = 0
	l.gen.Add(1)
	l.mu.Unlock()

	if wasRunning {
		if err := l.provider.Unregister(h); err != nil && !errors.Is(err, capture.ErrUnknownHandle) {
			l.logger.Warn("unregister failed", "monitor", l.name, "error", err)
		}
		l.logger.Debug("monitor stopped", "monitor", l.name)
	}
	if reset != nil {
		l.sched.Post(reset)
	}
}

// IsMonitoring reports whether the hook is registered.
func (l *Lifecycle) IsMonitoring() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Err returns the last registration failure, or nil.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Name returns the monitor name used in logs.
func (l *Lifecycle) Name() string {
	return l.name
}

// Logger returns the lifecycle's logger.
func (l *Lifecycle) Logger() *slog.Logger {
	return l.logger
}

// Post queues fn on the apply context. fn is skipped if the monitor was
// stopped or restarted before it runs.
func (l *Lifecycle) Post(fn func()) bool {
	gen := l.gen.Load()
	ok := l.sched.Post(func() {
		if l.gen.Load() != gen {
			return
		}
		fn()
	})
	if !ok {
		l.metrics.DroppedPost()
	}
	return ok
}

// OnPanic is passed to logging.RecoverCallback by provider callbacks.
func (l *Lifecycle) OnPanic(any) {
	l.metrics.Panic()
}
