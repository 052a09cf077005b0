package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize bounds the number of pending closures.
const DefaultQueueSize = 1024

// ErrStopped is returned by Run when the loop was already stopped.
var ErrStopped = errors.New("dispatch loop stopped")

// Loop is a single-goroutine serial executor with cancellable timers.
//
// Timer firings travel on their own channel, so a full closure queue
// delays a timer but never drops it.
type Loop struct {
	queue  chan func()
	fired  chan TimerHandle
	logger *slog.Logger

	mu      sync.Mutex
	timers  map[TimerHandle]*timer
	next    TimerHandle
	stopped bool

	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	dropped   atomic.Uint64
	panics    atomic.Uint64
	onLatency func(time.Duration)
}

type timer struct {
	t  *time.Timer
	fn func()
}

// NewLoop creates a loop with the given queue size. A nil logger discards.
func NewLoop(size int, logger *slog.Logger) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		queue:  make(chan func(), size),
		fired:  make(chan TimerHandle, size),
		logger: logger,
		timers: make(map[TimerHandle]*timer),
		done:   make(chan struct{}),
	}
}

// OnLatency registers a hook receiving the queue wait of each closure.
// It must be called before Run.
func (l *Loop) OnLatency(fn func(time.Duration)) {
	l.onLatency = fn
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Run drains the queue until ctx is cancelled or Stop is called.
// Cancelling ctx only pauses the loop: queued closures and pending timers
// are kept and a later Run picks them up. Stop ends the loop for good.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("dispatch loop already running")
	}
	defer l.running.Store(false)

	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			l.exec(fn)
		case h := <-l.fired:
			if fn := l.take(h); fn != nil {
				l.exec(fn)
			}
		}
	}
}

// Start runs the loop on a new goroutine. The returned channel is closed
// when Run returns.
func (l *Loop) Start(ctx context.Context) <-chan struct{} {
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Warn("dispatch loop exited", "error", err)
		}
	}()
	return exited
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.Error("apply callback panicked", "panic", r)
		}
	}()
	fn()
}

// Post implements Scheduler.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped || fn == nil {
		return false
	}

	if l.onLatency != nil {
		queued := time.Now()
		inner := fn
		fn = func() {
			l.onLatency(time.Since(queued))
			inner()
		}
	}

	select {
	case l.queue <- fn:
		return true
	default:
		l.dropped.Add(1)
		return false
	}
}

// Schedule implements Scheduler. The handle is handed to Run when the timer
// fires and fn runs only if the handle has not been cancelled by then. A
// firing waits for room rather than being dropped.
func (l *Loop) Schedule(delay time.Duration, fn func()) TimerHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || fn == nil {
		return 0
	}

	l.next++
	h := l.next
	l.timers[h] = &timer{
		fn: fn,
		t: time.AfterFunc(delay, func() {
			select {
			case l.fired <- h:
			case <-l.done:
			}
		}),
	}
	return h
}

// take removes h from the pending set and returns its callback, or nil
// when it was cancelled.
func (l *Loop) take(h TimerHandle) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tm, ok := l.timers[h]
	if !ok {
		return nil
	}
	delete(l.timers, h)
	return tm.fn
}

// Cancel implements Scheduler.
func (l *Loop) Cancel(h TimerHandle) bool {
	if h == 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tm, ok := l.timers[h]
	if !ok {
		return false
	}
	tm.t.Stop()
	delete(l.timers, h)
	return true
}

// Pending returns the number of scheduled timers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Dropped returns how many closures were discarded because the queue was full.
func (l *Loop) Dropped() uint64 {
	return l.dropped.Load()
}

// Panics returns how many closures panicked.
func (l *Loop) Panics() uint64 {
	return l.panics.Load()
}

// Stop cancels every timer and terminates Run. Safe to call repeatedly.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		for h, tm := range l.timers {
			tm.t.Stop()
			delete(l.timers, h)
		}
		l.mu.Unlock()
		close(l.done)
	})
}

// Sync posts a closure and waits for it to run, which guarantees that every
// closure posted before it has completed.
func (l *Loop) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !l.Post(func() { close(done) }) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Scheduler = (*Loop)(nil)
