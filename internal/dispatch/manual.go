package dispatch

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by a virtual clock. Posted
// closures run synchronously on the caller's goroutine; timers run when
// Advance moves the clock past their deadline.
type Manual struct {
	mu       sync.Mutex
	now      time.Time
	next     TimerHandle
	seq      uint64
	timers   map[TimerHandle]*manualTimer
	queue    []func()
	draining bool
	panics   uint64
}

type manualTimer struct {
	handle TimerHandle
	due    time.Time
	seq    uint64
	fn     func()
}

// NewManual creates a manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:    start,
		timers: make(map[TimerHandle]*manualTimer),
	}
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Post implements Scheduler. Closures posted while another closure runs are
// queued and executed after it, preserving order.
func (m *Manual) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	if m.draining {
		m.mu.Unlock()
		return true
	}
	m.draining = true
	m.mu.Unlock()

	m.drain()
	return true
}

func (m *Manual) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		m.exec(fn)
	}
}

// exec mirrors Loop: a panicking closure is counted and the queue keeps
// draining.
func (m *Manual) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.mu.Lock()
			m.panics++
			m.mu.Unlock()
		}
	}()
	fn()
}

// Panics returns how many closures panicked.
func (m *Manual) Panics() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panics
}

// Schedule implements Scheduler.
func (m *Manual) Schedule(delay time.Duration, fn func()) TimerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.seq++
	h := m.next
	m.timers[h] = &manualTimer{handle: h, due: m.now.Add(delay), seq: m.seq, fn: fn}
	return h
}

// Cancel implements Scheduler.
func (m *Manual) Cancel(h TimerHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timers[h]; !ok {
		return false
	}
	delete(m.timers, h)
	return true
}

// Pending returns the number of scheduled timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d, firing due timers in deadline order.
func (m *Manual) Advance(d time.Duration) {
	m.AdvanceTo(m.Now().Add(d))
}

// AdvanceTo moves the clock to t, firing due timers in deadline order. Timers
// scheduled by a firing callback fire in the same call if they fall due.
func (m *Manual) AdvanceTo(t time.Time) {
	for {
		m.mu.Lock()
		timer := m.earliestLocked()
		if timer == nil || timer.due.After(t) {
			if t.After(m.now) {
				m.now = t
			}
			m.mu.Unlock()
			return
		}
		delete(m.timers, timer.handle)
		if timer.due.After(m.now) {
			m.now = timer.due
		}
		m.mu.Unlock()

		m.Post(timer.fn)
	}
}

func (m *Manual) earliestLocked() *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	all := make([]*manualTimer, 0, len(m.timers))
	for _, t := range m.timers {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].due.Equal(all[j].due) {
			return all[i].seq < all[j].seq
		}
		return all[i].due.Before(all[j].due)
	})
	return all[0]
}

var _ Scheduler = (*Manual)(nil)
