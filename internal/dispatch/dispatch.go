// Package dispatch provides the single apply context that owns all pipeline
// state. Capture callbacks post closures here instead of touching buffers
// directly, and every timer fires back on the same goroutine.
package dispatch

import (
	"time"
)

// TimerHandle identifies a scheduled callback. The zero handle is never
// issued and cancelling it is a no-op.
type TimerHandle uint64

// Scheduler is the apply context seen by monitors and the aggregator.
type Scheduler interface {
	// Now returns the current time of the scheduler's clock.
	Now() time.Time

	// Post enqueues fn to run on the apply context. It never blocks and
	// reports false when the closure was dropped.
	Post(fn func()) bool

	// Schedule runs fn on the apply context after delay unless the handle is
	// cancelled first.
	Schedule(delay time.Duration, fn func()) TimerHandle

	// Cancel prevents a scheduled callback from running. It reports whether
	// the timer was still pending.
	Cancel(h TimerHandle) bool
}
