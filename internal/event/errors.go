package event

import "errors"

var (
	// ErrMonitoringUnavailable is recorded when a monitor cannot register its
	// capture hook, usually because an OS permission has not been granted.
	ErrMonitoringUnavailable = errors.New("input monitoring unavailable")

	// ErrMalformedFrame marks a touch or gesture frame that lacks identity or
	// position data. The offending touch is skipped.
	ErrMalformedFrame = errors.New("malformed touch frame")

	// ErrTimerRace marks a timer that fired for state already removed by a
	// later event. It is counted and otherwise ignored.
	ErrTimerRace = errors.New("timer fired for removed state")
)
