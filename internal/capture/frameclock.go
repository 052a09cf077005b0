package capture

import (
	"sync"
	"time"
)

// maxFrameSkew is how far a converted frame time may stray from the wall
// clock before the anchor is taken again.
const maxFrameSkew = time.Second

// frameClock maps a device clock in seconds (time since boot for
// MultitouchSupport) onto wall time. The first frame anchors the two
// clocks; later frames keep their spacing relative to that anchor.
type frameClock struct {
	mu     sync.Mutex
	set    bool
	base   float64
	wall   time.Time
	latest float64
}

// at converts a device timestamp. now is the wall time of arrival. The
// anchor is reset when the device clock goes backwards, or when the result
// drifts past maxFrameSkew, as after sleep.
func (c *frameClock) at(seconds float64, now time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seconds <= 0 {
		return now
	}
	if c.set && seconds >= c.latest {
		ts := c.wall.Add(time.Duration((seconds - c.base) * float64(time.Second)))
		if d := now.Sub(ts); d >= -maxFrameSkew && d <= maxFrameSkew {
			c.latest = seconds
			return ts
		}
	}
	c.set, c.base, c.wall, c.latest = true, seconds, now, seconds
	return now
}

func (c *frameClock) reset() {
	c.mu.Lock()
	c.set = false
	c.mu.Unlock()
}
