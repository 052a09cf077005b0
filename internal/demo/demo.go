// Package demo drives a synthetic provider through a fixed sequence that
// exercises every display path: keys, a double click, wheel and momentum
// scrolls, a pinch, a three-finger swipe and a two-finger tap.
package demo

import (
	"context"
	"time"

	"inputviz/internal/capture"
	"inputviz/internal/event"
)

// Step is one scripted injection at an offset from the start.
type Step struct {
	At   time.Duration
	Name string
	Do   func(p *capture.Synthetic, ts time.Time)
}

// Clock paces the script. WaitUntil blocks until offset has elapsed since
// the start and returns the timestamp to inject with.
type Clock interface {
	WaitUntil(ctx context.Context, offset time.Duration) (time.Time, error)
}

// WallClock paces the script in real time.
type WallClock struct {
	start time.Time
}

// NewWallClock starts a wall clock now.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// WaitUntil sleeps until start+offset.
func (c *WallClock) WaitUntil(ctx context.Context, offset time.Duration) (time.Time, error) {
	d := time.Until(c.start.Add(offset))
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		case <-t.C:
		}
	}
	return time.Now(), nil
}

const (
	keyH = 4
	keyI = 34
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func touch(id int, phase capture.TouchPhase, x, y float64) capture.RawTouch {
	return capture.RawTouch{ID: id, Phase: phase, X: x, Y: y, Pressure: 0.5, MajorRadius: 8, MinorRadius: 7}
}

func frame(touches ...capture.RawTouch) func(*capture.Synthetic, time.Time) {
	return func(p *capture.Synthetic, ts time.Time) {
		p.Touches(capture.TouchFrame{Timestamp: ts, Touches: touches})
	}
}

func fingers(phase capture.TouchPhase, y float64, xs ...float64) []capture.RawTouch {
	out := make([]capture.RawTouch, len(xs))
	for i, x := range xs {
		out[i] = touch(i+1, phase, x, y)
	}
	return out
}

// Script returns the demo sequence in offset order.
func Script() []Step {
	shift := event.ModifierSet(0).With(event.ModShift)
	center := event.Point{X: 400, Y: 300}

	steps := []Step{
		{ms(0), "shift+h down", func(p *capture.Synthetic, ts time.Time) { p.KeyDown(ts, keyH, shift) }},
		{ms(90), "h up", func(p *capture.Synthetic, ts time.Time) { p.KeyUp(ts, keyH, shift) }},
		{ms(150), "i down", func(p *capture.Synthetic, ts time.Time) { p.KeyDown(ts, keyI, 0) }},
		{ms(240), "i up", func(p *capture.Synthetic, ts time.Time) { p.KeyUp(ts, keyI, 0) }},

		{ms(500), "click", func(p *capture.Synthetic, ts time.Time) { p.Click(ts, 0, center) }},
		{ms(550), "release", func(p *capture.Synthetic, ts time.Time) { p.Release(ts, 0, center) }},
		{ms(680), "double click", func(p *capture.Synthetic, ts time.Time) { p.Click(ts, 0, center) }},
		{ms(730), "release", func(p *capture.Synthetic, ts time.Time) { p.Release(ts, 0, center) }},

		{ms(1000), "wheel scroll", func(p *capture.Synthetic, ts time.Time) {
			p.Scroll(capture.ScrollEvent{Timestamp: ts, DeltaY: -3})
		}},
		{ms(1200), "momentum scroll", func(p *capture.Synthetic, ts time.Time) {
			p.Scroll(capture.ScrollEvent{Timestamp: ts, DeltaY: 6, Phase: capture.ScrollPhaseMomentum, Continuous: true})
		}},

		{ms(1600), "pinch begin", frame(fingers(capture.TouchBegan, 0.5, 0.4, 0.6)...)},
		{ms(1620), "pinch out", frame(fingers(capture.TouchMoved, 0.5, 0.35, 0.65)...)},
		{ms(1640), "pinch out", frame(fingers(capture.TouchMoved, 0.5, 0.30, 0.70)...)},
		{ms(1700), "pinch end", frame(fingers(capture.TouchEnded, 0.5, 0.30, 0.70)...)},

		{ms(2200), "swipe begin", frame(fingers(capture.TouchBegan, 0.5, 0.3, 0.5, 0.7)...)},
		{ms(2250), "swipe up", frame(fingers(capture.TouchMoved, 0.45, 0.3, 0.5, 0.7)...)},
		{ms(2300), "swipe up", frame(fingers(capture.TouchMoved, 0.4, 0.3, 0.5, 0.7)...)},
		{ms(2350), "swipe end", frame(fingers(capture.TouchEnded, 0.4, 0.3, 0.5, 0.7)...)},

		{ms(2800), "tap begin", frame(fingers(capture.TouchBegan, 0.5, 0.4, 0.6)...)},
		{ms(3050), "tap end", frame(fingers(capture.TouchEnded, 0.5, 0.4, 0.6)...)},
	}
	return steps
}

// Play injects steps into p, paced by clock. onStep, when set, runs after
// each injection.
func Play(ctx context.Context, p *capture.Synthetic, clock Clock, steps []Step, onStep func(Step)) error {
	for _, s := range steps {
		ts, err := clock.WaitUntil(ctx, s.At)
		if err != nil {
			return err
		}
		s.Do(p, ts)
		if onStep != nil {
			onStep(s)
		}
	}
	return nil
}
