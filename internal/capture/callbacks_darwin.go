//go:build darwin

package capture

/*
#include "capture_darwin.h"
*/
import "C"

import (
	"math"
	"sync"
	"time"
	"unsafe"

	"inputviz/internal/event"
)

// CGEventFlags bits.
const (
	cgFlagAlphaShift  = 0x00010000
	cgFlagShift       = 0x00020000
	cgFlagControl     = 0x00040000
	cgFlagAlternate   = 0x00080000
	cgFlagCommand     = 0x00100000
	cgFlagSecondaryFn = 0x00800000
)

func modifiersFromFlags(f uint64) event.ModifierSet {
	var s event.ModifierSet
	if f&cgFlagAlphaShift != 0 {
		s = s.With(event.ModCapsLock)
	}
	if f&cgFlagShift != 0 {
		s = s.With(event.ModShift)
	}
	if f&cgFlagControl != 0 {
		s = s.With(event.ModControl)
	}
	if f&cgFlagAlternate != 0 {
		s = s.With(event.ModOption)
	}
	if f&cgFlagCommand != 0 {
		s = s.With(event.ModCommand)
	}
	if f&cgFlagSecondaryFn != 0 {
		s = s.With(event.ModFunction)
	}
	return s
}

func scrollPhase(phase, momentum int) ScrollPhase {
	switch momentum {
	case 1, 2:
		return ScrollPhaseMomentum
	case 3:
		return ScrollPhaseMomentumEnded
	}
	switch phase {
	case 1:
		return ScrollPhaseBegan
	case 2:
		return ScrollPhaseChanged
	case 4, 8:
		return ScrollPhaseEnded
	}
	return ScrollPhaseNone
}

//export goTapDisabled
func goTapDisabled() {
	if p := activeProvider.Load(); p != nil {
		p.tapDisabled.Add(1)
	}
}

//export goTapEvent
func goTapEvent(rec *C.tapRecord) {
	p := activeProvider.Load()
	if p == nil {
		return
	}
	now := time.Now()
	flags := modifiersFromFlags(uint64(rec.flags))
	pos := event.Point{X: float64(rec.x), Y: float64(rec.y)}

	switch rec.kind {
	case C.recKeyDown:
		p.emitKey(KeyTapEvent{Timestamp: now, Action: KeyDown, KeyCode: int(rec.keycode), Flags: flags, IsRepeat: rec.autorepeat != 0})
	case C.recKeyUp:
		p.emitKey(KeyTapEvent{Timestamp: now, Action: KeyUp, KeyCode: int(rec.keycode), Flags: flags})
	case C.recFlags:
		p.emitKey(KeyTapEvent{Timestamp: now, Action: FlagsChanged, KeyCode: int(rec.keycode), Flags: flags})
	case C.recMouseDown, C.recMouseUp:
		action := MouseDown
		if rec.kind == C.recMouseUp {
			action = MouseUp
		}
		p.emitMouse(MouseTapEvent{Timestamp: now, Action: action, Position: pos, Button: int(rec.button)})
	case C.recMouseMove:
		p.emitMouse(MouseTapEvent{Timestamp: now, Action: MouseMoved, Position: pos})
	case C.recScroll:
		p.emitMouse(MouseTapEvent{
			Timestamp: now,
			Action:    MouseScroll,
			Position:  pos,
			Scroll: ScrollEvent{
				Timestamp:  now,
				DeltaX:     float64(rec.scrollX),
				DeltaY:     float64(rec.scrollY),
				Phase:      scrollPhase(int(rec.scrollPhase), int(rec.momentumPhase)),
				Continuous: rec.continuous != 0,
			},
		})
	case C.recMagnify:
		p.emitGesture(PlatformGesture{Timestamp: now, Kind: GestureMagnify, Magnification: float64(rec.magnification), FingerCount: 2})
	case C.recRotate:
		// NSEvent reports degrees, counterclockwise positive.
		p.emitGesture(PlatformGesture{Timestamp: now, Kind: GestureRotate, Rotation: float64(rec.rotation) * math.Pi / 180, FingerCount: 2})
	case C.recSwipe:
		// NSEvent swipe deltas are inverted relative to finger travel.
		p.emitGesture(PlatformGesture{Timestamp: now, Kind: GestureSwipe, DeltaX: -float64(rec.swipeX), DeltaY: -float64(rec.swipeY), FingerCount: 3})
	}
}

// MultitouchSupport contact states.
const (
	mtStateMakeTouch  = 3
	mtStateTouching   = 4
	mtStateBreakTouch = 5
	mtStateLinger     = 6
	mtStateOutOfRange = 7
)

// touchTracker remembers which identifiers were live in the previous frame
// so contacts that vanish without a break state are reported as cancelled.
type touchTracker struct {
	mu   sync.Mutex
	live map[int]RawTouch
}

func (t *touchTracker) reset() {
	t.mu.Lock()
	t.live = nil
	t.mu.Unlock()
}

func (t *touchTracker) frame(fingers []C.mtFinger) []RawTouch {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[int]RawTouch, len(fingers))
	var out []RawTouch
	for _, f := range fingers {
		id := int(f.identifier)
		rt := RawTouch{
			ID: id,
			X:  float64(f.normalized.pos.x),
			// MultitouchSupport puts the origin at the bottom-left.
			Y:           1 - float64(f.normalized.pos.y),
			Pressure:    float64(f.size),
			MajorRadius: float64(f.majorAxis) / 2,
			MinorRadius: float64(f.minorAxis) / 2,
		}
		switch int(f.state) {
		case mtStateMakeTouch:
			rt.Phase = TouchBegan
		case mtStateTouching:
			rt.Phase = TouchMoved
			if prev, ok := t.live[id]; ok && prev.X == rt.X && prev.Y == rt.Y {
				rt.Phase = TouchStationary
			}
		case mtStateBreakTouch, mtStateLinger, mtStateOutOfRange:
			if _, ok := t.live[id]; !ok {
				continue
			}
			rt.Phase = TouchEnded
		default:
			continue
		}
		if rt.Phase != TouchEnded {
			seen[id] = rt
		}
		out = append(out, rt)
	}

	for id, prev := range t.live {
		if _, ok := seen[id]; ok {
			continue
		}
		ended := false
		for _, rt := range out {
			if rt.ID == id {
				ended = true
				break
			}
		}
		if !ended {
			prev.Phase = TouchCancelled
			out = append(out, prev)
		}
	}
	t.live = seen
	return out
}

//export goTouchFrame
func goTouchFrame(fingers *C.mtFinger, count C.int, timestamp C.double) {
	p := activeProvider.Load()
	if p == nil {
		return
	}
	var list []C.mtFinger
	if count > 0 && fingers != nil {
		list = unsafe.Slice(fingers, int(count))
	}
	touches := p.contacts.frame(list)
	if len(touches) == 0 {
		return
	}
	p.emitTouches(TouchFrame{Timestamp: p.frames.at(float64(timestamp), time.Now()), Touches: touches})
}
