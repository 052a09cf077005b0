package event

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// FingerType is the platform's guess at which finger produced a contact.
type FingerType uint8

const (
	FingerUnknown FingerType = iota
	FingerThumb
	FingerIndex
	FingerMiddle
	FingerRing
	FingerLittle
	FingerPalm
	// FingerSynthetic marks placeholder touches created for momentum scrolls.
	FingerSynthetic
)

func (f FingerType) String() string {
	switch f {
	case FingerThumb:
		return "thumb"
	case FingerIndex:
		return "index"
	case FingerMiddle:
		return "middle"
	case FingerRing:
		return "ring"
	case FingerLittle:
		return "little"
	case FingerPalm:
		return "palm"
	case FingerSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// FingerTouch is one live contact on the trackpad. ID is stable from Began
// until Ended or Cancelled.
type FingerTouch struct {
	ID          int        `json:"id"`
	Position    Point      `json:"position"`
	Pressure    float64    `json:"pressure"`
	MajorRadius float64    `json:"major_radius"`
	MinorRadius float64    `json:"minor_radius"`
	FingerType  FingerType `json:"-"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Direction is a swipe direction.
type Direction uint8

const (
	DirectionUp Direction = iota
	DirectionDown
	DirectionLeft
	DirectionRight
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return "unknown"
	}
}

// Arrow returns the arrow glyph for the direction.
func (d Direction) Arrow() string {
	switch d {
	case DirectionUp:
		return "↑"
	case DirectionDown:
		return "↓"
	case DirectionLeft:
		return "←"
	case DirectionRight:
		return "→"
	default:
		return "?"
	}
}

// DirectionOf picks the dominant axis of a delta. Normalized positions put
// the origin at the top-left, so a negative dy is Up.
func DirectionOf(dx, dy float64) Direction {
	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			return DirectionRight
		}
		return DirectionLeft
	}
	if dy < 0 {
		return DirectionUp
	}
	return DirectionDown
}

// GestureKind is the gesture category. At most one gesture per kind is
// buffered at a time.
type GestureKind uint8

const (
	GestureSwipe GestureKind = iota
	GestureMultiFingerSwipe
	GesturePinch
	GestureRotate
	GestureTap
	GestureScroll
)

func (k GestureKind) String() string {
	switch k {
	case GestureSwipe:
		return "swipe"
	case GestureMultiFingerSwipe:
		return "multi_finger_swipe"
	case GesturePinch:
		return "pinch"
	case GestureRotate:
		return "rotate"
	case GestureTap:
		return "tap"
	case GestureScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// GestureType carries the kind plus the parameters relevant to it.
type GestureType struct {
	Kind        GestureKind
	Direction   Direction // Swipe, MultiFingerSwipe
	FingerCount int       // MultiFingerSwipe, Scroll
	TapCount    int       // Tap
	DeltaX      float64   // Scroll
	DeltaY      float64   // Scroll
}

// Swipe builds a two-finger swipe type.
func Swipe(d Direction) GestureType {
	return GestureType{Kind: GestureSwipe, Direction: d, FingerCount: 2}
}

// MultiFingerSwipe builds a swipe with three or more fingers.
func MultiFingerSwipe(d Direction, fingers int) GestureType {
	return GestureType{Kind: GestureMultiFingerSwipe, Direction: d, FingerCount: fingers}
}

// Pinch builds a pinch type.
func Pinch() GestureType { return GestureType{Kind: GesturePinch, FingerCount: 2} }

// Rotate builds a rotate type.
func Rotate() GestureType { return GestureType{Kind: GestureRotate, FingerCount: 2} }

// Tap builds a tap type with the given finger count.
func Tap(count int) GestureType {
	return GestureType{Kind: GestureTap, TapCount: count, FingerCount: count}
}

// Scroll builds a scroll type.
func Scroll(fingers int, dx, dy float64) GestureType {
	return GestureType{Kind: GestureScroll, FingerCount: fingers, DeltaX: dx, DeltaY: dy}
}

func (g GestureType) String() string {
	switch g.Kind {
	case GestureSwipe:
		return fmt.Sprintf("swipe(%s)", g.Direction)
	case GestureMultiFingerSwipe:
		return fmt.Sprintf("multi_finger_swipe(%s, %d)", g.Direction, g.FingerCount)
	case GestureTap:
		return fmt.Sprintf("tap(%d)", g.TapCount)
	case GestureScroll:
		return fmt.Sprintf("scroll(%d, %g, %g)", g.FingerCount, g.DeltaX, g.DeltaY)
	default:
		return g.Kind.String()
	}
}

// TrackpadGesture is a classified gesture.
type TrackpadGesture struct {
	ID        uuid.UUID
	Timestamp time.Time
	Type      GestureType
	Touches   []FingerTouch
	// Magnitude is the pinch distance delta (negative = in), the swipe or
	// scroll displacement, or zero for taps.
	Magnitude float64
	// Rotation is the signed rotation in radians, set for rotate gestures.
	Rotation         *float64
	IsMomentumScroll bool
}

// TrackpadTouchEvent is the current set of live touches.
type TrackpadTouchEvent struct {
	Timestamp time.Time
	Touches   []FingerTouch
}

// InputType implements Event.
func (e TrackpadTouchEvent) InputType() InputType { return TypeTrackpad }

// Time implements Event.
func (e TrackpadTouchEvent) Time() time.Time { return e.Timestamp }

// TrackpadGestureEvent wraps a classified gesture.
type TrackpadGestureEvent struct {
	Gesture TrackpadGesture
}

// InputType implements Event.
func (e TrackpadGestureEvent) InputType() InputType { return TypeTrackpad }

// Time implements Event.
func (e TrackpadGestureEvent) Time() time.Time { return e.Gesture.Timestamp }

// CloneTouches copies a touch slice so callers can keep it after the monitor
// mutates its live map.
func CloneTouches(in []FingerTouch) []FingerTouch {
	if len(in) == 0 {
		return nil
	}
	out := make([]FingerTouch, len(in))
	copy(out, in)
	return out
}
