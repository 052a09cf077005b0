// Package event defines the normalized input events that flow from the device
// monitors to the aggregator and out to the display layer.
//
// Four concrete types implement Event:
//   - KeyboardEvent: a key press or release with its display glyph
//   - MouseEvent: a button, movement or scroll action
//   - TrackpadTouchEvent: the set of fingers currently on the trackpad
//   - TrackpadGestureEvent: a classified trackpad gesture
package event

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InputType identifies one of the independent input streams.
type InputType uint8

const (
	TypeKeyboard InputType = iota
	TypeMouse
	TypeTrackpad
)

// AllTypes lists every input type in display order.
var AllTypes = []InputType{TypeKeyboard, TypeMouse, TypeTrackpad}

// String returns the lowercase name of the input type.
func (t InputType) String() string {
	switch t {
	case TypeKeyboard:
		return "keyboard"
	case TypeMouse:
		return "mouse"
	case TypeTrackpad:
		return "trackpad"
	default:
		return "unknown"
	}
}

// ParseInputType parses a lowercase input type name.
func ParseInputType(s string) (InputType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keyboard", "key", "keys":
		return TypeKeyboard, nil
	case "mouse":
		return TypeMouse, nil
	case "trackpad", "touchpad":
		return TypeTrackpad, nil
	default:
		return 0, fmt.Errorf("unknown input type %q", s)
	}
}

// TypeSet is a set of input types.
type TypeSet uint8

// Has reports whether t is in the set.
func (s TypeSet) Has(t InputType) bool {
	return s&(1<<t) != 0
}

// With returns the set with t added.
func (s TypeSet) With(t InputType) TypeSet {
	return s | 1<<t
}

// Without returns the set with t removed.
func (s TypeSet) Without(t InputType) TypeSet {
	return s &^ (1 << t)
}

// Empty reports whether no type is present.
func (s TypeSet) Empty() bool {
	return s == 0
}

// Types returns the members in display order.
func (s TypeSet) Types() []InputType {
	var out []InputType
	for _, t := range AllTypes {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s TypeSet) String() string {
	types := s.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Event is implemented by every normalized input event.
type Event interface {
	// InputType reports which stream the event belongs to.
	InputType() InputType
	// Time is the capture timestamp.
	Time() time.Time
}

// NewID returns a fresh event identifier.
func NewID() uuid.UUID {
	return uuid.New()
}

// Point is a 2D position. Trackpad positions are normalized to [0,1] with the
// origin at the top-left; mouse positions are in global screen points.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Scale returns p scaled by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Len returns the Euclidean length of p treated as a vector.
func (p Point) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return p.Sub(q).Len()
}

// Sink receives normalized events from a monitor.
type Sink interface {
	Push(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Push implements Sink.
func (f SinkFunc) Push(e Event) { f(e) }
