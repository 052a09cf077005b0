package event

import (
	"encoding/json"
	"time"
)

// Events are encoded as tagged objects so a consumer can decode the merged
// stream without knowing Go types. The layout is described by
// docs/schema/snapshot-v1.schema.json.

type keyboardJSON struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	KeyCode   int       `json:"key_code"`
	Glyph     *string   `json:"glyph"`
	IsDown    bool      `json:"is_down"`
	IsRepeat  bool      `json:"is_repeat"`
	Modifiers []string  `json:"modifiers"`
}

// MarshalJSON implements json.Marshaler.
func (e KeyboardEvent) MarshalJSON() ([]byte, error) {
	out := keyboardJSON{
		Type:      "keyboard",
		ID:        e.ID.String(),
		Timestamp: e.Timestamp,
		KeyCode:   e.KeyCode,
		IsDown:    e.IsDown,
		IsRepeat:  e.IsRepeat,
		Modifiers: e.Modifiers.Names(),
	}
	if out.Modifiers == nil {
		out.Modifiers = []string{}
	}
	if e.Glyph != "" {
		glyph := e.Glyph
		out.Glyph = &glyph
	}
	return json.Marshal(out)
}

type mouseJSON struct {
	Type             string    `json:"type"`
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Kind             string    `json:"kind"`
	Position         Point     `json:"position"`
	Button           *string   `json:"button"`
	ScrollDelta      *Point    `json:"scroll_delta"`
	IsDown           bool      `json:"is_down"`
	IsDoubleClick    bool      `json:"is_double_click"`
	IsMomentumScroll bool      `json:"is_momentum_scroll"`
}

// MarshalJSON implements json.Marshaler.
func (e MouseEvent) MarshalJSON() ([]byte, error) {
	out := mouseJSON{
		Type:             "mouse",
		ID:               e.ID.String(),
		Timestamp:        e.Timestamp,
		Kind:             e.Kind.String(),
		Position:         e.Position,
		ScrollDelta:      e.ScrollDelta,
		IsDown:           e.IsDown,
		IsDoubleClick:    e.IsDoubleClick,
		IsMomentumScroll: e.IsMomentumScroll,
	}
	if e.Button != nil {
		name := e.Button.String()
		out.Button = &name
	}
	return json.Marshal(out)
}

type touchesJSON struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Touches   []touchJSON `json:"touches"`
}

type touchJSON struct {
	ID          int       `json:"id"`
	Position    Point     `json:"position"`
	Pressure    float64   `json:"pressure"`
	MajorRadius float64   `json:"major_radius"`
	MinorRadius float64   `json:"minor_radius"`
	FingerType  string    `json:"finger_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func encodeTouches(in []FingerTouch) []touchJSON {
	out := make([]touchJSON, len(in))
	for i, t := range in {
		out[i] = touchJSON{
			ID:          t.ID,
			Position:    t.Position,
			Pressure:    t.Pressure,
			MajorRadius: t.MajorRadius,
			MinorRadius: t.MinorRadius,
			FingerType:  t.FingerType.String(),
			Timestamp:   t.Timestamp,
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (e TrackpadTouchEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(touchesJSON{
		Type:      "trackpad_touches",
		Timestamp: e.Timestamp,
		Touches:   encodeTouches(e.Touches),
	})
}

type gestureTypeJSON struct {
	Kind        string   `json:"kind"`
	Direction   *string  `json:"direction,omitempty"`
	FingerCount int      `json:"finger_count,omitempty"`
	TapCount    int      `json:"tap_count,omitempty"`
	DeltaX      *float64 `json:"delta_x,omitempty"`
	DeltaY      *float64 `json:"delta_y,omitempty"`
}

type gestureJSON struct {
	Type             string          `json:"type"`
	ID               string          `json:"id"`
	Timestamp        time.Time       `json:"timestamp"`
	Gesture          gestureTypeJSON `json:"gesture"`
	Touches          []touchJSON     `json:"touches"`
	Magnitude        float64         `json:"magnitude"`
	Rotation         *float64        `json:"rotation"`
	IsMomentumScroll bool            `json:"is_momentum_scroll"`
}

// MarshalJSON implements json.Marshaler.
func (e TrackpadGestureEvent) MarshalJSON() ([]byte, error) {
	g := e.Gesture
	gt := gestureTypeJSON{Kind: g.Type.Kind.String()}
	switch g.Type.Kind {
	case GestureSwipe, GestureMultiFingerSwipe:
		dir := g.Type.Direction.String()
		gt.Direction = &dir
		gt.FingerCount = g.Type.FingerCount
	case GestureTap:
		gt.TapCount = g.Type.TapCount
		gt.FingerCount = g.Type.FingerCount
	case GestureScroll:
		dx, dy := g.Type.DeltaX, g.Type.DeltaY
		gt.FingerCount = g.Type.FingerCount
		gt.DeltaX = &dx
		gt.DeltaY = &dy
	default:
		gt.FingerCount = g.Type.FingerCount
	}
	return json.Marshal(gestureJSON{
		Type:             "trackpad_gesture",
		ID:               g.ID.String(),
		Timestamp:        g.Timestamp,
		Gesture:          gt,
		Touches:          encodeTouches(g.Touches),
		Magnitude:        g.Magnitude,
		Rotation:         g.Rotation,
		IsMomentumScroll: g.IsMomentumScroll,
	})
}

// MarshalJSON encodes the set as an array of type names.
func (s TypeSet) MarshalJSON() ([]byte, error) {
	types := s.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return json.Marshal(names)
}
