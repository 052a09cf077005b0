package trackpad

import "inputviz/internal/event"

const touchesKey = "touches"

type entry struct {
	key string
	ev  event.Event
}

// Buffer holds the live touch set and at most one gesture per category.
type Buffer struct {
	entries []entry
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

func keyOf(e event.Event) (string, bool) {
	switch ev := e.(type) {
	case event.TrackpadTouchEvent:
		return touchesKey, true
	case event.TrackpadGestureEvent:
		return "gesture:" + ev.Gesture.Type.Kind.String(), true
	default:
		return "", false
	}
}

// Apply replaces the entry of e's category. An empty touch set only removes
// the previous set and reports false.
func (b *Buffer) Apply(e event.Event) bool {
	key, ok := keyOf(e)
	if !ok {
		return false
	}
	b.remove(key)
	if te, isTouches := e.(event.TrackpadTouchEvent); isTouches && len(te.Touches) == 0 {
		return false
	}
	b.entries = append(b.entries, entry{key: key, ev: e})
	return true
}

func (b *Buffer) remove(key string) {
	kept := b.entries[:0]
	for _, en := range b.entries {
		if en.key != key {
			kept = append(kept, en)
		}
	}
	clear(b.entries[len(kept):])
	b.entries = kept
}

// Events returns the buffered entries in arrival order.
func (b *Buffer) Events() []event.Event {
	out := make([]event.Event, len(b.entries))
	for i, en := range b.entries {
		out[i] = en.ev
	}
	return out
}

// Gestures returns only the buffered gestures.
func (b *Buffer) Gestures() []event.TrackpadGesture {
	var out []event.TrackpadGesture
	for _, en := range b.entries {
		if g, ok := en.ev.(event.TrackpadGestureEvent); ok {
			out = append(out, g.Gesture)
		}
	}
	return out
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int { return len(b.entries) }

// Clear drops every entry.
func (b *Buffer) Clear() { b.entries = nil }
