package mouse

import "inputviz/internal/event"

// Buffer holds at most one mouse event per logical category: one per
// button, one for movement and one for scrolling.
type Buffer struct {
	events []event.MouseEvent
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Apply replaces any buffered event of the same category with e. Every
// mouse event is displayed, so it reports true for mouse events.
func (b *Buffer) Apply(e event.Event) bool {
	me, ok := e.(event.MouseEvent)
	if !ok {
		return false
	}
	cat := me.Category()
	kept := b.events[:0]
	for _, have := range b.events {
		if have.Category() != cat {
			kept = append(kept, have)
		}
	}
	clear(b.events[len(kept):])
	b.events = append(kept, me)
	return true
}

// Events returns the buffered events in arrival order.
func (b *Buffer) Events() []event.Event {
	out := make([]event.Event, len(b.events))
	for i, e := range b.events {
		out[i] = e
	}
	return out
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int { return len(b.events) }

// Clear drops every event.
func (b *Buffer) Clear() { b.events = nil }
