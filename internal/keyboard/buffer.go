package keyboard

import "inputviz/internal/event"

// DefaultMaxBuffered is the number of key presses kept on screen.
const DefaultMaxBuffered = 6

// Buffer is the live set of key presses. It is owned by the apply context.
type Buffer struct {
	limit  int
	events []event.KeyboardEvent
}

// NewBuffer creates a buffer holding at most limit presses. Non-positive
// values select DefaultMaxBuffered.
func NewBuffer(limit int) *Buffer {
	b := &Buffer{}
	b.SetMax(limit)
	return b
}

// SetMax changes the bound, evicting the oldest entries if needed.
func (b *Buffer) SetMax(limit int) {
	if limit <= 0 {
		limit = DefaultMaxBuffered
	}
	b.limit = limit
	b.trim()
}

// Apply inserts a key-down or, for a key-up, removes every buffered press of
// the same code. It reports whether something new is displayed.
func (b *Buffer) Apply(e event.Event) bool {
	ke, ok := e.(event.KeyboardEvent)
	if !ok {
		return false
	}

	if !ke.IsDown {
		kept := b.events[:0]
		for _, have := range b.events {
			if have.KeyCode != ke.KeyCode {
				kept = append(kept, have)
			}
		}
		clear(b.events[len(kept):])
		b.events = kept
		return false
	}

	for _, have := range b.events {
		if have.KeyCode == ke.KeyCode && have.IsDown && have.Modifiers == ke.Modifiers {
			return false
		}
	}
	b.events = append(b.events, ke)
	b.trim()
	return true
}

func (b *Buffer) trim() {
	if over := len(b.events) - b.limit; over > 0 {
		b.events = append(b.events[:0], b.events[over:]...)
	}
}

// Events returns the buffered presses, oldest first.
func (b *Buffer) Events() []event.Event {
	out := make([]event.Event, len(b.events))
	for i, e := range b.events {
		out[i] = e
	}
	return out
}

// Len returns the number of buffered presses.
func (b *Buffer) Len() int { return len(b.events) }

// Clear drops every press.
func (b *Buffer) Clear() { b.events = nil }
