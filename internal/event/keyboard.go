package event

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Modifier is a single keyboard modifier.
type Modifier uint8

const (
	ModControl Modifier = iota
	ModOption
	ModShift
	ModCommand
	ModFunction
	ModCapsLock
)

var modifierOrder = []Modifier{ModFunction, ModControl, ModOption, ModShift, ModCommand, ModCapsLock}

// Glyph returns the conventional symbol for the modifier.
func (m Modifier) Glyph() string {
	switch m {
	case ModControl:
		return "⌃"
	case ModOption:
		return "⌥"
	case ModShift:
		return "⇧"
	case ModCommand:
		return "⌘"
	case ModFunction:
		return "fn"
	case ModCapsLock:
		return "⇪"
	default:
		return ""
	}
}

// String returns the lowercase modifier name.
func (m Modifier) String() string {
	switch m {
	case ModControl:
		return "control"
	case ModOption:
		return "option"
	case ModShift:
		return "shift"
	case ModCommand:
		return "command"
	case ModFunction:
		return "function"
	case ModCapsLock:
		return "capslock"
	default:
		return "unknown"
	}
}

// ModifierSet is a set of modifiers.
type ModifierSet uint8

// Has reports whether m is held.
func (s ModifierSet) Has(m Modifier) bool {
	return s&(1<<m) != 0
}

// With returns the set with m added.
func (s ModifierSet) With(m Modifier) ModifierSet {
	return s | 1<<m
}

// Without returns the set with m removed.
func (s ModifierSet) Without(m Modifier) ModifierSet {
	return s &^ (1 << m)
}

// Modifiers returns the members in display order (fn ⌃ ⌥ ⇧ ⌘ ⇪).
func (s ModifierSet) Modifiers() []Modifier {
	var out []Modifier
	for _, m := range modifierOrder {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// Glyphs renders the set as concatenated symbols, e.g. "⌃⇧⌘".
func (s ModifierSet) Glyphs() string {
	var b strings.Builder
	for _, m := range s.Modifiers() {
		b.WriteString(m.Glyph())
	}
	return b.String()
}

// Names returns the lowercase member names in display order.
func (s ModifierSet) Names() []string {
	mods := s.Modifiers()
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.String()
	}
	return names
}

// KeyboardEvent is a normalized key press or release.
type KeyboardEvent struct {
	ID        uuid.UUID
	Timestamp time.Time
	KeyCode   int
	// Glyph is the display symbol for KeyCode; empty when the code has none.
	Glyph     string
	IsDown    bool
	IsRepeat  bool
	Modifiers ModifierSet
}

// InputType implements Event.
func (e KeyboardEvent) InputType() InputType { return TypeKeyboard }

// Time implements Event.
func (e KeyboardEvent) Time() time.Time { return e.Timestamp }

// Label is the text a display would show: modifier glyphs followed by the key
// glyph, or the numeric code when no glyph is known.
func (e KeyboardEvent) Label() string {
	key := e.Glyph
	if key == "" {
		key = "#" + strconv.Itoa(e.KeyCode)
	}
	return e.Modifiers.Glyphs() + key
}
