package event

import (
	"time"

	"github.com/google/uuid"
)

// Button is a mouse button.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
	ButtonExtra1
	ButtonExtra2
)

// Buttons lists every tracked button.
var Buttons = []Button{ButtonLeft, ButtonRight, ButtonMiddle, ButtonExtra1, ButtonExtra2}

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	case ButtonExtra1:
		return "extra1"
	case ButtonExtra2:
		return "extra2"
	default:
		return "unknown"
	}
}

// ButtonFromNumber maps a platform button number (0 = left, 1 = right,
// 2 = middle, 3 and 4 = side buttons) to a Button.
func ButtonFromNumber(n int) (Button, bool) {
	if n < 0 || n > int(ButtonExtra2) {
		return 0, false
	}
	return Button(n), true
}

// MouseKind is the logical category of a mouse event.
type MouseKind uint8

const (
	MouseButtonAction MouseKind = iota
	MouseMove
	MouseScroll
)

func (k MouseKind) String() string {
	switch k {
	case MouseButtonAction:
		return "button"
	case MouseMove:
		return "move"
	case MouseScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// MouseEvent is a normalized mouse action.
type MouseEvent struct {
	ID        uuid.UUID
	Timestamp time.Time
	Kind      MouseKind
	Position  Point
	// Button is set for button actions only.
	Button *Button
	// ScrollDelta is set for scroll events only.
	ScrollDelta      *Point
	IsDown           bool
	IsDoubleClick    bool
	IsMomentumScroll bool
}

// InputType implements Event.
func (e MouseEvent) InputType() InputType { return TypeMouse }

// Time implements Event.
func (e MouseEvent) Time() time.Time { return e.Timestamp }

// Category is the buffer replacement key: one live entry per button, one for
// movement and one for scrolling.
func (e MouseEvent) Category() string {
	if e.Kind == MouseButtonAction && e.Button != nil {
		return "button:" + e.Button.String()
	}
	return e.Kind.String()
}
