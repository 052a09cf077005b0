// Package capture delivers raw operating-system input notifications.
//
// Providers invoke handlers from their own delivery goroutine or OS thread.
// Handlers must return quickly and must not panic; they copy what they need
// and hand it off to the apply context.
//
// Platform support:
//   - macOS: CGEventTap for keys, buttons and scrolls plus the
//     MultitouchSupport contact-frame callback (requires Accessibility)
//   - Linux: /dev/input/event* (requires the input group or root)
//   - other platforms: unavailable
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inputviz/internal/event"
)

var (
	// ErrNotAvailable is returned when a capture kind isn't supported here.
	ErrNotAvailable = errors.New("input capture not available on this platform")

	// ErrPermissionDenied is returned when the OS refuses the hook.
	ErrPermissionDenied = errors.New("input capture permission denied")

	// ErrAlreadyRunning is returned when an OS hook is started twice.
	ErrAlreadyRunning = errors.New("input capture already running")

	// ErrUnknownHandle is returned for handles that were never issued or
	// have been unregistered.
	ErrUnknownHandle = errors.New("unknown capture handle")
)

// Kind is a class of input source.
type Kind uint8

const (
	KindKeyboard Kind = iota
	KindMouse
	KindTouch
)

// Kinds lists every capture kind.
var Kinds = []Kind{KindKeyboard, KindMouse, KindTouch}

func (k Kind) String() string {
	switch k {
	case KindKeyboard:
		return "keyboard"
	case KindMouse:
		return "mouse"
	case KindTouch:
		return "touch"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Mask selects which notifications a tap receives.
type Mask uint32

const (
	MaskKeyDown Mask = 1 << iota
	MaskKeyUp
	MaskFlagsChanged
	MaskMouseDown
	MaskMouseUp
	MaskMouseMove
	MaskScroll

	MaskKeys  = MaskKeyDown | MaskKeyUp | MaskFlagsChanged
	MaskMouse = MaskMouseDown | MaskMouseUp | MaskMouseMove | MaskScroll
)

// Has reports whether every bit of o is set.
func (m Mask) Has(o Mask) bool {
	return m&o == o
}

// Handle identifies a registered tap or touch source.
type Handle uint64

// KeyAction is the kind of key notification.
type KeyAction uint8

const (
	KeyDown KeyAction = iota
	KeyUp
	// FlagsChanged reports a modifier transition. The key code is the
	// modifier key and Flags holds the new modifier state.
	FlagsChanged
)

func (a KeyAction) mask() Mask {
	switch a {
	case KeyDown:
		return MaskKeyDown
	case KeyUp:
		return MaskKeyUp
	default:
		return MaskFlagsChanged
	}
}

// KeyTapEvent is a raw key notification. KeyCode is a macOS virtual key
// code; other platforms translate into that space.
type KeyTapEvent struct {
	Timestamp time.Time
	Action    KeyAction
	KeyCode   int
	Flags     event.ModifierSet
	IsRepeat  bool
}

// MouseAction is the kind of mouse notification.
type MouseAction uint8

const (
	MouseDown MouseAction = iota
	MouseUp
	MouseMoved
	MouseScroll
)

func (a MouseAction) mask() Mask {
	switch a {
	case MouseDown:
		return MaskMouseDown
	case MouseUp:
		return MaskMouseUp
	case MouseMoved:
		return MaskMouseMove
	default:
		return MaskScroll
	}
}

// ScrollPhase is the platform's scroll phase flag.
type ScrollPhase uint8

const (
	ScrollPhaseNone ScrollPhase = iota
	ScrollPhaseBegan
	ScrollPhaseChanged
	ScrollPhaseEnded
	// ScrollPhaseMomentum marks inertia deltas generated after the fingers
	// lifted.
	ScrollPhaseMomentum
	ScrollPhaseMomentumEnded
)

// IsMomentum reports whether the phase belongs to inertia scrolling.
func (p ScrollPhase) IsMomentum() bool {
	return p == ScrollPhaseMomentum || p == ScrollPhaseMomentumEnded
}

func (p ScrollPhase) String() string {
	switch p {
	case ScrollPhaseBegan:
		return "began"
	case ScrollPhaseChanged:
		return "changed"
	case ScrollPhaseEnded:
		return "ended"
	case ScrollPhaseMomentum:
		return "momentum"
	case ScrollPhaseMomentumEnded:
		return "momentum_ended"
	default:
		return "none"
	}
}

// ScrollEvent is a raw scroll delta.
type ScrollEvent struct {
	Timestamp time.Time
	DeltaX    float64
	DeltaY    float64
	Phase     ScrollPhase
	// Continuous is set for precise (trackpad or touch-surface) scrolling.
	Continuous bool
}

// MouseTapEvent is a raw mouse notification. Button is the platform button
// number and is only meaningful for MouseDown and MouseUp.
type MouseTapEvent struct {
	Timestamp time.Time
	Action    MouseAction
	Position  event.Point
	Button    int
	Scroll    ScrollEvent
}

// TouchPhase is the lifecycle phase of one contact in a frame.
type TouchPhase uint8

const (
	TouchBegan TouchPhase = iota
	TouchMoved
	TouchStationary
	TouchEnded
	TouchCancelled
)

func (p TouchPhase) String() string {
	switch p {
	case TouchBegan:
		return "began"
	case TouchMoved:
		return "moved"
	case TouchStationary:
		return "stationary"
	case TouchEnded:
		return "ended"
	case TouchCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RawTouch is one contact in a touch frame. Positions are normalized to
// [0,1] with the origin at the top-left. A negative ID means the platform
// did not report an identity.
type RawTouch struct {
	ID          int
	Phase       TouchPhase
	X, Y        float64
	Pressure    float64
	MajorRadius float64
	MinorRadius float64
	FingerType  event.FingerType
}

// TouchFrame is one multi-touch report.
type TouchFrame struct {
	Timestamp time.Time
	Touches   []RawTouch
}

// GestureKind is a gesture recognized by the platform itself.
type GestureKind uint8

const (
	GestureMagnify GestureKind = iota
	GestureRotate
	GestureSwipe
)

// PlatformGesture is a gesture reported by the platform recognizer.
type PlatformGesture struct {
	Timestamp time.Time
	Kind      GestureKind
	// Magnification is the scale delta for GestureMagnify.
	Magnification float64
	// Rotation is the signed rotation in radians for GestureRotate.
	Rotation float64
	// DeltaX and DeltaY give the direction for GestureSwipe.
	DeltaX, DeltaY float64
	FingerCount    int
}

// KeyHandler receives key notifications.
type KeyHandler func(KeyTapEvent)

// MouseHandler receives mouse notifications.
type MouseHandler func(MouseTapEvent)

// TouchHandler receives trackpad notifications.
type TouchHandler interface {
	HandleTouches(TouchFrame)
	HandleScroll(ScrollEvent)
	HandleGesture(PlatformGesture)
}

// TouchFuncs adapts plain functions to TouchHandler. Nil fields ignore
// their notifications.
type TouchFuncs struct {
	Touches func(TouchFrame)
	Scroll  func(ScrollEvent)
	Gesture func(PlatformGesture)
}

func (f TouchFuncs) HandleTouches(fr TouchFrame) {
	if f.Touches != nil {
		f.Touches(fr)
	}
}

func (f TouchFuncs) HandleScroll(ev ScrollEvent) {
	if f.Scroll != nil {
		f.Scroll(ev)
	}
}

func (f TouchFuncs) HandleGesture(g PlatformGesture) {
	if f.Gesture != nil {
		f.Gesture(g)
	}
}

// Provider is an OS input source. Registrations start the underlying hook
// lazily and the last Unregister of a kind stops it.
type Provider interface {
	RegisterKeyTap(mask Mask, h KeyHandler) (Handle, error)
	RegisterMouseTap(mask Mask, h MouseHandler) (Handle, error)
	RegisterTouchSource(h TouchHandler) (Handle, error)

	// Enable pauses or resumes delivery to a handle without releasing it.
	Enable(h Handle, on bool) error

	Unregister(h Handle) error

	// Available reports whether the kind can be captured with the current
	// permissions, and a human-readable reason.
	Available(k Kind) (bool, string)
}

// New creates the Provider for the current platform.
func New(logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return newPlatformProvider(logger)
}
