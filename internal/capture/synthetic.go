package capture

import (
	"fmt"
	"sync"
	"time"

	"inputviz/internal/event"
)

// Synthetic is an in-memory Provider. Injected notifications are delivered
// synchronously on the caller's goroutine, as an OS callback would be.
type Synthetic struct {
	registry

	mu     sync.Mutex
	denied map[Kind]bool
}

// NewSynthetic creates a provider with every kind available.
func NewSynthetic() *Synthetic {
	return &Synthetic{denied: make(map[Kind]bool)}
}

// Deny makes registrations of kind k fail with ErrPermissionDenied, as if
// the user had not granted access. Existing registrations are unaffected.
func (s *Synthetic) Deny(k Kind, deny bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[k] = deny
}

// Available implements Provider.
func (s *Synthetic) Available(k Kind) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied[k] {
		return false, fmt.Sprintf("synthetic %s access denied", k)
	}
	return true, fmt.Sprintf("synthetic %s source", k)
}

func (s *Synthetic) check(k Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied[k] {
		return fmt.Errorf("register %s tap: %w", k, ErrPermissionDenied)
	}
	return nil
}

// RegisterKeyTap implements Provider.
func (s *Synthetic) RegisterKeyTap(mask Mask, h KeyHandler) (Handle, error) {
	if err := s.check(KindKeyboard); err != nil {
		return 0, err
	}
	return s.add(&tap{kind: KindKeyboard, mask: mask, key: h}), nil
}

// RegisterMouseTap implements Provider.
func (s *Synthetic) RegisterMouseTap(mask Mask, h MouseHandler) (Handle, error) {
	if err := s.check(KindMouse); err != nil {
		return 0, err
	}
	return s.add(&tap{kind: KindMouse, mask: mask, mouse: h}), nil
}

// RegisterTouchSource implements Provider.
func (s *Synthetic) RegisterTouchSource(h TouchHandler) (Handle, error) {
	if err := s.check(KindTouch); err != nil {
		return 0, err
	}
	return s.add(&tap{kind: KindTouch, mask: ^Mask(0), touch: h}), nil
}

// Enable implements Provider.
func (s *Synthetic) Enable(h Handle, on bool) error {
	return s.enable(h, on)
}

// Unregister implements Provider.
func (s *Synthetic) Unregister(h Handle) error {
	_, _, err := s.remove(h)
	return err
}

// Registered returns the number of live registrations of kind k.
func (s *Synthetic) Registered(k Kind) int {
	return s.count(k)
}

// Key injects a raw key notification and returns how many taps received it.
func (s *Synthetic) Key(ev KeyTapEvent) int {
	return s.emitKey(ev)
}

// KeyDown injects a key press.
func (s *Synthetic) KeyDown(ts time.Time, code int, flags event.ModifierSet) int {
	return s.emitKey(KeyTapEvent{Timestamp: ts, Action: KeyDown, KeyCode: code, Flags: flags})
}

// KeyRepeat injects an autorepeat key press.
func (s *Synthetic) KeyRepeat(ts time.Time, code int, flags event.ModifierSet) int {
	return s.emitKey(KeyTapEvent{Timestamp: ts, Action: KeyDown, KeyCode: code, Flags: flags, IsRepeat: true})
}

// KeyUp injects a key release.
func (s *Synthetic) KeyUp(ts time.Time, code int, flags event.ModifierSet) int {
	return s.emitKey(KeyTapEvent{Timestamp: ts, Action: KeyUp, KeyCode: code, Flags: flags})
}

// Mouse injects a raw mouse notification.
func (s *Synthetic) Mouse(ev MouseTapEvent) int {
	return s.emitMouse(ev)
}

// Click injects a button press at pos.
func (s *Synthetic) Click(ts time.Time, button int, pos event.Point) int {
	return s.emitMouse(MouseTapEvent{Timestamp: ts, Action: MouseDown, Button: button, Position: pos})
}

// Release injects a button release at pos.
func (s *Synthetic) Release(ts time.Time, button int, pos event.Point) int {
	return s.emitMouse(MouseTapEvent{Timestamp: ts, Action: MouseUp, Button: button, Position: pos})
}

// Move injects a pointer move.
func (s *Synthetic) Move(ts time.Time, pos event.Point) int {
	return s.emitMouse(MouseTapEvent{Timestamp: ts, Action: MouseMoved, Position: pos})
}

// Scroll injects a scroll. Continuous scrolls also reach touch sources.
func (s *Synthetic) Scroll(ev ScrollEvent) int {
	return s.emitMouse(MouseTapEvent{Timestamp: ev.Timestamp, Action: MouseScroll, Scroll: ev})
}

// Touches injects a multi-touch frame.
func (s *Synthetic) Touches(fr TouchFrame) int {
	return s.emitTouches(fr)
}

// Gesture injects a platform-recognized gesture.
func (s *Synthetic) Gesture(g PlatformGesture) int {
	return s.emitGesture(g)
}

var _ Provider = (*Synthetic)(nil)
