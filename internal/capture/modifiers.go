package capture

import "inputviz/internal/event"

// ModifierForKey returns the modifier a canonical key code controls.
func ModifierForKey(code int) (event.Modifier, bool) {
	switch code {
	case KeyCommand, KeyRightCommand:
		return event.ModCommand, true
	case KeyShift, KeyRightShift:
		return event.ModShift, true
	case KeyOption, KeyRightOption:
		return event.ModOption, true
	case KeyControl, KeyRightControl:
		return event.ModControl, true
	case KeyFunction:
		return event.ModFunction, true
	case KeyCapsLock:
		return event.ModCapsLock, true
	default:
		return 0, false
	}
}
