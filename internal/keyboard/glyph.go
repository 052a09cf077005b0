package keyboard

import "inputviz/internal/capture"

var glyphs = map[int]string{
	capture.KeyA: "A", capture.KeyB: "B", capture.KeyC: "C", capture.KeyD: "D",
	capture.KeyE: "E", capture.KeyF: "F", capture.KeyG: "G", capture.KeyH: "H",
	capture.KeyI: "I", capture.KeyJ: "J", capture.KeyK: "K", capture.KeyL: "L",
	capture.KeyM: "M", capture.KeyN: "N", capture.KeyO: "O", capture.KeyP: "P",
	capture.KeyQ: "Q", capture.KeyR: "R", capture.KeyS: "S", capture.KeyT: "T",
	capture.KeyU: "U", capture.KeyV: "V", capture.KeyW: "W", capture.KeyX: "X",
	capture.KeyY: "Y", capture.KeyZ: "Z",

	capture.Key0: "0", capture.Key1: "1", capture.Key2: "2", capture.Key3: "3",
	capture.Key4: "4", capture.Key5: "5", capture.Key6: "6", capture.Key7: "7",
	capture.Key8: "8", capture.Key9: "9",

	capture.KeyMinus:        "-",
	capture.KeyEqual:        "=",
	capture.KeyLeftBracket:  "[",
	capture.KeyRightBracket: "]",
	capture.KeyBackslash:    "\\",
	capture.KeySemicolon:    ";",
	capture.KeyQuote:        "'",
	capture.KeyComma:        ",",
	capture.KeyPeriod:       ".",
	capture.KeySlash:        "/",
	capture.KeyGrave:        "`",
	capture.KeyISOSection:   "§",

	capture.KeyCommand:      "⌘",
	capture.KeyRightCommand: "⌘",
	capture.KeyShift:        "⇧",
	capture.KeyRightShift:   "⇧",
	capture.KeyOption:       "⌥",
	capture.KeyRightOption:  "⌥",
	capture.KeyControl:      "⌃",
	capture.KeyRightControl: "⌃",
	capture.KeyFunction:     "fn",
	capture.KeyCapsLock:     "⇪",

	capture.KeyReturn:        "↩",
	capture.KeyTab:           "⇥",
	capture.KeySpace:         "␣",
	capture.KeyDelete:        "⌫",
	capture.KeyForwardDelete: "⌦",
	capture.KeyEscape:        "⎋",
	capture.KeyHelp:          "?⃝",
	capture.KeyHome:          "↖",
	capture.KeyEnd:           "↘",
	capture.KeyPageUp:        "⇞",
	capture.KeyPageDown:      "⇟",
	capture.KeyLeftArrow:     "←",
	capture.KeyRightArrow:    "→",
	capture.KeyUpArrow:       "↑",
	capture.KeyDownArrow:     "↓",

	capture.KeyF1: "F1", capture.KeyF2: "F2", capture.KeyF3: "F3", capture.KeyF4: "F4",
	capture.KeyF5: "F5", capture.KeyF6: "F6", capture.KeyF7: "F7", capture.KeyF8: "F8",
	capture.KeyF9: "F9", capture.KeyF10: "F10", capture.KeyF11: "F11", capture.KeyF12: "F12",
	capture.KeyF13: "F13", capture.KeyF14: "F14", capture.KeyF15: "F15", capture.KeyF16: "F16",
	capture.KeyF17: "F17", capture.KeyF18: "F18", capture.KeyF19: "F19", capture.KeyF20: "F20",

	capture.KeyKeypad0:        "0",
	capture.KeyKeypad1:        "1",
	capture.KeyKeypad2:        "2",
	capture.KeyKeypad3:        "3",
	capture.KeyKeypad4:        "4",
	capture.KeyKeypad5:        "5",
	capture.KeyKeypad6:        "6",
	capture.KeyKeypad7:        "7",
	capture.KeyKeypad8:        "8",
	capture.KeyKeypad9:        "9",
	capture.KeyKeypadDecimal:  ".",
	capture.KeyKeypadMultiply: "*",
	capture.KeyKeypadPlus:     "+",
	capture.KeyKeypadMinus:    "-",
	capture.KeyKeypadDivide:   "/",
	capture.KeyKeypadEquals:   "=",
	capture.KeyKeypadEnter:    "⌤",
	capture.KeyKeypadClear:    "⌧",

	capture.KeyVolumeUp:   "🔊",
	capture.KeyVolumeDown: "🔉",
	capture.KeyMute:       "🔇",
}

// Glyph returns the display symbol for a canonical key code, or "" when the
// code has none.
func Glyph(code int) string {
	return glyphs[code]
}

// IsModifierKey reports whether code is a command, shift, option, control,
// function or caps lock key on either side.
func IsModifierKey(code int) bool {
	_, ok := capture.ModifierForKey(code)
	return ok
}
