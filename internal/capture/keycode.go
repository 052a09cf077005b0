package capture

// Canonical key codes. These are the macOS virtual key codes; providers on
// other platforms translate their native codes into this space.
const (
	KeyA              = 0x00
	KeyS              = 0x01
	KeyD              = 0x02
	KeyF              = 0x03
	KeyH              = 0x04
	KeyG              = 0x05
	KeyZ              = 0x06
	KeyX              = 0x07
	KeyC              = 0x08
	KeyV              = 0x09
	KeyISOSection     = 0x0A
	KeyB              = 0x0B
	KeyQ              = 0x0C
	KeyW              = 0x0D
	KeyE              = 0x0E
	KeyR              = 0x0F
	KeyY              = 0x10
	KeyT              = 0x11
	Key1              = 0x12
	Key2              = 0x13
	Key3              = 0x14
	Key4              = 0x15
	Key6              = 0x16
	Key5              = 0x17
	KeyEqual          = 0x18
	Key9              = 0x19
	Key7              = 0x1A
	KeyMinus          = 0x1B
	Key8              = 0x1C
	Key0              = 0x1D
	KeyRightBracket   = 0x1E
	KeyO              = 0x1F
	KeyU              = 0x20
	KeyLeftBracket    = 0x21
	KeyI              = 0x22
	KeyP              = 0x23
	KeyReturn         = 0x24
	KeyL              = 0x25
	KeyJ              = 0x26
	KeyQuote          = 0x27
	KeyK              = 0x28
	KeySemicolon      = 0x29
	KeyBackslash      = 0x2A
	KeyComma          = 0x2B
	KeySlash          = 0x2C
	KeyN              = 0x2D
	KeyM              = 0x2E
	KeyPeriod         = 0x2F
	KeyTab            = 0x30
	KeySpace          = 0x31
	KeyGrave          = 0x32
	KeyDelete         = 0x33
	KeyEscape         = 0x35
	KeyRightCommand   = 0x36
	KeyCommand        = 0x37
	KeyShift          = 0x38
	KeyCapsLock       = 0x39
	KeyOption         = 0x3A
	KeyControl        = 0x3B
	KeyRightShift     = 0x3C
	KeyRightOption    = 0x3D
	KeyRightControl   = 0x3E
	KeyFunction       = 0x3F
	KeyF17            = 0x40
	KeyKeypadDecimal  = 0x41
	KeyKeypadMultiply = 0x43
	KeyKeypadPlus     = 0x45
	KeyKeypadClear    = 0x47
	KeyVolumeUp       = 0x48
	KeyVolumeDown     = 0x49
	KeyMute           = 0x4A
	KeyKeypadDivide   = 0x4B
	KeyKeypadEnter    = 0x4C
	KeyKeypadMinus    = 0x4E
	KeyF18            = 0x4F
	KeyF19            = 0x50
	KeyKeypadEquals   = 0x51
	KeyKeypad0        = 0x52
	KeyKeypad1        = 0x53
	KeyKeypad2        = 0x54
	KeyKeypad3        = 0x55
	KeyKeypad4        = 0x56
	KeyKeypad5        = 0x57
	KeyKeypad6        = 0x58
	KeyKeypad7        = 0x59
	KeyF20            = 0x5A
	KeyKeypad8        = 0x5B
	KeyKeypad9        = 0x5C
	KeyF5             = 0x60
	KeyF6             = 0x61
	KeyF7             = 0x62
	KeyF3             = 0x63
	KeyF8             = 0x64
	KeyF9             = 0x65
	KeyF11            = 0x67
	KeyF13            = 0x69
	KeyF16            = 0x6A
	KeyF14            = 0x6B
	KeyF10            = 0x6D
	KeyF12            = 0x6F
	KeyF15            = 0x71
	KeyHelp           = 0x72
	KeyHome           = 0x73
	KeyPageUp         = 0x74
	KeyForwardDelete  = 0x75
	KeyF4             = 0x76
	KeyEnd            = 0x77
	KeyF2             = 0x78
	KeyPageDown       = 0x79
	KeyF1             = 0x7A
	KeyLeftArrow      = 0x7B
	KeyRightArrow     = 0x7C
	KeyDownArrow      = 0x7D
	KeyUpArrow        = 0x7E
)

// UnmappedKeyBase offsets native codes that have no canonical equivalent so
// they never collide with the canonical space.
const UnmappedKeyBase = 0x10000

// evdevKeys maps Linux KEY_* codes to canonical codes.
var evdevKeys = map[uint16]int{
	1:   KeyEscape,
	2:   Key1,
	3:   Key2,
	4:   Key3,
	5:   Key4,
	6:   Key5,
	7:   Key6,
	8:   Key7,
	9:   Key8,
	10:  Key9,
	11:  Key0,
	12:  KeyMinus,
	13:  KeyEqual,
	14:  KeyDelete,
	15:  KeyTab,
	16:  KeyQ,
	17:  KeyW,
	18:  KeyE,
	19:  KeyR,
	20:  KeyT,
	21:  KeyY,
	22:  KeyU,
	23:  KeyI,
	24:  KeyO,
	25:  KeyP,
	26:  KeyLeftBracket,
	27:  KeyRightBracket,
	28:  KeyReturn,
	29:  KeyControl,
	30:  KeyA,
	31:  KeyS,
	32:  KeyD,
	33:  KeyF,
	34:  KeyG,
	35:  KeyH,
	36:  KeyJ,
	37:  KeyK,
	38:  KeyL,
	39:  KeySemicolon,
	40:  KeyQuote,
	41:  KeyGrave,
	42:  KeyShift,
	43:  KeyBackslash,
	44:  KeyZ,
	45:  KeyX,
	46:  KeyC,
	47:  KeyV,
	48:  KeyB,
	49:  KeyN,
	50:  KeyM,
	51:  KeyComma,
	52:  KeyPeriod,
	53:  KeySlash,
	54:  KeyRightShift,
	55:  KeyKeypadMultiply,
	56:  KeyOption,
	57:  KeySpace,
	58:  KeyCapsLock,
	59:  KeyF1,
	60:  KeyF2,
	61:  KeyF3,
	62:  KeyF4,
	63:  KeyF5,
	64:  KeyF6,
	65:  KeyF7,
	66:  KeyF8,
	67:  KeyF9,
	68:  KeyF10,
	69:  KeyKeypadClear,
	71:  KeyKeypad7,
	72:  KeyKeypad8,
	73:  KeyKeypad9,
	74:  KeyKeypadMinus,
	75:  KeyKeypad4,
	76:  KeyKeypad5,
	77:  KeyKeypad6,
	78:  KeyKeypadPlus,
	79:  KeyKeypad1,
	80:  KeyKeypad2,
	81:  KeyKeypad3,
	82:  KeyKeypad0,
	83:  KeyKeypadDecimal,
	86:  KeyISOSection,
	87:  KeyF11,
	88:  KeyF12,
	96:  KeyKeypadEnter,
	97:  KeyRightControl,
	98:  KeyKeypadDivide,
	100: KeyRightOption,
	102: KeyHome,
	103: KeyUpArrow,
	104: KeyPageUp,
	105: KeyLeftArrow,
	106: KeyRightArrow,
	107: KeyEnd,
	108: KeyDownArrow,
	109: KeyPageDown,
	110: KeyHelp,
	111: KeyForwardDelete,
	113: KeyMute,
	114: KeyVolumeDown,
	115: KeyVolumeUp,
	117: KeyKeypadEquals,
	125: KeyCommand,
	126: KeyRightCommand,
	138: KeyHelp,
	183: KeyF13,
	184: KeyF14,
	185: KeyF15,
	186: KeyF16,
	187: KeyF17,
	188: KeyF18,
	189: KeyF19,
	190: KeyF20,
	464: KeyFunction,
}

// FromEvdev translates a Linux KEY_* code. Codes without a canonical
// equivalent are offset by UnmappedKeyBase.
func FromEvdev(code uint16) int {
	if k, ok := evdevKeys[code]; ok {
		return k
	}
	return UnmappedKeyBase + int(code)
}
