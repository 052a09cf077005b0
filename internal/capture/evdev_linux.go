//go:build linux

package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"inputviz/internal/event"
)

const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02
	evAbs = 0x03

	synReport  = 0x00
	synDropped = 0x03

	relX      = 0x00
	relY      = 0x01
	relHWheel = 0x06
	relWheel  = 0x08

	btnLeft       = 0x110
	btnRight      = 0x111
	btnMiddle     = 0x112
	btnSide       = 0x113
	btnExtra      = 0x114
	btnToolFinger = 0x145
	btnMiscFirst  = 0x100
	btnMiscLast   = 0x15f

	keyA     = 30
	keySpace = 57
	keyMax   = 0x2ff

	absMTSlot       = 0x2f
	absMTTouchMajor = 0x30
	absMTTouchMinor = 0x31
	absMTPositionX  = 0x35
	absMTPositionY  = 0x36
	absMTToolType   = 0x37
	absMTTrackingID = 0x39
	absMTPressure   = 0x3a

	mtToolPalm = 0x02

	maxSlots = 16
)

var eventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

type axis struct{ min, max int32 }

func (a axis) normalize(v int32) float64 {
	if a.max <= a.min {
		return 0
	}
	return float64(v-a.min) / float64(a.max-a.min)
}

// ioctl request encoding (Linux _IOC macro)
const (
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

func ioctlBuf(fd uintptr, req uintptr, buf unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(buf)); errno != 0 {
		return errno
	}
	return nil
}

func eviocgbit(fd uintptr, ev uint32, n int) ([]byte, error) {
	buf := make([]byte, n)
	err := ioctlBuf(fd, ioc(iocRead, 'E', 0x20+ev, uint32(n)), unsafe.Pointer(&buf[0]))
	return buf, err
}

func eviocgname(fd uintptr) string {
	buf := make([]byte, 256)
	if err := ioctlBuf(fd, ioc(iocRead, 'E', 0x06, uint32(len(buf))), unsafe.Pointer(&buf[0])); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf, "\x00"))
}

func eviocgabs(fd uintptr, code uint32) (axis, error) {
	var info absInfo
	err := ioctlBuf(fd, ioc(iocRead, 'E', 0x40+code, uint32(unsafe.Sizeof(info))), unsafe.Pointer(&info))
	return axis{min: info.Min, max: info.Max}, err
}

func testBit(bits []byte, n int) bool {
	return n/8 < len(bits) && bits[n/8]&(1<<(n%8)) != 0
}

// inputDevice is one /dev/input/event* node classified by capability.
type inputDevice struct {
	path string
	name string
	kind Kind

	x, y, pressure, major axis
}

// classify probes capability bits. ok is false for devices of no interest.
func classify(f *os.File) (inputDevice, bool) {
	fd := f.Fd()
	d := inputDevice{path: f.Name(), name: eviocgname(fd)}

	evBits, err := eviocgbit(fd, 0, 4)
	if err != nil {
		return d, false
	}
	keyBits, _ := eviocgbit(fd, evKey, keyMax/8+1)

	switch {
	case testBit(evBits, evAbs) && testBit(keyBits, btnToolFinger):
		absBits, _ := eviocgbit(fd, evAbs, 8)
		if !testBit(absBits, absMTPositionX) || !testBit(absBits, absMTSlot) {
			return d, false
		}
		d.kind = KindTouch
		d.x, _ = eviocgabs(fd, absMTPositionX)
		d.y, _ = eviocgabs(fd, absMTPositionY)
		d.pressure, _ = eviocgabs(fd, absMTPressure)
		d.major, _ = eviocgabs(fd, absMTTouchMajor)
		return d, true
	case testBit(evBits, evRel) && testBit(keyBits, btnLeft):
		relBits, _ := eviocgbit(fd, evRel, 2)
		if !testBit(relBits, relX) || !testBit(relBits, relY) {
			return d, false
		}
		d.kind = KindMouse
		return d, true
	case testBit(evBits, evKey) && testBit(keyBits, keyA) && testBit(keyBits, keySpace):
		d.kind = KindKeyboard
		return d, true
	}
	return d, false
}

// discover opens every event node and keeps those of kind k. A permission
// error is returned only when no device of the kind could be opened.
func discover(k Kind) ([]inputDevice, []*os.File, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, nil, err
	}

	var (
		devices []inputDevice
		files   []*os.File
		denied  int
	)
	for _, path := range paths {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				denied++
			}
			continue
		}
		d, ok := classify(f)
		if !ok || d.kind != k {
			f.Close()
			continue
		}
		devices = append(devices, d)
		files = append(files, f)
	}

	if len(devices) == 0 {
		if denied > 0 {
			return nil, nil, fmt.Errorf("open %s devices (need to be in 'input' group or run as root): %w", k, ErrPermissionDenied)
		}
		return nil, nil, fmt.Errorf("no %s devices found: %w", k, ErrNotAvailable)
	}
	return devices, files, nil
}

// decoder consumes one device's input_event stream.
type decoder interface {
	feed(typ, code uint16, value int32)
}

func parseEvents(buf []byte, dec decoder) {
	for off := 0; off+eventSize <= len(buf); off += eventSize {
		ev := buf[off : off+eventSize]
		base := eventSize - 8
		dec.feed(
			binary.LittleEndian.Uint16(ev[base:base+2]),
			binary.LittleEndian.Uint16(ev[base+2:base+4]),
			int32(binary.LittleEndian.Uint32(ev[base+4:base+8])),
		)
	}
}

type keyDecoder struct {
	emit func(KeyTapEvent) int
	now  func() time.Time
	mods event.ModifierSet
}

func (d *keyDecoder) feed(typ, code uint16, value int32) {
	if typ != evKey || (code >= btnMiscFirst && code <= btnMiscLast) {
		return
	}
	kc := FromEvdev(code)
	ev := KeyTapEvent{Timestamp: d.now(), KeyCode: kc}
	switch value {
	case 0:
		ev.Action = KeyUp
	case 1:
		ev.Action = KeyDown
	case 2:
		ev.Action = KeyDown
		ev.IsRepeat = true
	default:
		return
	}

	if m, ok := ModifierForKey(kc); ok && !ev.IsRepeat {
		switch {
		case m == event.ModCapsLock:
			if ev.Action == KeyDown {
				if d.mods.Has(m) {
					d.mods = d.mods.Without(m)
				} else {
					d.mods = d.mods.With(m)
				}
			}
		case ev.Action == KeyDown:
			d.mods = d.mods.With(m)
		default:
			d.mods = d.mods.Without(m)
		}
	}
	ev.Flags = d.mods
	d.emit(ev)
}

type mouseDecoder struct {
	emit func(MouseTapEvent) int
	now  func() time.Time

	pos           event.Point
	dx, dy        int32
	wheel, hwheel int32
}

func buttonNumber(code uint16) (int, bool) {
	switch code {
	case btnLeft:
		return 0, true
	case btnRight:
		return 1, true
	case btnMiddle:
		return 2, true
	case btnSide:
		return 3, true
	case btnExtra:
		return 4, true
	}
	return 0, false
}

func (d *mouseDecoder) feed(typ, code uint16, value int32) {
	switch typ {
	case evRel:
		switch code {
		case relX:
			d.dx += value
		case relY:
			d.dy += value
		case relWheel:
			d.wheel += value
		case relHWheel:
			d.hwheel += value
		}
	case evKey:
		n, ok := buttonNumber(code)
		if !ok || value > 1 {
			return
		}
		action := MouseUp
		if value == 1 {
			action = MouseDown
		}
		d.emit(MouseTapEvent{Timestamp: d.now(), Action: action, Position: d.pos, Button: n})
	case evSyn:
		if code != synReport {
			d.dx, d.dy, d.wheel, d.hwheel = 0, 0, 0, 0
			return
		}
		now := d.now()
		if d.dx != 0 || d.dy != 0 {
			d.pos = d.pos.Add(event.Point{X: float64(d.dx), Y: float64(d.dy)})
			d.emit(MouseTapEvent{Timestamp: now, Action: MouseMoved, Position: d.pos})
		}
		if d.wheel != 0 || d.hwheel != 0 {
			d.emit(MouseTapEvent{
				Timestamp: now,
				Action:    MouseScroll,
				Position:  d.pos,
				Scroll:    ScrollEvent{Timestamp: now, DeltaX: float64(d.hwheel), DeltaY: float64(d.wheel)},
			})
		}
		d.dx, d.dy, d.wheel, d.hwheel = 0, 0, 0, 0
	}
}

type mtSlot struct {
	id                     int
	x, y                   int32
	pressure, major, minor int32
	palm                   bool

	active, began, moved, ended bool
}

// touchDecoder assembles multi-touch protocol B slots into frames.
type touchDecoder struct {
	emit func(TouchFrame) int
	now  func() time.Time
	dev  inputDevice

	slots [maxSlots]mtSlot
	cur   int
}

func (d *touchDecoder) feed(typ, code uint16, value int32) {
	switch typ {
	case evAbs:
		d.feedAbs(code, value)
	case evSyn:
		switch code {
		case synReport:
			d.report()
		case synDropped:
			d.cancelAll()
		}
	}
}

func (d *touchDecoder) feedAbs(code uint16, value int32) {
	if code == absMTSlot {
		if value >= 0 && value < maxSlots {
			d.cur = int(value)
		}
		return
	}
	s := &d.slots[d.cur]
	switch code {
	case absMTTrackingID:
		if value < 0 {
			if s.active {
				s.ended = true
			}
			return
		}
		*s = mtSlot{id: int(value), active: true, began: true, x: s.x, y: s.y}
	case absMTPositionX:
		s.x, s.moved = value, true
	case absMTPositionY:
		s.y, s.moved = value, true
	case absMTPressure:
		s.pressure = value
	case absMTTouchMajor:
		s.major = value
	case absMTTouchMinor:
		s.minor = value
	case absMTToolType:
		s.palm = value == mtToolPalm
	}
}

func (d *touchDecoder) raw(s *mtSlot, phase TouchPhase) RawTouch {
	ft := event.FingerUnknown
	if s.palm {
		ft = event.FingerPalm
	}
	return RawTouch{
		ID:          s.id,
		Phase:       phase,
		X:           d.dev.x.normalize(s.x),
		Y:           d.dev.y.normalize(s.y),
		Pressure:    d.dev.pressure.normalize(s.pressure),
		MajorRadius: d.dev.x.normalize(d.dev.x.min+s.major) / 2,
		MinorRadius: d.dev.x.normalize(d.dev.x.min+s.minor) / 2,
		FingerType:  ft,
	}
}

func (d *touchDecoder) report() {
	var touches []RawTouch
	changed := false
	for i := range d.slots {
		s := &d.slots[i]
		if !s.active {
			continue
		}
		switch {
		case s.ended:
			touches = append(touches, d.raw(s, TouchEnded))
			s.active = false
			changed = true
		case s.began:
			touches = append(touches, d.raw(s, TouchBegan))
			changed = true
		case s.moved:
			touches = append(touches, d.raw(s, TouchMoved))
			changed = true
		default:
			touches = append(touches, d.raw(s, TouchStationary))
		}
		s.began, s.moved, s.ended = false, false, false
	}
	if changed {
		d.emit(TouchFrame{Timestamp: d.now(), Touches: touches})
	}
}

// cancelAll handles SYN_DROPPED: the kernel discarded events, so every
// contact is cancelled and rebuilt from the next tracking ids.
func (d *touchDecoder) cancelAll() {
	var touches []RawTouch
	for i := range d.slots {
		s := &d.slots[i]
		if s.active {
			touches = append(touches, d.raw(s, TouchCancelled))
		}
		d.slots[i] = mtSlot{}
	}
	if len(touches) > 0 {
		d.emit(TouchFrame{Timestamp: d.now(), Touches: touches})
	}
}
