//go:build linux

package capture

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputviz/internal/event"
)

func fixedNow() time.Time { return time.Unix(1000, 0) }

type feedFunc func(typ, code uint16, value int32)

func (f feedFunc) feed(typ, code uint16, value int32) { f(typ, code, value) }

func TestParseEvents(t *testing.T) {
	buf := make([]byte, eventSize*2)
	base := eventSize - 8
	binary.LittleEndian.PutUint16(buf[base:], evKey)
	binary.LittleEndian.PutUint16(buf[base+2:], 30)
	binary.LittleEndian.PutUint32(buf[base+4:], 1)
	binary.LittleEndian.PutUint16(buf[eventSize+base:], evSyn)

	type rec struct {
		typ, code uint16
		value     int32
	}
	var got []rec
	parseEvents(buf, feedFunc(func(typ, code uint16, value int32) {
		got = append(got, rec{typ, code, value})
	}))
	require.Len(t, got, 2)
	assert.Equal(t, rec{evKey, 30, 1}, got[0])
	assert.Equal(t, rec{evSyn, synReport, 0}, got[1])
}

func TestKeyDecoder_ModifiersAndRepeat(t *testing.T) {
	var got []KeyTapEvent
	d := &keyDecoder{emit: func(ev KeyTapEvent) int { got = append(got, ev); return 1 }, now: fixedNow}

	d.feed(evKey, 42, 1) // left shift down
	d.feed(evKey, 30, 1) // a down
	d.feed(evKey, 30, 2) // a repeat
	d.feed(evKey, 30, 0) // a up
	d.feed(evKey, 42, 0) // left shift up
	d.feed(evKey, btnLeft, 1)

	require.Len(t, got, 5)
	assert.Equal(t, KeyShift, got[0].KeyCode)
	assert.True(t, got[0].Flags.Has(event.ModShift))
	assert.Equal(t, KeyA, got[1].KeyCode)
	assert.True(t, got[1].Flags.Has(event.ModShift))
	assert.True(t, got[2].IsRepeat)
	assert.Equal(t, KeyUp, got[3].Action)
	assert.False(t, got[4].Flags.Has(event.ModShift))
}

func TestKeyDecoder_CapsLockToggles(t *testing.T) {
	var got []KeyTapEvent
	d := &keyDecoder{emit: func(ev KeyTapEvent) int { got = append(got, ev); return 1 }, now: fixedNow}

	d.feed(evKey, 58, 1)
	d.feed(evKey, 58, 0)
	assert.True(t, got[1].Flags.Has(event.ModCapsLock))
	d.feed(evKey, 58, 1)
	assert.False(t, got[2].Flags.Has(event.ModCapsLock))
}

func TestMouseDecoder(t *testing.T) {
	var got []MouseTapEvent
	d := &mouseDecoder{emit: func(ev MouseTapEvent) int { got = append(got, ev); return 1 }, now: fixedNow}

	d.feed(evRel, relX, 5)
	d.feed(evRel, relY, -2)
	d.feed(evSyn, synReport, 0)
	d.feed(evKey, btnRight, 1)
	d.feed(evRel, relWheel, 1)
	d.feed(evSyn, synReport, 0)

	require.Len(t, got, 3)
	assert.Equal(t, MouseMoved, got[0].Action)
	assert.Equal(t, event.Point{X: 5, Y: -2}, got[0].Position)
	assert.Equal(t, MouseDown, got[1].Action)
	assert.Equal(t, 1, got[1].Button)
	assert.Equal(t, MouseScroll, got[2].Action)
	assert.Equal(t, 1.0, got[2].Scroll.DeltaY)
	assert.False(t, got[2].Scroll.Continuous)
}

func TestTouchDecoder_SlotLifecycle(t *testing.T) {
	var got []TouchFrame
	d := &touchDecoder{
		emit: func(fr TouchFrame) int { got = append(got, fr); return 1 },
		now:  fixedNow,
		dev:  inputDevice{x: axis{0, 1000}, y: axis{0, 500}, pressure: axis{0, 255}},
	}

	d.feed(evAbs, absMTSlot, 0)
	d.feed(evAbs, absMTTrackingID, 7)
	d.feed(evAbs, absMTPositionX, 500)
	d.feed(evAbs, absMTPositionY, 250)
	d.feed(evSyn, synReport, 0)

	d.feed(evAbs, absMTPositionX, 600)
	d.feed(evSyn, synReport, 0)

	// Nothing changed: no frame.
	d.feed(evSyn, synReport, 0)

	d.feed(evAbs, absMTTrackingID, -1)
	d.feed(evSyn, synReport, 0)

	require.Len(t, got, 3)
	assert.Equal(t, TouchBegan, got[0].Touches[0].Phase)
	assert.Equal(t, 7, got[0].Touches[0].ID)
	assert.InDelta(t, 0.5, got[0].Touches[0].X, 1e-9)
	assert.InDelta(t, 0.5, got[0].Touches[0].Y, 1e-9)
	assert.Equal(t, TouchMoved, got[1].Touches[0].Phase)
	assert.InDelta(t, 0.6, got[1].Touches[0].X, 1e-9)
	assert.Equal(t, TouchEnded, got[2].Touches[0].Phase)
}

func TestTouchDecoder_DroppedCancels(t *testing.T) {
	var got []TouchFrame
	d := &touchDecoder{
		emit: func(fr TouchFrame) int { got = append(got, fr); return 1 },
		now:  fixedNow,
		dev:  inputDevice{x: axis{0, 100}, y: axis{0, 100}},
	}
	d.feed(evAbs, absMTTrackingID, 1)
	d.feed(evSyn, synReport, 0)
	d.feed(evSyn, synDropped, 0)

	require.Len(t, got, 2)
	assert.Equal(t, TouchCancelled, got[1].Touches[0].Phase)
}

func TestAxisNormalize(t *testing.T) {
	assert.Equal(t, 0.0, axis{}.normalize(10))
	assert.InDelta(t, 0.25, axis{100, 500}.normalize(200), 1e-9)
}
