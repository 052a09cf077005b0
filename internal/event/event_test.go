package event

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeSet(t *testing.T) {
	var s TypeSet
	assert.True(t, s.Empty())

	s = s.With(TypeTrackpad).With(TypeKeyboard)
	assert.True(t, s.Has(TypeKeyboard))
	assert.False(t, s.Has(TypeMouse))
	assert.Equal(t, []InputType{TypeKeyboard, TypeTrackpad}, s.Types())

	s = s.Without(TypeKeyboard).Without(TypeKeyboard)
	assert.Equal(t, []InputType{TypeTrackpad}, s.Types())

	data, err := json.Marshal(TypeSet(0).With(TypeMouse))
	require.NoError(t, err)
	assert.JSONEq(t, `["mouse"]`, string(data))
}

func TestParseInputType(t *testing.T) {
	for _, it := range AllTypes {
		got, err := ParseInputType(it.String())
		require.NoError(t, err)
		assert.Equal(t, it, got)
	}
	_, err := ParseInputType("joystick")
	assert.Error(t, err)
}

func TestModifierSet_DisplayOrder(t *testing.T) {
	s := ModifierSet(0).With(ModCommand).With(ModShift).With(ModControl).With(ModFunction)
	assert.Equal(t, "fn⌃⇧⌘", s.Glyphs())
	assert.Equal(t, []string{"function", "control", "shift", "command"}, s.Names())
	assert.False(t, s.Without(ModShift).Has(ModShift))
}

func TestKeyboardEvent_Label(t *testing.T) {
	e := KeyboardEvent{KeyCode: 0, Glyph: "A", Modifiers: ModifierSet(0).With(ModCommand)}
	assert.Equal(t, "⌘A", e.Label())

	e = KeyboardEvent{KeyCode: 0x10042}
	assert.Equal(t, "#65602", e.Label())
}

func TestDirectionOf(t *testing.T) {
	tests := []struct {
		dx, dy float64
		want   Direction
	}{
		{0, -0.1, DirectionUp},
		{0, 0.1, DirectionDown},
		{0.2, 0.1, DirectionRight},
		{-0.2, 0.1, DirectionLeft},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DirectionOf(tt.dx, tt.dy), "delta (%v, %v)", tt.dx, tt.dy)
	}
}

func TestPoint(t *testing.T) {
	p := Point{X: 3, Y: 4}
	assert.Equal(t, 5.0, p.Len())
	assert.Equal(t, 5.0, Point{}.Distance(p))
	assert.Equal(t, Point{X: 1.5, Y: 2}, p.Scale(0.5))
	assert.Equal(t, Point{X: 2, Y: 3}, p.Sub(Point{X: 1, Y: 1}))
}

func TestMouseEvent_Category(t *testing.T) {
	right := ButtonRight
	assert.Equal(t, "button:right", MouseEvent{Kind: MouseButtonAction, Button: &right}.Category())
	assert.Equal(t, "scroll", MouseEvent{Kind: MouseScroll}.Category())
	assert.Equal(t, "move", MouseEvent{Kind: MouseMove}.Category())
}

func TestButtonFromNumber(t *testing.T) {
	b, ok := ButtonFromNumber(2)
	assert.True(t, ok)
	assert.Equal(t, ButtonMiddle, b)
	_, ok = ButtonFromNumber(9)
	assert.False(t, ok)
}

func TestGestureJSON_ScrollCarriesDeltas(t *testing.T) {
	rot := math.Pi / 4
	ev := TrackpadGestureEvent{Gesture: TrackpadGesture{
		ID:               NewID(),
		Timestamp:        time.Unix(10, 0).UTC(),
		Type:             Scroll(2, 0, -5),
		IsMomentumScroll: true,
		Rotation:         &rot,
	}}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "trackpad_gesture", decoded["type"])
	gesture := decoded["gesture"].(map[string]any)
	assert.Equal(t, "scroll", gesture["kind"])
	assert.Equal(t, -5.0, gesture["delta_y"])
	assert.Equal(t, 0.0, gesture["delta_x"])
	assert.Equal(t, true, decoded["is_momentum_scroll"])
	assert.Equal(t, []any{}, decoded["touches"])
}

func TestKeyboardJSON_NullGlyph(t *testing.T) {
	data, err := json.Marshal(KeyboardEvent{ID: NewID(), KeyCode: 0x10042, IsDown: true})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["glyph"])
	assert.Equal(t, []any{}, decoded["modifiers"])
}

func TestCloneTouches(t *testing.T) {
	assert.Nil(t, CloneTouches(nil))
	in := []FingerTouch{{ID: 1}}
	out := CloneTouches(in)
	out[0].ID = 2
	assert.Equal(t, 1, in[0].ID)
}
