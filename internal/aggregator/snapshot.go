package aggregator

import (
	"time"

	"inputviz/internal/event"
)

// Snapshot is an immutable view of the aggregator. Its JSON form is
// described by docs/schema/snapshot-v1.schema.json.
type Snapshot struct {
	Seq            uint64        `json:"seq"`
	Timestamp      time.Time     `json:"timestamp"`
	Keyboard       []event.Event `json:"keyboard"`
	Mouse          []event.Event `json:"mouse"`
	Trackpad       []event.Event `json:"trackpad"`
	ActiveTypes    event.TypeSet `json:"active_types"`
	Enabled        event.TypeSet `json:"enabled_types"`
	Visible        bool          `json:"visible"`
	MinimalDisplay bool          `json:"minimal_display"`
	Monitoring     bool          `json:"monitoring"`
}

// Events returns the buffered events of type t, oldest first.
func (s *Snapshot) Events(t event.InputType) []event.Event {
	switch t {
	case event.TypeKeyboard:
		return s.Keyboard
	case event.TypeMouse:
		return s.Mouse
	case event.TypeTrackpad:
		return s.Trackpad
	default:
		return nil
	}
}

// Len returns the total number of buffered events.
func (s *Snapshot) Len() int {
	return len(s.Keyboard) + len(s.Mouse) + len(s.Trackpad)
}
