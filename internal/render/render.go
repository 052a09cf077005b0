// Package render turns aggregator snapshots into console output: JSON lines
// for pipes, and a styled one-line-per-type view for terminals.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"inputviz/internal/aggregator"
	"inputviz/internal/event"
)

// Mode selects the output form.
type Mode int

const (
	ModeJSON Mode = iota
	ModePlain
	ModeStyled
)

// ParseMode accepts "json", "plain", "styled" and "auto". Auto is resolved
// against f.
func ParseMode(s string, f *os.File) (Mode, error) {
	switch strings.ToLower(s) {
	case "json":
		return ModeJSON, nil
	case "plain", "text":
		return ModePlain, nil
	case "styled":
		return ModeStyled, nil
	case "", "auto":
		return DetectMode(f), nil
	default:
		return ModeJSON, fmt.Errorf("unknown output mode %q", s)
	}
}

// DetectMode picks styled output for terminals and JSON otherwise.
func DetectMode(f *os.File) Mode {
	if f == nil {
		return ModeJSON
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return ModeStyled
	}
	return ModeJSON
}

type styles struct {
	header   lipgloss.Style
	label    lipgloss.Style
	key      lipgloss.Style
	mouse    lipgloss.Style
	gesture  lipgloss.Style
	dim      lipgloss.Style
	inactive lipgloss.Style
}

func newStyles() styles {
	return styles{
		header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		label:    lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("#6B7280")),
		key:      lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(lipgloss.Color("#1F2937")).Foreground(lipgloss.Color("#F9FAFB")),
		mouse:    lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")),
		gesture:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		inactive: lipgloss.NewStyle().Faint(true),
	}
}

// Renderer writes snapshots to an output stream.
type Renderer struct {
	w       io.Writer
	mode    Mode
	enc     *json.Encoder
	styles  styles
	lastSeq uint64
}

// New creates a renderer.
func New(w io.Writer, mode Mode) *Renderer {
	return &Renderer{w: w, mode: mode, enc: json.NewEncoder(w), styles: newStyles()}
}

// Mode returns the output mode.
func (r *Renderer) Mode() Mode { return r.mode }

// Render writes one snapshot. Snapshots not newer than the last one written
// are skipped.
func (r *Renderer) Render(s *aggregator.Snapshot) error {
	if s == nil || (r.lastSeq != 0 && s.Seq <= r.lastSeq) {
		return nil
	}
	r.lastSeq = s.Seq
	switch r.mode {
	case ModeJSON:
		return r.enc.Encode(s)
	case ModePlain:
		_, err := fmt.Fprintln(r.w, Plain(s))
		return err
	default:
		_, err := fmt.Fprintln(r.w, r.Styled(s))
		return err
	}
}

// Plain renders s as one unstyled line.
func Plain(s *aggregator.Snapshot) string {
	if !s.Visible {
		return "-"
	}
	var parts []string
	for _, t := range s.ActiveTypes.Types() {
		labels := Labels(s.Events(t), s.MinimalDisplay)
		if len(labels) == 0 {
			continue
		}
		parts = append(parts, t.String()+": "+strings.Join(labels, " "))
	}
	return strings.Join(parts, " | ")
}

// Styled renders s as a block with one row per input type.
func (r *Renderer) Styled(s *aggregator.Snapshot) string {
	st := r.styles
	rows := []string{st.header.Render(fmt.Sprintf("inputviz #%d", s.Seq))}
	for _, t := range event.AllTypes {
		name := st.label.Render(t.String())
		if !s.Enabled.Has(t) {
			rows = append(rows, name+st.inactive.Render("hidden"))
			continue
		}
		labels := Labels(s.Events(t), s.MinimalDisplay)
		if !s.ActiveTypes.Has(t) || len(labels) == 0 {
			rows = append(rows, name+st.dim.Render("·"))
			continue
		}
		styled := make([]string, len(labels))
		for i, l := range labels {
			switch t {
			case event.TypeKeyboard:
				styled[i] = st.key.Render(l)
			case event.TypeMouse:
				styled[i] = st.mouse.Render(l)
			default:
				styled[i] = st.gesture.Render(l)
			}
		}
		rows = append(rows, name+lipgloss.JoinHorizontal(lipgloss.Top, interleave(styled, " ")...))
	}
	if !s.Monitoring {
		rows = append(rows, st.inactive.Render("monitoring inactive"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func interleave(items []string, sep string) []string {
	out := make([]string, 0, len(items)*2)
	for i, it := range items {
		if i > 0 {
			out = append(out, sep)
		}
		out = append(out, it)
	}
	return out
}

// Labels returns the display text for each event. Minimal display drops
// positions and magnitudes. Key releases and bare touch frames are skipped.
func Labels(events []event.Event, minimal bool) []string {
	var out []string
	for _, e := range events {
		if l := Label(e, minimal); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Label returns the display text for one event, or "" when it has none.
func Label(e event.Event, minimal bool) string {
	switch ev := e.(type) {
	case event.KeyboardEvent:
		if !ev.IsDown {
			return ""
		}
		return ev.Label()
	case event.MouseEvent:
		return mouseLabel(ev, minimal)
	case event.TrackpadGestureEvent:
		return gestureLabel(ev.Gesture, minimal)
	case event.TrackpadTouchEvent:
		if minimal || len(ev.Touches) == 0 {
			return ""
		}
		return fmt.Sprintf("%d●", len(ev.Touches))
	}
	return ""
}

func mouseLabel(ev event.MouseEvent, minimal bool) string {
	switch ev.Kind {
	case event.MouseButtonAction:
		name := "click"
		if ev.Button != nil {
			name = ev.Button.String()
		}
		if ev.IsDoubleClick {
			name += "×2"
		}
		if minimal {
			return name
		}
		return fmt.Sprintf("%s@%.0f,%.0f", name, ev.Position.X, ev.Position.Y)
	case event.MouseScroll:
		if ev.ScrollDelta == nil {
			return "scroll"
		}
		dir := event.DirectionOf(ev.ScrollDelta.X, ev.ScrollDelta.Y)
		if minimal {
			return "scroll" + dir.Arrow()
		}
		return fmt.Sprintf("scroll%s%.0f", dir.Arrow(), ev.ScrollDelta.Len())
	case event.MouseMove:
		if minimal {
			return "move"
		}
		return fmt.Sprintf("move@%.0f,%.0f", ev.Position.X, ev.Position.Y)
	}
	return ""
}

func gestureLabel(g event.TrackpadGesture, minimal bool) string {
	t := g.Type
	var label string
	switch t.Kind {
	case event.GestureSwipe:
		label = "swipe" + t.Direction.Arrow()
	case event.GestureMultiFingerSwipe:
		label = fmt.Sprintf("%d-finger swipe%s", t.FingerCount, t.Direction.Arrow())
	case event.GestureTap:
		label = fmt.Sprintf("%d-finger tap", t.FingerCount)
	case event.GesturePinch:
		label = "pinch out"
		if g.Magnitude < 0 {
			label = "pinch in"
		}
	case event.GestureRotate:
		label = "rotate"
		if g.Rotation != nil && !minimal {
			label = fmt.Sprintf("rotate %+.0f°", *g.Rotation*180/math.Pi)
		}
	case event.GestureScroll:
		label = "scroll" + event.DirectionOf(t.DeltaX, t.DeltaY).Arrow()
	default:
		label = t.String()
	}
	if g.IsMomentumScroll && !minimal {
		label += " (momentum)"
	}
	return label
}
