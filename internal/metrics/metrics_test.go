package metrics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabels_String(t *testing.T) {
	assert.Equal(t, "", Labels(nil).String())
	assert.Equal(t, `{kind="pinch",type="trackpad"}`, Labels{"type": "trackpad", "kind": "pinch"}.String())
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistry("inputviz", "test")
	a := r.RegisterCounter("x_total", "x", nil)
	b := r.RegisterCounter("x_total", "x", nil)
	assert.Same(t, a, b)
	assert.Equal(t, "inputviz_test_x_total", a.Name())
	assert.Same(t, a, r.GetCounter("x_total"))
	assert.Nil(t, r.GetGauge("missing"))
}

func TestCounterVec(t *testing.T) {
	v := NewCounterVec("events_total", "events", "type", nil)
	v.With("mouse").Inc()
	v.With("mouse").Add(2)
	v.With("keyboard").Inc()

	assert.Equal(t, uint64(3), v.Value("mouse"))
	assert.Equal(t, uint64(0), v.Value("trackpad"))
	assert.Equal(t, uint64(4), v.Total())
}

func TestHistogram_BucketsInclusive(t *testing.T) {
	h := NewHistogram("h", "h", nil, []float64{2, 1})
	h.Observe(0.5)
	h.Observe(1)
	h.Observe(1.5)
	h.Observe(3)

	counts, sum, count := h.cumulative()
	assert.Equal(t, []uint64{2, 3, 4}, counts)
	assert.InDelta(t, 6.0, sum, 1e-9)
	assert.Equal(t, uint64(4), count)
	assert.InDelta(t, 1.5, h.Mean(), 1e-9)
}

func TestWritePrometheus(t *testing.T) {
	r := NewRegistry("inputviz", "")
	r.RegisterCounter("b_total", "second", nil).Add(7)
	r.RegisterCounter("a_total", "first", nil).Inc()
	r.RegisterCounterVec("gestures_total", "gestures", "kind", nil).With("swipe").Inc()
	r.RegisterGauge("active_types", "active", nil).Set(2)
	r.RegisterHistogram("lat_seconds", "lat", nil, []float64{0.5}).Observe(0.25)

	var buf bytes.Buffer
	require.NoError(t, r.WritePrometheus(&buf))
	out := buf.String()

	assert.Less(t, strings.Index(out, "inputviz_a_total"), strings.Index(out, "inputviz_b_total"))
	assert.Contains(t, out, "# TYPE inputviz_a_total counter\n")
	assert.Contains(t, out, "inputviz_b_total 7\n")
	assert.Contains(t, out, `inputviz_gestures_total{kind="swipe"} 1`)
	assert.Contains(t, out, "inputviz_active_types 2\n")
	assert.Contains(t, out, `inputviz_lat_seconds_bucket{le="0.5"} 1`)
	assert.Contains(t, out, `inputviz_lat_seconds_bucket{le="+Inf"} 1`)
	assert.Contains(t, out, "inputviz_lat_seconds_count 1\n")
}

func TestHTTPHandler_NegotiatesJSON(t *testing.T) {
	r := NewRegistry("inputviz", "")
	r.RegisterCounter("x_total", "x", nil).Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.EqualValues(t, 1, decoded["inputviz_x_total"])

	rec = httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "inputviz_x_total 1")
}

func TestPipelineMetrics(t *testing.T) {
	m := NewPipelineMetrics(NewRegistry("inputviz", ""))
	m.Raw("keyboard")
	m.Raw("keyboard")
	m.Suppress("repeat")
	m.Gesture("pinch")
	m.TimerRace()
	m.SetActiveTypes(2)
	m.ObserveLatency(200 * time.Microsecond)

	assert.Equal(t, uint64(2), m.RawEvents.Value("keyboard"))
	assert.Equal(t, uint64(1), m.Suppressed.Value("repeat"))
	assert.Equal(t, uint64(1), m.Gestures.Value("pinch"))
	assert.Equal(t, uint64(1), m.TimerRaces.Value())
	assert.Equal(t, int64(2), m.ActiveTypes.Value())
	assert.Equal(t, uint64(1), m.ApplyLatency.Count())

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap[`inputviz_raw_events_total{type="keyboard"}`])
	assert.Contains(t, snap, "inputviz_uptime_seconds")
}

func TestPipelineMetrics_NilReceiver(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.Raw("mouse")
		m.Emit("mouse")
		m.Suppress("duplicate")
		m.Gesture("tap")
		m.MalformedTouch()
		m.TimerRace()
		m.DroppedPost()
		m.Panic()
		m.Restart()
		m.SetActiveTypes(1)
		m.SetLiveTouches(1)
		m.ObserveLatency(time.Millisecond)
	})
}

func TestPipelineMetrics_Handler(t *testing.T) {
	m := NewPipelineMetrics(nil)
	m.Restart()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "inputviz_monitor_restarts_total 1")
	assert.Contains(t, body, "inputviz_uptime_seconds")
}
