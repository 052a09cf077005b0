package metrics

import (
	"net/http"
	"time"
)

// PipelineMetrics holds the counters shared by the monitors, the
// aggregator and the apply loop.
type PipelineMetrics struct {
	registry *Registry

	RawEvents     *CounterVec // label: type
	Emitted       *CounterVec // label: type
	Suppressed    *CounterVec // label: reason (repeat, duplicate, buffered)
	Gestures      *CounterVec // label: kind
	Malformed     *Counter
	TimerRaces    *Counter
	DroppedPosts  *Counter
	Panics        *Counter
	Restarts      *Counter
	ActiveTypes   *Gauge
	LiveTouches   *Gauge
	ApplyLatency  *Histogram
	UptimeSeconds *Gauge

	started time.Time
}

// NewPipelineMetrics registers the pipeline metrics in registry. A nil
// registry gets a private one namespaced "inputviz".
func NewPipelineMetrics(registry *Registry) *PipelineMetrics {
	if registry == nil {
		registry = NewRegistry("inputviz", "")
	}
	return &PipelineMetrics{
		registry: registry,
		started:  time.Now(),

		RawEvents: registry.RegisterCounterVec("raw_events_total",
			"Raw provider notifications received", "type", nil),
		Emitted: registry.RegisterCounterVec("events_total",
			"Normalized events pushed to the aggregator", "type", nil),
		Suppressed: registry.RegisterCounterVec("suppressed_total",
			"Events dropped by repeat, duplicate or buffer rules", "reason", nil),
		Gestures: registry.RegisterCounterVec("gestures_total",
			"Trackpad gestures classified", "kind", nil),
		Malformed: registry.RegisterCounter("malformed_touches_total",
			"Touches skipped for missing identity or invalid position", nil),
		TimerRaces: registry.RegisterCounter("timer_races_total",
			"Auto-hide timer firings ignored because a newer timer replaced them", nil),
		DroppedPosts: registry.RegisterCounter("dropped_posts_total",
			"Closures dropped because the apply queue was full", nil),
		Panics: registry.RegisterCounter("callback_panics_total",
			"Panics recovered in capture callbacks", nil),
		Restarts: registry.RegisterCounter("monitor_restarts_total",
			"Monitoring restarts requested", nil),
		ActiveTypes: registry.RegisterGauge("active_types",
			"Input types currently displayed", nil),
		LiveTouches: registry.RegisterGauge("live_touches",
			"Trackpad contacts currently tracked", nil),
		ApplyLatency: registry.RegisterHistogram("apply_latency_seconds",
			"Time a closure waited in the apply queue", nil, LatencyBuckets),
		UptimeSeconds: registry.RegisterGauge("uptime_seconds",
			"Seconds since the pipeline metrics were created", nil),
	}
}

// Registry returns the registry the metrics live in.
func (m *PipelineMetrics) Registry() *Registry {
	return m.registry
}

// The helpers below accept a nil receiver so components built without
// metrics need no guards.

// Raw counts one raw provider notification.
func (m *PipelineMetrics) Raw(inputType string) {
	if m != nil {
		m.RawEvents.With(inputType).Inc()
	}
}

// Emit counts one event handed to the aggregator.
func (m *PipelineMetrics) Emit(inputType string) {
	if m != nil {
		m.Emitted.With(inputType).Inc()
	}
}

// Suppress counts one dropped event.
func (m *PipelineMetrics) Suppress(reason string) {
	if m != nil {
		m.Suppressed.With(reason).Inc()
	}
}

// Gesture counts one classified gesture.
func (m *PipelineMetrics) Gesture(kind string) {
	if m != nil {
		m.Gestures.With(kind).Inc()
	}
}

// MalformedTouch counts one skipped touch.
func (m *PipelineMetrics) MalformedTouch() {
	if m != nil {
		m.Malformed.Inc()
	}
}

// TimerRace counts one stale timer firing.
func (m *PipelineMetrics) TimerRace() {
	if m != nil {
		m.TimerRaces.Inc()
	}
}

// DroppedPost counts one closure rejected by a full queue.
func (m *PipelineMetrics) DroppedPost() {
	if m != nil {
		m.DroppedPosts.Inc()
	}
}

// Panic counts one recovered callback panic.
func (m *PipelineMetrics) Panic() {
	if m != nil {
		m.Panics.Inc()
	}
}

// Restart counts one monitoring restart.
func (m *PipelineMetrics) Restart() {
	if m != nil {
		m.Restarts.Inc()
	}
}

// SetActiveTypes records how many input types are displayed.
func (m *PipelineMetrics) SetActiveTypes(n int) {
	if m != nil {
		m.ActiveTypes.Set(int64(n))
	}
}

// SetLiveTouches records how many contacts the trackpad monitor tracks.
func (m *PipelineMetrics) SetLiveTouches(n int) {
	if m != nil {
		m.LiveTouches.Set(int64(n))
	}
}

// ObserveLatency records one apply-queue wait. It matches the
// dispatch.Loop OnLatency hook signature.
func (m *PipelineMetrics) ObserveLatency(d time.Duration) {
	if m != nil {
		m.ApplyLatency.ObserveDuration(d)
	}
}

func (m *PipelineMetrics) refreshUptime() {
	m.UptimeSeconds.Set(int64(time.Since(m.started).Seconds()))
}

// Snapshot refreshes uptime and returns the registry snapshot.
func (m *PipelineMetrics) Snapshot() map[string]any {
	m.refreshUptime()
	return m.registry.Snapshot()
}

// Handler serves the registry with uptime refreshed on every scrape.
func (m *PipelineMetrics) Handler() http.Handler {
	inner := m.registry.HTTPHandler()
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		m.refreshUptime()
		inner.ServeHTTP(w, req)
	})
}
