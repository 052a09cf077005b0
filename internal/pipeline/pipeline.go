// Package pipeline wires capture, the three device monitors and the
// aggregator into one object owned by the entry point.
//
// Consumer-facing methods may be called from any goroutine. Anything that
// touches monitor or aggregator state is posted to the apply context.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inputviz/internal/aggregator"
	"inputviz/internal/capture"
	"inputviz/internal/dispatch"
	"inputviz/internal/event"
	"inputviz/internal/health"
	"inputviz/internal/keyboard"
	"inputviz/internal/metrics"
	"inputviz/internal/mouse"
	"inputviz/internal/trackpad"
)

// ErrNotStarted is returned by operations that need a running pipeline.
var ErrNotStarted = errors.New("pipeline not started")

// Settings are the consumer-facing display settings.
type Settings struct {
	ShowKeyboard   bool
	ShowMouse      bool
	ShowTrackpad   bool
	AutoHideDelay  time.Duration
	MinimalDisplay bool
	MaxKeys        int
}

// DefaultSettings shows every type with the standard auto-hide delay.
func DefaultSettings() Settings {
	return Settings{
		ShowKeyboard:  true,
		ShowMouse:     true,
		ShowTrackpad:  true,
		AutoHideDelay: aggregator.DefaultAutoHideDelay,
		MaxKeys:       keyboard.DefaultMaxBuffered,
	}
}

func (s Settings) disabled() event.TypeSet {
	var set event.TypeSet
	if !s.ShowKeyboard {
		set = set.With(event.TypeKeyboard)
	}
	if !s.ShowMouse {
		set = set.With(event.TypeMouse)
	}
	if !s.ShowTrackpad {
		set = set.With(event.TypeTrackpad)
	}
	return set
}

// Options configures New. Zero values take defaults.
type Options struct {
	// Provider defaults to the platform provider.
	Provider capture.Provider
	// Scheduler defaults to a Loop owned and started by the pipeline.
	Scheduler dispatch.Scheduler
	QueueSize int

	Keyboard keyboard.Options
	Mouse    mouse.Options
	Trackpad trackpad.Options
	Settings *Settings

	Logger  *slog.Logger
	Metrics *metrics.PipelineMetrics
	Health  *health.Checker
}

// Pipeline owns the capture provider, apply context, monitors and
// aggregator.
type Pipeline struct {
	logger   *slog.Logger
	provider capture.Provider
	sched    dispatch.Scheduler
	loop     *dispatch.Loop
	metrics  *metrics.PipelineMetrics
	health   *health.Checker

	keyboard *keyboard.Monitor
	mouse    *mouse.Monitor
	trackpad *trackpad.Monitor
	agg      *aggregator.Aggregator

	mu       sync.Mutex
	started  bool
	since    time.Time
	loopStop context.CancelFunc
	loopDone <-chan struct{}
}

// New builds a stopped pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewPipelineMetrics(nil)
	}
	provider := opts.Provider
	if provider == nil {
		provider = capture.New(logger.With("component", "capture"))
	}
	checker := opts.Health
	if checker == nil {
		checker = health.NewChecker()
	}
	settings := DefaultSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
	}

	p := &Pipeline{
		logger:   logger,
		provider: provider,
		sched:    opts.Scheduler,
		metrics:  m,
		health:   checker,
	}
	if p.sched == nil {
		p.loop = dispatch.NewLoop(opts.QueueSize, logger.With("component", "dispatch"))
		p.loop.OnLatency(m.ObserveLatency)
		p.sched = p.loop
	}

	p.agg = aggregator.New(p.sched, aggregator.Options{
		AutoHideDelay:  settings.AutoHideDelay,
		MaxKeys:        settings.MaxKeys,
		MinimalDisplay: settings.MinimalDisplay,
		Disabled:       settings.disabled(),
	}, logger.With("component", "aggregator"), m)

	p.keyboard = keyboard.New(provider, p.sched, p.agg, opts.Keyboard, logger.With("component", "keyboard"), m)
	p.mouse = mouse.New(provider, p.sched, p.agg, opts.Mouse, logger.With("component", "mouse"), m)
	p.trackpad = trackpad.New(provider, p.sched, p.agg, opts.Trackpad, logger.With("component", "trackpad"), m)

	p.registerHealth()
	return p
}

func (p *Pipeline) registerHealth() {
	p.health.RegisterFunc("keyboard", true, health.MonitorCheck(func() (bool, error) {
		return p.keyboard.IsMonitoring(), p.keyboard.Err()
	}))
	p.health.RegisterFunc("mouse", false, health.MonitorCheck(func() (bool, error) {
		return p.mouse.IsMonitoring(), p.mouse.Err()
	}))
	p.health.RegisterFunc("trackpad", false, health.MonitorCheck(func() (bool, error) {
		return p.trackpad.IsMonitoring(), p.trackpad.Err()
	}))
	if p.loop != nil {
		p.health.RegisterFunc("apply_queue", false, health.QueueCheck(p.loop.Dropped))
	}
}

// Start runs the apply loop (when owned) and starts the monitors. It fails
// only when no monitor could start; the pipeline is still started then, so
// RestartMonitoring can retry once permissions are granted. Partial
// availability is reported by CheckStatus and the health checker.
//
// Cancelling ctx does not stop the owned loop; Stop does. A stopped
// pipeline may be started again.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if p.loop != nil {
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		p.loopStop = cancel
		p.loopDone = p.loop.Start(loopCtx)
	}
	p.started = true
	p.since = time.Now()

	err := p.startMonitors()
	p.health.SetReady(true)
	return err
}

func (p *Pipeline) startMonitors() error {
	errs := []error{p.keyboard.Start(), p.mouse.Start(), p.trackpad.Start()}
	active := p.IsMonitoringActive()
	p.sched.Post(func() { p.agg.SetMonitoring(active) })

	if active {
		for _, err := range errs {
			if err != nil {
				p.logger.Info("partial monitoring", "error", err)
			}
		}
		return nil
	}
	return fmt.Errorf("start pipeline: %w", errors.Join(errs...))
}

func (p *Pipeline) stopMonitors() {
	p.keyboard.Stop()
	p.mouse.Stop()
	p.trackpad.Stop()
}

// Stop removes every hook, clears the display and pauses the owned loop
// once everything queued has been applied. Idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	p.health.SetReady(false)

	p.stopMonitors()
	p.sched.Post(func() {
		p.agg.ClearAll()
		p.agg.SetMonitoring(false)
	})
	if p.loop != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := p.loop.Sync(ctx); err != nil {
			p.logger.Warn("apply queue did not drain", "error", err)
		}
		cancel()
		p.loopStop()
		<-p.loopDone
	}
	p.logger.Info("pipeline stopped", "uptime", time.Since(p.since).Round(time.Second))
}

// RestartMonitoring tears down and reinstalls every hook. Callers use it
// after permissions change or the OS invalidates a tap.
func (p *Pipeline) RestartMonitoring() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return ErrNotStarted
	}
	p.metrics.Restart()
	p.stopMonitors()
	err := p.startMonitors()
	p.logger.Info("monitoring restarted", "active", p.IsMonitoringActive())
	return err
}

// IsMonitoringActive reports whether at least one monitor is running.
func (p *Pipeline) IsMonitoringActive() bool {
	return p.keyboard.IsMonitoring() || p.mouse.IsMonitoring() || p.trackpad.IsMonitoring()
}

// MonitorStatus is one monitor's state.
type MonitorStatus struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

func monitorStatus(running bool, err error) MonitorStatus {
	s := MonitorStatus{Running: running}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Status summarises the monitors.
type Status struct {
	Keyboard MonitorStatus `json:"keyboard"`
	Mouse    MonitorStatus `json:"mouse"`
	Trackpad MonitorStatus `json:"trackpad"`
	Active   bool          `json:"active"`
}

// CheckStatus reads the monitors' state, refreshes the monitoring flag
// seen by consumers and logs anything not running.
func (p *Pipeline) CheckStatus() Status {
	st := Status{
		Keyboard: monitorStatus(p.keyboard.IsMonitoring(), p.keyboard.Err()),
		Mouse:    monitorStatus(p.mouse.IsMonitoring(), p.mouse.Err()),
		Trackpad: monitorStatus(p.trackpad.IsMonitoring(), p.trackpad.Err()),
	}
	st.Active = st.Keyboard.Running || st.Mouse.Running || st.Trackpad.Running
	p.sched.Post(func() { p.agg.SetMonitoring(st.Active) })

	for name, ms := range map[string]MonitorStatus{"keyboard": st.Keyboard, "mouse": st.Mouse, "trackpad": st.Trackpad} {
		if !ms.Running {
			p.logger.Debug("monitor not running", "monitor", name, "error", ms.Error)
		}
	}
	return st
}

// Snapshot returns the latest aggregator state.
func (p *Pipeline) Snapshot() *aggregator.Snapshot { return p.agg.Snapshot() }

// Subscribe streams snapshots. See aggregator.Aggregator.Subscribe.
func (p *Pipeline) Subscribe() (<-chan *aggregator.Snapshot, func()) { return p.agg.Subscribe() }

// ActiveTypes returns the types currently displayed.
func (p *Pipeline) ActiveTypes() event.TypeSet { return p.agg.ActiveTypes() }

// ClearAll empties every buffer.
func (p *Pipeline) ClearAll() {
	p.sched.Post(p.agg.ClearAll)
}

// ApplySettings updates the display settings.
func (p *Pipeline) ApplySettings(s Settings) {
	p.sched.Post(func() {
		p.agg.SetTypeEnabled(event.TypeKeyboard, s.ShowKeyboard)
		p.agg.SetTypeEnabled(event.TypeMouse, s.ShowMouse)
		p.agg.SetTypeEnabled(event.TypeTrackpad, s.ShowTrackpad)
		p.agg.SetAutoHideDelay(s.AutoHideDelay)
		p.agg.SetMinimalDisplay(s.MinimalDisplay)
		if s.MaxKeys > 0 {
			p.agg.SetMaxKeys(s.MaxKeys)
		}
	})
}

// ApplyTuning replaces the monitors' thresholds without restarting them.
func (p *Pipeline) ApplyTuning(kb keyboard.Options, ms mouse.Options, tp trackpad.Options) {
	p.sched.Post(func() {
		p.keyboard.SetOptions(kb)
		p.mouse.SetOptions(ms)
		p.trackpad.SetOptions(tp)
	})
}

// Sync waits until everything posted so far has been applied. It returns
// immediately for an external scheduler, and ErrNotStarted when the owned
// loop is paused by Stop.
func (p *Pipeline) Sync(ctx context.Context) error {
	if p.loop == nil {
		return nil
	}
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	return p.loop.Sync(ctx)
}

// Provider returns the capture provider.
func (p *Pipeline) Provider() capture.Provider { return p.provider }

// Metrics returns the pipeline counters.
func (p *Pipeline) Metrics() *metrics.PipelineMetrics { return p.metrics }

// Health returns the health checker.
func (p *Pipeline) Health() *health.Checker { return p.health }
