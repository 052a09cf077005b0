// Package health reports whether the capture pipeline is doing its job.
//
// Each monitor registers a component. A monitor that could not start is
// unhealthy when it is critical and degraded otherwise, so a machine
// without a trackpad still reports a usable daemon.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status is the health of one component or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 2 * time.Second

// Result is the outcome of one check.
type Result struct {
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ns"`
	Error       string         `json:"error,omitempty"`
}

// Check computes a Result. It should honour ctx.
type Check func(ctx context.Context) Result

// Component is a named check.
type Component struct {
	Name string
	// Critical components make the overall status unhealthy when they fail.
	Critical bool
	Check    Check
	Timeout  time.Duration
}

// Checker runs registered checks and remembers their last results.
type Checker struct {
	mu         sync.RWMutex
	components map[string]*Component
	results    map[string]Result
	started    time.Time
	ready      bool
}

// NewChecker returns an empty, not-ready checker.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]*Component),
		results:    make(map[string]Result),
		started:    time.Now(),
	}
}

// Register adds or replaces a component.
func (c *Checker) Register(comp *Component) {
	if comp.Timeout <= 0 {
		comp.Timeout = DefaultTimeout
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[comp.Name] = comp
	c.results[comp.Name] = Result{Status: StatusUnknown}
}

// RegisterFunc registers check under name with the default timeout.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(&Component{Name: name, Critical: critical, Check: check})
}

// Unregister removes a component.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.components, name)
	delete(c.results, name)
}

// SetReady flips the readiness probe.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// IsReady reports the readiness probe.
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Names returns the registered component names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every component concurrently and returns the results.
func (c *Checker) Check(ctx context.Context) map[string]Result {
	c.mu.RLock()
	comps := make([]*Component, 0, len(c.components))
	for _, comp := range c.components {
		comps = append(comps, comp)
	}
	c.mu.RUnlock()

	out := make(map[string]Result, len(comps))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, comp := range comps {
		wg.Add(1)
		go func(comp *Component) {
			defer wg.Done()
			res := c.run(ctx, comp)
			mu.Lock()
			out[comp.Name] = res
			mu.Unlock()
		}(comp)
	}
	wg.Wait()
	return out
}

// CheckComponent runs one component by name.
func (c *Checker) CheckComponent(ctx context.Context, name string) (Result, bool) {
	c.mu.RLock()
	comp, ok := c.components[name]
	c.mu.RUnlock()
	if !ok {
		return Result{}, false
	}
	return c.run(ctx, comp), true
}

func (c *Checker) run(ctx context.Context, comp *Component) Result {
	ctx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Result{Status: StatusUnhealthy, Message: "check panicked", Error: fmt.Sprint(r)}
			}
		}()
		done <- comp.Check(ctx)
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Result{Status: StatusUnhealthy, Message: "check timed out", Error: ctx.Err().Error()}
	}
	res.LastChecked = start
	res.Duration = time.Since(start)

	c.mu.Lock()
	if _, still := c.components[comp.Name]; still {
		c.results[comp.Name] = res
	}
	c.mu.Unlock()
	return res
}

// Results returns a copy of the last results.
func (c *Checker) Results() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Result, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

// OverallStatus folds the last results into one status.
func (c *Checker) OverallStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	unknown, degraded := false, false
	for name, res := range c.results {
		comp := c.components[name]
		if comp == nil {
			continue
		}
		switch res.Status {
		case StatusUnhealthy:
			if comp.Critical {
				return StatusUnhealthy
			}
			degraded = true
		case StatusDegraded:
			degraded = true
		case StatusUnknown:
			if comp.Critical {
				unknown = true
			}
		}
	}
	switch {
	case unknown:
		return StatusUnknown
	case degraded:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Report is the body of the health endpoint.
type Report struct {
	Status     Status            `json:"status"`
	Ready      bool              `json:"ready"`
	Uptime     string            `json:"uptime"`
	Components map[string]Result `json:"components,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Report runs every check and summarises the process.
func (c *Checker) Report(ctx context.Context) Report {
	components := c.Check(ctx)
	c.mu.RLock()
	ready := c.ready
	uptime := time.Since(c.started).Round(time.Second)
	c.mu.RUnlock()
	return Report{
		Status:     c.OverallStatus(),
		Ready:      ready,
		Uptime:     uptime.String(),
		Components: components,
		Timestamp:  time.Now(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// LivenessHandler answers 200 while the process runs.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "alive", "timestamp": time.Now()})
	})
}

// ReadinessHandler answers 503 until SetReady(true) and while a critical
// component is unhealthy.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "timestamp": time.Now()})
			return
		}
		c.Check(r.Context())
		status := c.OverallStatus()
		code := http.StatusOK
		if status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"status": status, "ready": true, "timestamp": time.Now()})
	})
}

// HealthHandler serves the full Report.
func (c *Checker) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rep := c.Report(r.Context())
		code := http.StatusOK
		if rep.Status == StatusUnhealthy || rep.Status == StatusUnknown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, rep)
	})
}

// MonitorCheck reports a monitor's state. err is the reason the monitor is
// not running, if any.
func MonitorCheck(state func() (running bool, err error)) Check {
	return func(ctx context.Context) Result {
		running, err := state()
		switch {
		case running:
			return Result{Status: StatusHealthy, Message: "monitoring"}
		case err != nil:
			return Result{Status: StatusUnhealthy, Message: "monitoring unavailable", Error: err.Error()}
		default:
			return Result{Status: StatusUnhealthy, Message: "stopped"}
		}
	}
}

// ErrQueueSaturated is reported when the apply queue drops work.
var ErrQueueSaturated = errors.New("apply queue dropping events")

// QueueCheck degrades when the dropped counter has grown since the previous
// check.
func QueueCheck(dropped func() uint64) Check {
	var (
		mu   sync.Mutex
		last uint64
	)
	return func(ctx context.Context) Result {
		mu.Lock()
		defer mu.Unlock()
		now := dropped()
		delta := now - last
		last = now
		if delta > 0 {
			return Result{
				Status:  StatusDegraded,
				Message: "events dropped",
				Error:   ErrQueueSaturated.Error(),
				Details: map[string]any{"dropped_since_last_check": delta, "dropped_total": now},
			}
		}
		return Result{Status: StatusHealthy, Details: map[string]any{"dropped_total": now}}
	}
}
