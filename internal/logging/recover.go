package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// RecoverCallback recovers a panic raised while handling an OS input
// callback, logs it, and reports it to onPanic (which may be nil). It must be
// deferred directly:
//
//	defer logging.RecoverCallback(logger, "keyboard tap", nil)
func RecoverCallback(logger *slog.Logger, where string, onPanic func(any)) {
	r := recover()
	if r == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("input callback panicked",
		"where", where,
		"panic", fmt.Sprint(r),
		"stack", string(debug.Stack()),
	)
	if onPanic != nil {
		onPanic(r)
	}
}

// CrashReport represents information about a crash.
type CrashReport struct {
	Timestamp    time.Time      `json:"timestamp"`
	Version      string         `json:"version"`
	GOOS         string         `json:"goos"`
	GOARCH       string         `json:"goarch"`
	NumGoroutine int            `json:"num_goroutine"`
	PanicValue   string         `json:"panic_value"`
	StackTrace   string         `json:"stack_trace"`
	Component    string         `json:"component,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

// CrashHandler writes a crash report before a fatal panic unwinds the daemon.
type CrashHandler struct {
	mu        sync.Mutex
	crashDir  string
	version   string
	component string
}

// DefaultCrashDir returns the platform-specific default crash directory.
func DefaultCrashDir() string {
	return filepath.Join(filepath.Dir(DefaultLogPath()), "crashes")
}

// NewCrashHandler creates a CrashHandler writing into dir.
func NewCrashHandler(dir, version, component string) *CrashHandler {
	if dir == "" {
		dir = DefaultCrashDir()
	}
	return &CrashHandler{crashDir: dir, version: version, component: component}
}

// Dir returns the crash report directory.
func (h *CrashHandler) Dir() string {
	return h.crashDir
}

// Recover runs fn and converts a panic into a crash report. The panic is
// re-raised after the report is written.
func (h *CrashHandler) Recover(contextInfo map[string]any, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			path, err := h.Write(r, contextInfo)
			if err != nil {
				fmt.Fprintf(os.Stderr, "inputviz: write crash report: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "inputviz: crash report written to %s\n", path)
			}
			panic(r)
		}
	}()
	fn()
}

// Write records a crash report for panicValue and returns its path.
func (h *CrashHandler) Write(panicValue any, contextInfo map[string]any) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	report := CrashReport{
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		PanicValue:   fmt.Sprint(panicValue),
		StackTrace:   string(debug.Stack()),
		Component:    h.component,
		Context:      contextInfo,
	}

	if err := os.MkdirAll(h.crashDir, 0750); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	name := fmt.Sprintf("crash-%s-%s.json", report.Component, report.Timestamp.Format("20060102-150405.000"))
	path := filepath.Join(h.crashDir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Reports returns every crash report in the crash directory.
func (h *CrashHandler) Reports() ([]CrashReport, error) {
	files, err := filepath.Glob(filepath.Join(h.crashDir, "crash-*.json"))
	if err != nil {
		return nil, err
	}

	reports := make([]CrashReport, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var report CrashReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}
