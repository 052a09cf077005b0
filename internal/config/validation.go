package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrInvalidConfig is wrapped by validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
	// Warning marks issues that do not prevent the daemon from running.
	Warning bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidConfig) match when any entry is fatal.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig && e.HasErrors()
}

// Warnings returns only warning-level entries.
func (e ValidationErrors) Warnings() ValidationErrors {
	var out ValidationErrors
	for _, v := range e {
		if v.Warning {
			out = append(out, v)
		}
	}
	return out
}

// Errors returns only fatal entries.
func (e ValidationErrors) Errors() ValidationErrors {
	var out ValidationErrors
	for _, v := range e {
		if !v.Warning {
			out = append(out, v)
		}
	}
	return out
}

// HasErrors reports whether any entry is fatal.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RangeError reports a value outside [min, max].
func RangeError(field string, min, max any) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("value must be between %v and %v", min, max)}
}

// ValidateConfig checks c and returns ValidationErrors when anything fatal
// is found. Warnings alone do not fail validation; use Check to see them.
func ValidateConfig(c *Config) error {
	errs := Check(c)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Check returns every validation finding, warnings included.
func Check(c *Config) ValidationErrors {
	var errs ValidationErrors
	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}
	errs = append(errs, validateDisplay(&c.Display)...)
	errs = append(errs, validateKeyboard(&c.Keyboard)...)
	errs = append(errs, validateMouse(&c.Mouse)...)
	errs = append(errs, validateTrackpad(&c.Trackpad)...)
	errs = append(errs, validateCapture(&c.Capture)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	return errs
}

func positiveMs(errs *ValidationErrors, field string, v, max int) {
	if v < 1 || v > max {
		*errs = append(*errs, RangeError(field, 1, max))
	}
}

func unitRange(errs *ValidationErrors, field string, v float64) {
	if !(v > 0 && v <= 1) {
		*errs = append(*errs, RangeError(field, "0 (exclusive)", 1))
	}
}

func validateDisplay(d *DisplayConfig) ValidationErrors {
	var errs ValidationErrors
	positiveMs(&errs, "display.auto_hide_ms", d.AutoHideMs, 60_000)
	if d.MaxKeys < 1 || d.MaxKeys > 32 {
		errs = append(errs, RangeError("display.max_keys", 1, 32))
	}
	if !d.ShowKeyboard && !d.ShowMouse && !d.ShowTrackpad {
		errs = append(errs, ValidationError{
			Field:   "display",
			Message: "every input type is hidden; nothing will be displayed",
			Warning: true,
		})
	}
	return errs
}

func validateKeyboard(k *KeyboardConfig) ValidationErrors {
	var errs ValidationErrors
	positiveMs(&errs, "keyboard.duplicate_window_ms", k.DuplicateWindowMs, 1000)
	positiveMs(&errs, "keyboard.recent_window_ms", k.RecentWindowMs, 1000)
	if k.RecentSize < 1 || k.RecentSize > 100 {
		errs = append(errs, RangeError("keyboard.recent_size", 1, 100))
	}
	if k.RecentWindowMs < k.DuplicateWindowMs {
		errs = append(errs, ValidationError{
			Field:   "keyboard.recent_window_ms",
			Message: "shorter than duplicate_window_ms; the recent ring will never match",
			Warning: true,
		})
	}
	return errs
}

func validateMouse(m *MouseConfig) ValidationErrors {
	var errs ValidationErrors
	positiveMs(&errs, "mouse.double_click_ms", m.DoubleClickMs, 2000)
	positiveMs(&errs, "mouse.move_min_interval_ms", m.MoveMinIntervalMs, 10_000)
	positiveMs(&errs, "mouse.move_debounce_ms", m.MoveDebounceMs, 10_000)
	if m.MoveMinDistance <= 0 {
		errs = append(errs, ValidationError{Field: "mouse.move_min_distance", Message: "must be positive"})
	}
	switch m.MomentumScroll {
	case "show", "hide":
	default:
		errs = append(errs, ValidationError{
			Field:   "mouse.momentum_scroll",
			Message: fmt.Sprintf("invalid policy: %s (valid: show, hide)", m.MomentumScroll),
		})
	}
	return errs
}

func validateTrackpad(t *TrackpadConfig) ValidationErrors {
	var errs ValidationErrors
	positiveMs(&errs, "trackpad.tap_arm_delay_ms", t.TapArmDelayMs, 2000)
	positiveMs(&errs, "trackpad.tap_simultaneity_ms", t.TapSimultaneityMs, 1000)
	positiveMs(&errs, "trackpad.cleanup_interval_ms", t.CleanupIntervalMs, 60_000)
	positiveMs(&errs, "trackpad.stale_timeout_ms", t.StaleTimeoutMs, 60_000)
	unitRange(&errs, "trackpad.tap_epsilon", t.TapEpsilon)
	unitRange(&errs, "trackpad.pinch_threshold", t.PinchThreshold)
	unitRange(&errs, "trackpad.swipe_threshold", t.SwipeThreshold)
	unitRange(&errs, "trackpad.three_finger_threshold", t.ThreeFingerThreshold)
	unitRange(&errs, "trackpad.four_finger_threshold", t.FourFingerThreshold)
	unitRange(&errs, "trackpad.five_finger_threshold", t.FiveFingerThreshold)
	if t.RotateThreshold <= 0 || t.RotateThreshold > 3.14159 {
		errs = append(errs, RangeError("trackpad.rotate_threshold", "0 (exclusive)", "pi"))
	}
	if t.PinchDominance < 1 {
		errs = append(errs, ValidationError{Field: "trackpad.pinch_dominance", Message: "must be at least 1"})
	}
	if t.RotateDominance < 1 {
		errs = append(errs, ValidationError{Field: "trackpad.rotate_dominance", Message: "must be at least 1"})
	}
	if t.StaleTimeoutMs > 0 && t.CleanupIntervalMs > t.StaleTimeoutMs {
		errs = append(errs, ValidationError{
			Field:   "trackpad.cleanup_interval_ms",
			Message: "longer than stale_timeout_ms; stale touches will linger",
			Warning: true,
		})
	}
	if t.ThreeFingerThreshold < t.FourFingerThreshold || t.FourFingerThreshold < t.FiveFingerThreshold {
		errs = append(errs, ValidationError{
			Field:   "trackpad",
			Message: "multi-finger thresholds should not grow with finger count",
			Warning: true,
		})
	}
	return errs
}

func validateCapture(c *CaptureConfig) ValidationErrors {
	var errs ValidationErrors
	switch c.Provider {
	case "auto", "synthetic":
	default:
		errs = append(errs, ValidationError{
			Field:   "capture.provider",
			Message: fmt.Sprintf("invalid provider: %s (valid: auto, synthetic)", c.Provider),
		})
	}
	if c.QueueSize < 16 || c.QueueSize > 1<<16 {
		errs = append(errs, RangeError("capture.queue_size", 16, 1<<16))
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}
	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}
	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is %q", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}
	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{Field: "logging.max_size_mb", Message: "max size must be at least 1 MB"})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{Field: "logging.max_backups", Message: "max backups cannot be negative"})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{Field: "logging.max_age_days", Message: "max age cannot be negative"})
	}
	if l.LogKeys {
		errs = append(errs, ValidationError{
			Field:   "logging.log_keys",
			Message: "typed keys will be written to the log",
			Warning: true,
		})
	}
	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	if !m.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Listen); err != nil {
		return ValidationErrors{{Field: "metrics.listen", Message: fmt.Sprintf("invalid address: %v", err)}}
	}
	return nil
}
