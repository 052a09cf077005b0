// Package config handles configuration loading, validation and hot reload
// for inputvizd.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	Version int `toml:"version" json:"version" yaml:"version"`

	// Display controls what the consumer is told to show.
	Display DisplayConfig `toml:"display" json:"display" yaml:"display"`

	Keyboard KeyboardConfig `toml:"keyboard" json:"keyboard" yaml:"keyboard"`
	Mouse    MouseConfig    `toml:"mouse" json:"mouse" yaml:"mouse"`
	Trackpad TrackpadConfig `toml:"trackpad" json:"trackpad" yaml:"trackpad"`

	Capture CaptureConfig `toml:"capture" json:"capture" yaml:"capture"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
	Session SessionConfig `toml:"session" json:"session" yaml:"session"`
}

// DisplayConfig holds the settings the aggregator exposes to consumers.
type DisplayConfig struct {
	// AutoHideMs is how long a type stays visible after its last event.
	AutoHideMs     int  `toml:"auto_hide_ms" json:"auto_hide_ms" yaml:"auto_hide_ms"`
	MinimalDisplay bool `toml:"minimal_display" json:"minimal_display" yaml:"minimal_display"`
	MaxKeys        int  `toml:"max_keys" json:"max_keys" yaml:"max_keys"`

	ShowKeyboard bool `toml:"show_keyboard" json:"show_keyboard" yaml:"show_keyboard"`
	ShowMouse    bool `toml:"show_mouse" json:"show_mouse" yaml:"show_mouse"`
	ShowTrackpad bool `toml:"show_trackpad" json:"show_trackpad" yaml:"show_trackpad"`
}

// KeyboardConfig tunes key suppression.
type KeyboardConfig struct {
	DuplicateWindowMs int  `toml:"duplicate_window_ms" json:"duplicate_window_ms" yaml:"duplicate_window_ms"`
	RecentWindowMs    int  `toml:"recent_window_ms" json:"recent_window_ms" yaml:"recent_window_ms"`
	RecentSize        int  `toml:"recent_size" json:"recent_size" yaml:"recent_size"`
	ExemptModifiers   bool `toml:"exempt_modifiers" json:"exempt_modifiers" yaml:"exempt_modifiers"`
}

// MouseConfig tunes click and movement handling.
type MouseConfig struct {
	DoubleClickMs     int     `toml:"double_click_ms" json:"double_click_ms" yaml:"double_click_ms"`
	TrackMovement     bool    `toml:"track_movement" json:"track_movement" yaml:"track_movement"`
	MoveMinDistance   float64 `toml:"move_min_distance" json:"move_min_distance" yaml:"move_min_distance"`
	MoveMinIntervalMs int     `toml:"move_min_interval_ms" json:"move_min_interval_ms" yaml:"move_min_interval_ms"`
	MoveDebounceMs    int     `toml:"move_debounce_ms" json:"move_debounce_ms" yaml:"move_debounce_ms"`
	// MomentumScroll is "show" or "hide".
	MomentumScroll   string `toml:"momentum_scroll" json:"momentum_scroll" yaml:"momentum_scroll"`
	ContinuousScroll bool   `toml:"continuous_scroll" json:"continuous_scroll" yaml:"continuous_scroll"`
}

// TrackpadConfig tunes touch tracking and gesture thresholds. Distances are
// in normalized trackpad units.
type TrackpadConfig struct {
	TapArmDelayMs     int     `toml:"tap_arm_delay_ms" json:"tap_arm_delay_ms" yaml:"tap_arm_delay_ms"`
	TapSimultaneityMs int     `toml:"tap_simultaneity_ms" json:"tap_simultaneity_ms" yaml:"tap_simultaneity_ms"`
	TapEpsilon        float64 `toml:"tap_epsilon" json:"tap_epsilon" yaml:"tap_epsilon"`
	CleanupIntervalMs int     `toml:"cleanup_interval_ms" json:"cleanup_interval_ms" yaml:"cleanup_interval_ms"`
	StaleTimeoutMs    int     `toml:"stale_timeout_ms" json:"stale_timeout_ms" yaml:"stale_timeout_ms"`
	HideMomentum      bool    `toml:"hide_momentum" json:"hide_momentum" yaml:"hide_momentum"`

	PinchThreshold  float64 `toml:"pinch_threshold" json:"pinch_threshold" yaml:"pinch_threshold"`
	PinchDominance  float64 `toml:"pinch_dominance" json:"pinch_dominance" yaml:"pinch_dominance"`
	RotateThreshold float64 `toml:"rotate_threshold" json:"rotate_threshold" yaml:"rotate_threshold"`
	RotateDominance float64 `toml:"rotate_dominance" json:"rotate_dominance" yaml:"rotate_dominance"`
	SwipeThreshold  float64 `toml:"swipe_threshold" json:"swipe_threshold" yaml:"swipe_threshold"`

	ThreeFingerThreshold float64 `toml:"three_finger_threshold" json:"three_finger_threshold" yaml:"three_finger_threshold"`
	FourFingerThreshold  float64 `toml:"four_finger_threshold" json:"four_finger_threshold" yaml:"four_finger_threshold"`
	FiveFingerThreshold  float64 `toml:"five_finger_threshold" json:"five_finger_threshold" yaml:"five_finger_threshold"`
}

// CaptureConfig selects the event source.
type CaptureConfig struct {
	// Provider is "auto" for the platform provider or "synthetic".
	Provider  string `toml:"provider" json:"provider" yaml:"provider"`
	QueueSize int    `toml:"queue_size" json:"queue_size" yaml:"queue_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
	// Output is "stdout", "stderr", "file" or "both".
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
	// LogKeys lets key glyphs into the log.
	LogKeys bool `toml:"log_keys" json:"log_keys" yaml:"log_keys"`
}

// MetricsConfig controls the metrics and health HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Listen  string `toml:"listen" json:"listen" yaml:"listen"`
}

// SessionConfig controls restarts on session transitions.
type SessionConfig struct {
	RestartOnResume bool `toml:"restart_on_resume" json:"restart_on_resume" yaml:"restart_on_resume"`
	RestartOnUnlock bool `toml:"restart_on_unlock" json:"restart_on_unlock" yaml:"restart_on_unlock"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Display: DisplayConfig{
			AutoHideMs:   1500,
			MaxKeys:      6,
			ShowKeyboard: true,
			ShowMouse:    true,
			ShowTrackpad: true,
		},
		Keyboard: KeyboardConfig{
			DuplicateWindowMs: 50,
			RecentWindowMs:    100,
			RecentSize:        10,
			ExemptModifiers:   true,
		},
		Mouse: MouseConfig{
			DoubleClickMs:     300,
			MoveMinDistance:   4,
			MoveMinIntervalMs: 100,
			MoveDebounceMs:    50,
			MomentumScroll:    "show",
		},
		Trackpad: TrackpadConfig{
			TapArmDelayMs:        200,
			TapSimultaneityMs:    50,
			TapEpsilon:           0.02,
			CleanupIntervalMs:    500,
			StaleTimeoutMs:       1000,
			PinchThreshold:       0.03,
			PinchDominance:       3.0,
			RotateThreshold:      0.1,
			RotateDominance:      1.5,
			SwipeThreshold:       0.05,
			ThreeFingerThreshold: 0.08,
			FourFingerThreshold:  0.06,
			FiveFingerThreshold:  0.05,
		},
		Capture: CaptureConfig{
			Provider:  "auto",
			QueueSize: 1024,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "inputvizd.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
		Session: SessionConfig{
			RestartOnResume: true,
			RestartOnUnlock: true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// ResolvePath returns path, or when it is empty the first config file
// FindConfigFile locates, or ConfigPath.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if found := FindConfigFile(); found != "" {
		return found
	}
	return ConfigPath()
}

// Load reads configuration from path. A missing file yields the defaults.
// The format follows the extension; unknown extensions are auto-detected.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	path = ResolvePath(path)
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return autoDetect(data, cfg)
	}
	return nil
}

func autoDetect(data []byte, cfg *Config) error {
	if _, err := toml.Decode(string(data), cfg); err == nil {
		return nil
	}
	if err := json.Unmarshal(data, cfg); err == nil {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err == nil {
		return nil
	}
	return fmt.Errorf("unable to parse config file (tried TOML, JSON, YAML)")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies INPUTVIZ_* environment variables. Malformed
// numeric or boolean values are ignored.
func (c *Config) ApplyEnvOverrides() {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, err := strconv.Atoi(os.Getenv(name)); err == nil {
			*dst = v
		}
	}
	flag := func(name string, dst *bool) {
		if v, err := strconv.ParseBool(os.Getenv(name)); err == nil {
			*dst = v
		}
	}

	num("INPUTVIZ_AUTO_HIDE_MS", &c.Display.AutoHideMs)
	num("INPUTVIZ_MAX_KEYS", &c.Display.MaxKeys)
	flag("INPUTVIZ_MINIMAL_DISPLAY", &c.Display.MinimalDisplay)
	flag("INPUTVIZ_TRACK_MOVEMENT", &c.Mouse.TrackMovement)
	str("INPUTVIZ_MOMENTUM_SCROLL", &c.Mouse.MomentumScroll)
	str("INPUTVIZ_PROVIDER", &c.Capture.Provider)
	str("INPUTVIZ_LOG_LEVEL", &c.Logging.Level)
	str("INPUTVIZ_LOG_FORMAT", &c.Logging.Format)
	str("INPUTVIZ_LOG_PATH", &c.Logging.FilePath)
	flag("INPUTVIZ_METRICS", &c.Metrics.Enabled)
	str("INPUTVIZ_METRICS_LISTEN", &c.Metrics.Listen)

	if v := os.Getenv("INPUTVIZ_LOG_OUTPUT"); v != "" {
		c.Logging.Output = strings.ToLower(v)
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// AutoHideDelay returns Display.AutoHideMs as a duration.
func (c *Config) AutoHideDelay() time.Duration {
	return Millis(c.Display.AutoHideMs)
}

// Millis converts a millisecond setting to a duration.
func Millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
