// Package logging builds the slog loggers used by inputvizd.
//
// Typed input never reaches a log sink unless explicitly allowed: attributes
// that carry key glyphs or labels are replaced before they are formatted.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Level is a slog level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format is the line encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Output names a log destination.
type Output string

const (
	OutputStderr Output = "stderr"
	OutputStdout Output = "stdout"
	OutputFile   Output = "file"
	// OutputBoth writes to stderr and the rotated file.
	OutputBoth Output = "both"
)

// Redacted replaces the value of a hidden attribute.
const Redacted = "[REDACTED]"

// Config holds the logging configuration.
type Config struct {
	Level  Level
	Format Format
	// Output is one of the Output constants; anything else means stderr.
	Output string
	// FilePath is used when Output is file or both.
	FilePath string

	// MaxSize is the size in megabytes that triggers rotation.
	MaxSize int64
	// MaxAge removes backups older than this many days.
	MaxAge int
	// MaxBackups caps the number of rotated files kept.
	MaxBackups int
	// Compress gzips backups beyond the most recent one.
	Compress bool

	AddSource bool

	// LogKeys lets glyphs and labels through to the log. Off by default so
	// typed text never lands on disk.
	LogKeys bool

	// Component is attached to every record.
	Component string
}

// DefaultConfig returns text logs to stderr at info.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     string(OutputStderr),
		FilePath:   DefaultLogPath(),
		MaxSize:    20,
		MaxAge:     14,
		MaxBackups: 3,
		Compress:   true,
		Component:  "inputvizd",
	}
}

// DefaultLogPath returns the platform log file location.
func DefaultLogPath() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "inputvizd", "inputvizd.log")
	case "windows":
		dir := os.Getenv("LOCALAPPDATA")
		if dir == "" {
			dir = os.Getenv("APPDATA")
		}
		return filepath.Join(dir, "inputvizd", "logs", "inputvizd.log")
	default:
		state := os.Getenv("XDG_STATE_HOME")
		if state == "" {
			state = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(state, "inputvizd", "inputvizd.log")
	}
}

// Logger is a slog.Logger that may own a rotated log file.
type Logger struct {
	*slog.Logger

	mu      sync.Mutex
	rotator *FileRotator
}

// New creates a logger writing to cfg.Output.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	w, rotator, err := openOutput(cfg)
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}
	return &Logger{Logger: slog.New(newHandler(w, cfg)), rotator: rotator}, nil
}

// NewWithWriter creates a logger writing to w, ignoring cfg.Output.
func NewWithWriter(w io.Writer, cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Logger{Logger: slog.New(newHandler(w, cfg))}
}

// SetDefault installs l as the process-wide slog default.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

func openOutput(cfg *Config) (io.Writer, *FileRotator, error) {
	switch Output(strings.ToLower(cfg.Output)) {
	case OutputStdout:
		return os.Stdout, nil, nil
	case OutputFile:
		r, err := NewFileRotator(cfg)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	case OutputBoth:
		r, err := NewFileRotator(cfg)
		if err != nil {
			return nil, nil, err
		}
		return io.MultiWriter(os.Stderr, r), r, nil
	default:
		return os.Stderr, nil, nil
	}
}

func newHandler(w io.Writer, cfg *Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactor(cfg.LogKeys),
	}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	}
	if cfg.Component != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}
	return h
}

// typedInputKeys are attribute keys whose values can reveal what was typed.
var typedInputKeys = map[string]bool{
	"glyph":  true,
	"glyphs": true,
	"label":  true,
	"labels": true,
	"char":   true,
	"chars":  true,
	"text":   true,
}

// redactor returns a ReplaceAttr hook hiding typed input unless logKeys is
// set. Keys match case-insensitively inside any group.
func redactor(logKeys bool) func([]string, slog.Attr) slog.Attr {
	if logKeys {
		return nil
	}
	return func(_ []string, a slog.Attr) slog.Attr {
		if IsTypedInput(a.Key) {
			a.Value = slog.StringValue(Redacted)
		}
		return a
	}
}

// IsTypedInput reports whether an attribute key is hidden by default.
func IsTypedInput(key string) bool {
	return typedInputKeys[strings.ToLower(key)]
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}

// Rotate moves the current log file aside and reopens it. It is a no-op
// for console loggers.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Rotate()
}

// ParseLevel accepts debug, info, warn (or warning) and error, in any case.
func ParseLevel(s string) (Level, error) {
	if strings.EqualFold(s, "warning") {
		return LevelWarn, nil
	}
	var level Level
	if s == "" || strings.ContainsAny(s, "+-") {
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
	return level, nil
}

// ParseFormat parses "text" or "json". Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %q", s)
	}
}
