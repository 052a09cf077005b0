package logging

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestIsTypedInput(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"glyph", true},
		{"Glyph", true},
		{"label", true},
		{"chars", true},
		{"key_code", false},
		{"kind", false},
		{"glyph_count", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if got := IsTypedInput(test.key); got != test.expected {
				t.Errorf("IsTypedInput(%q) = %v, expected %v", test.key, got, test.expected)
			}
		})
	}
}

func TestLogKeysAllowsGlyphs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &Config{Level: LevelInfo, LogKeys: true})
	logger.WithGroup("key").Info("pressed", "glyph", "q")
	if !strings.Contains(buf.String(), "key.glyph=q") {
		t.Errorf("glyph should be logged with LogKeys: %q", buf.String())
	}
}

func TestJSONOutputRedactsGlyphs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &Config{Level: LevelDebug, Format: FormatJSON, Component: "keyboard"})
	logger.Info("key", "glyph", "p", "key_code", 35)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	if entry["glyph"] != "[REDACTED]" {
		t.Errorf("glyph not redacted: %v", entry["glyph"])
	}
	if entry["key_code"] != float64(35) {
		t.Errorf("key_code altered: %v", entry["key_code"])
	}
	if entry["component"] != "keyboard" {
		t.Errorf("component missing: %v", entry["component"])
	}
}

func TestGroupedGlyphRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &Config{Level: LevelInfo, Format: FormatText})
	logger.WithGroup("key").Info("pressed", "glyph", "q", "key_code", 12)
	out := buf.String()
	if !strings.Contains(out, "key.glyph="+Redacted) {
		t.Errorf("grouped glyph not redacted: %q", out)
	}
	if !strings.Contains(out, "key.key_code=12") {
		t.Errorf("key_code altered: %q", out)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "inputviz.log")
	logger, err := New(&Config{Level: LevelInfo, Output: "file", FilePath: path, MaxSize: 1})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("written")
	if err := logger.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "written") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestFileRotatorShiftsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	rotator, err := NewFileRotator(&Config{FilePath: path, MaxBackups: 2})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := fmt.Fprintf(rotator, "generation %d\n", i); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := rotator.Rotate(); err != nil {
			t.Fatalf("rotate: %v", err)
		}
	}
	if err := rotator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files := rotator.Files()
	want := []string{path, path + ".1", path + ".2"}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, files)
	}
	newest, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(newest) != "generation 3\n" {
		t.Errorf("newest backup holds %q", newest)
	}
}

func TestFileRotatorSizeTrigger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "size.log")
	rotator, err := NewFileRotator(&Config{FilePath: path, MaxSize: 1, MaxBackups: 5})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 2; i++ {
		if _, err := rotator.Write(chunk); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	rotator.Close()

	if got := rotator.Files(); len(got) != 2 {
		t.Errorf("expected one backup after exceeding 1MB, got %v", got)
	}
}

func TestFileRotatorCompressesOlderBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gz.log")
	rotator, err := NewFileRotator(&Config{FilePath: path, Compress: true, MaxBackups: 3})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	for i := 0; i < 2; i++ {
		fmt.Fprintf(rotator, "line %d\n", i)
		if err := rotator.Rotate(); err != nil {
			t.Fatalf("rotate: %v", err)
		}
	}
	rotator.Close()

	files := rotator.Files()
	if len(files) != 3 || files[1] != path+".1" || files[2] != path+".2.gz" {
		t.Fatalf("unexpected files %v", files)
	}

	f, err := os.Open(path + ".2.gz")
	if err != nil {
		t.Fatalf("open gz: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	data, _ := io.ReadAll(zr)
	if string(data) != "line 0\n" {
		t.Errorf("compressed backup holds %q", data)
	}
}

func TestFileRotatorMaxAge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "age.log")
	rotator, err := NewFileRotator(&Config{FilePath: path, MaxAge: 1})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	fmt.Fprintln(rotator, "old")
	if err := rotator.Rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	rotator.now = func() time.Time { return time.Now().Add(72 * time.Hour) }
	fmt.Fprintln(rotator, "new")
	if err := rotator.Rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	rotator.Close()

	if got := rotator.Files(); len(got) != 1 {
		t.Errorf("expected expired backups removed, got %v", got)
	}
}

func TestRecoverCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	var got any

	func() {
		defer RecoverCallback(logger, "mouse tap", func(r any) { got = r })
		panic("bad frame")
	}()

	if got != "bad frame" {
		t.Errorf("onPanic got %v", got)
	}
	if !strings.Contains(buf.String(), "where=\"mouse tap\"") {
		t.Errorf("missing where attr: %q", buf.String())
	}
}

func TestRecoverCallbackNoPanic(t *testing.T) {
	called := false
	func() {
		defer RecoverCallback(nil, "idle", func(any) { called = true })
	}()
	if called {
		t.Error("onPanic called without a panic")
	}
}

func TestCrashHandler(t *testing.T) {
	h := NewCrashHandler(t.TempDir(), "1.0.0", "inputvizd")

	func() {
		defer func() { recover() }()
		h.Recover(map[string]any{"op": "run"}, func() { panic("fatal") })
	}()

	reports, err := h.Reports()
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	if reports[0].PanicValue != "fatal" || reports[0].Version != "1.0.0" {
		t.Errorf("unexpected report: %+v", reports[0])
	}
	if reports[0].Context["op"] != "run" {
		t.Errorf("context lost: %v", reports[0].Context)
	}
}
