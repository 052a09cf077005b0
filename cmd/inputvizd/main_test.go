package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputviz/internal/capture"
	"inputviz/internal/config"
	"inputviz/internal/health"
	"inputviz/internal/logging"
	"inputviz/internal/metrics"
	"inputviz/internal/render"
)

func TestNewLogger(t *testing.T) {
	l, err := newLogger(config.LoggingConfig{Level: "debug", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	defer l.Close()
	assert.True(t, l.Enabled(context.Background(), logging.LevelDebug))

	_, err = newLogger(config.LoggingConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	_, ok := newProvider("synthetic", nil).(*capture.Synthetic)
	assert.True(t, ok)
}

func TestServerEndpoints(t *testing.T) {
	m := metrics.NewPipelineMetrics(nil)
	checker := health.NewChecker()
	checker.RegisterFunc("keyboard", true, health.MonitorCheck(func() (bool, error) { return true, nil }))
	checker.SetReady(true)

	ts := httptest.NewServer(newServer("", m, checker).Handler)
	defer ts.Close()

	for path, want := range map[string]int{
		"/metrics": http.StatusOK,
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/health":  http.StatusOK,
		"/missing": http.StatusNotFound,
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err, path)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
		if path == "/metrics" {
			assert.Contains(t, string(body), "inputviz_uptime_seconds")
		}
	}
}

func syntheticConfig(t *testing.T) (*config.Config, *config.Loader) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.DefaultConfig()
	cfg.Capture.Provider = "synthetic"
	require.NoError(t, config.SaveConfig(cfg, cfgPath))

	loader := config.NewLoader(cfgPath)
	loaded, err := loader.Load()
	require.NoError(t, err)
	return loaded, loader
}

func snapshotLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var snaps []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var snap map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &snap))
		snaps = append(snaps, snap)
	}
	require.NotEmpty(t, snaps)
	return snaps
}

func TestRunDaemonStreamsSnapshots(t *testing.T) {
	cfg, loader := syntheticConfig(t)

	var out bytes.Buffer
	logger := logging.NewWithWriter(io.Discard, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, runDaemon(ctx, cfg, capture.NewSynthetic(), loader, logger, render.New(&out, render.ModeJSON)))

	snaps := snapshotLines(t, out.String())
	last := snaps[len(snaps)-1]
	assert.Equal(t, true, last["monitoring"])
	assert.Equal(t, false, last["visible"])
}

func TestRunDaemonRetriesWithoutPermission(t *testing.T) {
	saved := statusInterval
	statusInterval = 20 * time.Millisecond
	t.Cleanup(func() { statusInterval = saved })

	cfg, loader := syntheticConfig(t)
	provider := capture.NewSynthetic()
	for _, k := range capture.Kinds {
		provider.Deny(k, true)
	}
	grant := time.AfterFunc(100*time.Millisecond, func() {
		for _, k := range capture.Kinds {
			provider.Deny(k, false)
		}
	})
	defer grant.Stop()

	var out bytes.Buffer
	logger := logging.NewWithWriter(io.Discard, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, runDaemon(ctx, cfg, provider, loader, logger, render.New(&out, render.ModeJSON)))

	snaps := snapshotLines(t, out.String())
	assert.Equal(t, false, snaps[0]["monitoring"])
	assert.Equal(t, true, snaps[len(snaps)-1]["monitoring"])
}
