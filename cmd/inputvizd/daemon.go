package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inputviz/internal/capture"
	"inputviz/internal/config"
	"inputviz/internal/health"
	"inputviz/internal/logging"
	"inputviz/internal/metrics"
	"inputviz/internal/pipeline"
	"inputviz/internal/render"
	"inputviz/internal/sessionwatch"
)

// statusInterval is how often the daemon refreshes monitor state and
// retries monitors that are not running.
var statusInterval = 5 * time.Second

func cmdRun(name string, args []string, defaultOutput string) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	output := fs.String("output", defaultOutput, "snapshot output: json, plain, styled or auto")
	fs.Parse(args)

	mode, err := render.ParseMode(*output, os.Stdout)
	if err != nil {
		return err
	}

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	for _, w := range config.Check(cfg).Warnings() {
		logger.Warn("config warning", "field", w.Field, "message", w.Message)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crash := logging.NewCrashHandler("", version, "inputvizd")
	var runErr error
	crash.Recover(map[string]any{"command": name, "config": loader.Path()}, func() {
		runErr = runDaemon(ctx, cfg, newProvider(cfg.Capture.Provider, logger.Logger), loader, logger, render.New(os.Stdout, mode))
	})
	return runErr
}

func newProvider(kind string, logger *slog.Logger) capture.Provider {
	if kind == "synthetic" {
		return capture.NewSynthetic()
	}
	return capture.New(logger.With("component", "capture"))
}

func sessionOptions(c config.SessionConfig) sessionwatch.Options {
	return sessionwatch.Options{RestartOnResume: c.RestartOnResume, RestartOnUnlock: c.RestartOnUnlock}
}

func runDaemon(ctx context.Context, cfg *config.Config, provider capture.Provider, loader *config.Loader, logger *logging.Logger, out *render.Renderer) error {
	m := metrics.NewPipelineMetrics(nil)
	checker := health.NewChecker()

	opts := pipeline.OptionsFromConfig(cfg)
	opts.Provider = provider
	opts.Logger = logger.Logger
	opts.Metrics = m
	opts.Health = checker
	p := pipeline.New(opts)

	if err := p.Start(ctx); err != nil {
		st := p.CheckStatus()
		logger.Warn("no input can be captured yet; retrying",
			"every", statusInterval,
			"keyboard", st.Keyboard.Error, "mouse", st.Mouse.Error, "trackpad", st.Trackpad.Error)
	} else {
		logger.Info("monitoring started", "config", loader.Path(), "provider", cfg.Capture.Provider)
	}
	defer p.Stop()

	if cfg.Metrics.Enabled {
		srv := newServer(cfg.Metrics.Listen, m, checker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", cfg.Metrics.Listen, "error", err)
			}
		}()
		defer shutdownServer(srv, logger.Logger)
		logger.Info("metrics listening", "addr", cfg.Metrics.Listen)
	}

	var watcher *sessionwatch.Watcher
	if src, err := sessionwatch.NewSource(); err != nil {
		logger.Debug("session watching unavailable", "error", err)
	} else {
		watcher = sessionwatch.New(src, p, sessionOptions(cfg.Session), logger.With("component", "session"))
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("session watcher stopped", "error", err)
			}
		}()
	}

	loader.OnChange(func(_, next *config.Config) {
		p.ApplyConfig(next)
		if watcher != nil {
			watcher.SetOptions(sessionOptions(next.Session))
		}
		logger.Info("configuration reloaded", "path", loader.Path())
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload disabled", "error", err)
	}
	defer loader.Close()

	hup := make(chan os.Signal, 1)
	notifyReload(hup)
	defer signal.Stop(hup)

	snaps, cancel := p.Subscribe()
	defer cancel()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case snap := <-snaps:
			if err := out.Render(snap); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
		case <-hup:
			if err := logger.Rotate(); err != nil {
				logger.Warn("log rotation failed", "error", err)
			}
			loader.Reload()
		case err := <-loader.Errors():
			logger.Warn("config reload rejected", "error", err)
		case <-ticker.C:
			if st := p.CheckStatus(); !st.Active {
				logger.Debug("monitoring inactive; restarting")
				if err := p.RestartMonitoring(); err != nil {
					logger.Debug("restart failed", "error", err)
				} else {
					logger.Info("monitoring started", "provider", cfg.Capture.Provider)
				}
			}
		}
	}
}
