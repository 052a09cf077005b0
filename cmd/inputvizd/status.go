package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"inputviz/internal/capture"
	"inputviz/internal/config"
	"inputviz/internal/sessionwatch"
)

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	path := config.ResolvePath(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Println("=== inputvizd Status ===")
	fmt.Println()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Config: %s (not found, using defaults)\n", path)
	} else {
		fmt.Printf("Config: %s\n", path)
	}
	for _, f := range config.Check(cfg) {
		level := "error"
		if f.Warning {
			level = "warning"
		}
		fmt.Printf("  %s: %s: %s\n", level, f.Field, f.Message)
	}
	fmt.Println()

	provider := newProvider(cfg.Capture.Provider, slog.New(slog.DiscardHandler))
	fmt.Printf("Capture (%s provider):\n", cfg.Capture.Provider)
	for _, k := range capture.Kinds {
		ok, reason := provider.Available(k)
		state := "available"
		if !ok {
			state = "UNAVAILABLE"
		}
		if reason != "" {
			fmt.Printf("  %-9s %s (%s)\n", k, state, reason)
		} else {
			fmt.Printf("  %-9s %s\n", k, state)
		}
	}
	fmt.Println()

	session := "supported"
	if src, err := sessionwatch.NewSource(); err != nil {
		session = err.Error()
	} else {
		src.Close()
	}
	fmt.Printf("Session watching: %s\n", session)

	if cfg.Metrics.Enabled {
		fmt.Printf("Metrics: http://%s/metrics\n", cfg.Metrics.Listen)
	} else {
		fmt.Println("Metrics: disabled")
	}
	return nil
}
