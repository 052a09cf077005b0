package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"inputviz/internal/capture"
	"inputviz/internal/demo"
	"inputviz/internal/pipeline"
	"inputviz/internal/render"
)

func cmdDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	output := fs.String("output", "auto", "snapshot output: json, plain, styled or auto")
	verbose := fs.Bool("v", false, "print each scripted step to stderr")
	fs.Parse(args)

	mode, err := render.ParseMode(*output, os.Stdout)
	if err != nil {
		return err
	}
	out := render.New(os.Stdout, mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	provider := capture.NewSynthetic()
	settings := pipeline.DefaultSettings()
	p := pipeline.New(pipeline.Options{
		Provider: provider,
		Settings: &settings,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()
	p.ClearAll()

	snaps, cancel := p.Subscribe()
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range snaps {
			if err := out.Render(snap); err != nil {
				return
			}
		}
	}()

	var onStep func(demo.Step)
	if *verbose {
		onStep = func(s demo.Step) { fmt.Fprintf(os.Stderr, "%6s  %s\n", s.At, s.Name) }
	}
	if err := demo.Play(ctx, provider, demo.NewWallClock(), demo.Script(), onStep); err != nil {
		return err
	}

	// Let the last gesture auto-hide so the final snapshot is empty.
	select {
	case <-ctx.Done():
	case <-time.After(settings.AutoHideDelay + 200*time.Millisecond):
	}
	if err := p.Sync(context.Background()); err != nil {
		return err
	}
	cancel()
	<-done
	return nil
}
