// Command capture-test is a manual probe for the platform capture provider.
//
// It reports which input kinds can be captured, installs one tap per kind
// and prints per-second notification counts until interrupted with Ctrl+C.
// Key codes and glyphs are never printed.
//
// Usage:
//
//	go build -o capture-test ./tools/capture-test
//	./capture-test
//
// Requirements:
//   - macOS: Accessibility and Input Monitoring permission for the terminal
//   - Linux: read access to /dev/input/event* (the input group)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"inputviz/internal/capture"
)

type counts struct {
	keys, mouse, scroll, frames, gestures atomic.Uint64
}

func main() {
	fmt.Println("Capture Provider Test")
	fmt.Println("=====================")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	provider := capture.New(logger)

	anyAvailable := false
	for _, k := range capture.Kinds {
		ok, reason := provider.Available(k)
		fmt.Printf("%-9s available=%v %s\n", k, ok, reason)
		anyAvailable = anyAvailable || ok
	}
	fmt.Println()
	if !anyAvailable {
		fmt.Println("ERROR: nothing can be captured with the current permissions")
		os.Exit(1)
	}

	var c counts
	var handles []capture.Handle

	if h, err := provider.RegisterKeyTap(capture.MaskKeys, func(capture.KeyTapEvent) { c.keys.Add(1) }); err != nil {
		fmt.Printf("keyboard tap: %v\n", err)
	} else {
		handles = append(handles, h)
	}
	if h, err := provider.RegisterMouseTap(capture.MaskMouse, func(ev capture.MouseTapEvent) {
		if ev.Action == capture.MouseScroll {
			c.scroll.Add(1)
			return
		}
		c.mouse.Add(1)
	}); err != nil {
		fmt.Printf("mouse tap: %v\n", err)
	} else {
		handles = append(handles, h)
	}
	if h, err := provider.RegisterTouchSource(capture.TouchFuncs{
		Touches: func(capture.TouchFrame) { c.frames.Add(1) },
		Scroll:  func(capture.ScrollEvent) { c.scroll.Add(1) },
		Gesture: func(capture.PlatformGesture) { c.gestures.Add(1) },
	}); err != nil {
		fmt.Printf("touch source: %v\n", err)
	} else {
		handles = append(handles, h)
	}
	defer func() {
		for _, h := range handles {
			provider.Unregister(h)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Capturing. Type, click, scroll and touch the trackpad; Ctrl+C to stop.")
	fmt.Println()
	fmt.Printf("%8s %8s %8s %8s %8s %8s\n", "elapsed", "keys", "mouse", "scroll", "frames", "gestures")

	start := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Println("Stopped.")
			return
		case <-ticker.C:
			fmt.Printf("%8s %8d %8d %8d %8d %8d\n",
				time.Since(start).Round(time.Second),
				c.keys.Swap(0), c.mouse.Swap(0), c.scroll.Swap(0), c.frames.Swap(0), c.gestures.Swap(0))
		}
	}
}
