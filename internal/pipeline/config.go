package pipeline

import (
	"inputviz/internal/config"
	"inputviz/internal/keyboard"
	"inputviz/internal/mouse"
	"inputviz/internal/trackpad"
)

// SettingsFromConfig extracts the display settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	d := cfg.Display
	return Settings{
		ShowKeyboard:   d.ShowKeyboard,
		ShowMouse:      d.ShowMouse,
		ShowTrackpad:   d.ShowTrackpad,
		AutoHideDelay:  cfg.AutoHideDelay(),
		MinimalDisplay: d.MinimalDisplay,
		MaxKeys:        d.MaxKeys,
	}
}

// KeyboardOptions converts the keyboard section.
func KeyboardOptions(c config.KeyboardConfig) keyboard.Options {
	return keyboard.Options{
		DuplicateWindow: config.Millis(c.DuplicateWindowMs),
		RecentWindow:    config.Millis(c.RecentWindowMs),
		RecentSize:      c.RecentSize,
		ExemptModifiers: c.ExemptModifiers,
	}
}

// MouseOptions converts the mouse section. An unknown momentum policy falls
// back to showing momentum scrolls.
func MouseOptions(c config.MouseConfig) mouse.Options {
	policy, err := mouse.ParseMomentumPolicy(c.MomentumScroll)
	if err != nil {
		policy = mouse.MomentumShow
	}
	return mouse.Options{
		DoubleClickThreshold: config.Millis(c.DoubleClickMs),
		TrackMovement:        c.TrackMovement,
		MoveMinDistance:      c.MoveMinDistance,
		MoveMinInterval:      config.Millis(c.MoveMinIntervalMs),
		MoveDebounce:         config.Millis(c.MoveDebounceMs),
		MomentumScroll:       policy,
		ContinuousScroll:     c.ContinuousScroll,
	}
}

// TrackpadOptions converts the trackpad section. The delegate is left nil.
func TrackpadOptions(c config.TrackpadConfig) trackpad.Options {
	return trackpad.Options{
		TapArmDelay:     config.Millis(c.TapArmDelayMs),
		TapSimultaneity: config.Millis(c.TapSimultaneityMs),
		TapEpsilon:      c.TapEpsilon,
		CleanupInterval: config.Millis(c.CleanupIntervalMs),
		StaleTimeout:    config.Millis(c.StaleTimeoutMs),
		HideMomentum:    c.HideMomentum,
		Classifier: trackpad.ClassifierOptions{
			PinchThreshold:  c.PinchThreshold,
			PinchDominance:  c.PinchDominance,
			RotateThreshold: c.RotateThreshold,
			RotateDominance: c.RotateDominance,
			SwipeThreshold:  c.SwipeThreshold,
			MultiFingerThresholds: map[int]float64{
				3: c.ThreeFingerThreshold,
				4: c.FourFingerThreshold,
				5: c.FiveFingerThreshold,
			},
			CoincidentEpsilon: trackpad.DefaultClassifierOptions().CoincidentEpsilon,
		},
	}
}

// ApplyConfig pushes a reloaded configuration into the running pipeline.
// Capture, logging and metrics sections need a restart and are ignored.
func (p *Pipeline) ApplyConfig(cfg *config.Config) {
	p.ApplySettings(SettingsFromConfig(cfg))
	p.ApplyTuning(KeyboardOptions(cfg.Keyboard), MouseOptions(cfg.Mouse), TrackpadOptions(cfg.Trackpad))
}

// OptionsFromConfig builds the construction options for cfg. Provider,
// scheduler, logger, metrics and health are left for the caller.
func OptionsFromConfig(cfg *config.Config) Options {
	settings := SettingsFromConfig(cfg)
	return Options{
		QueueSize: cfg.Capture.QueueSize,
		Keyboard:  KeyboardOptions(cfg.Keyboard),
		Mouse:     MouseOptions(cfg.Mouse),
		Trackpad:  TrackpadOptions(cfg.Trackpad),
		Settings:  &settings,
	}
}
