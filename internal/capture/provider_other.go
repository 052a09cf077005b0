//go:build !darwin && !linux

package capture

import "log/slog"

// stubProvider is used on unsupported platforms.
type stubProvider struct {
	registry
}

func newPlatformProvider(_ *slog.Logger) Provider {
	return &stubProvider{}
}

func (s *stubProvider) Available(Kind) (bool, string) {
	return false, "input capture not implemented for this platform"
}

func (s *stubProvider) RegisterKeyTap(Mask, KeyHandler) (Handle, error) {
	return 0, ErrNotAvailable
}

func (s *stubProvider) RegisterMouseTap(Mask, MouseHandler) (Handle, error) {
	return 0, ErrNotAvailable
}

func (s *stubProvider) RegisterTouchSource(TouchHandler) (Handle, error) {
	return 0, ErrNotAvailable
}

func (s *stubProvider) Enable(h Handle, on bool) error {
	return s.enable(h, on)
}

func (s *stubProvider) Unregister(h Handle) error {
	_, _, err := s.remove(h)
	return err
}
