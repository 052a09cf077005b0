//go:build !linux

package sessionwatch

// NewSource reports ErrUnsupported; darwin re-arms its taps from the
// capture layer when the tap is disabled by timeout.
func NewSource() (Source, error) {
	return nil, ErrUnsupported
}
