//go:build !linux

package gpio

import "errors"

// RealCabIO is not available on non-Linux platforms.
type RealCabIO struct{}

// NewRealCabIO returns an error on non-Linux platforms.
func NewRealCabIO(chip string, pins Pins) (*RealCabIO, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadAlerter is not implemented on non-Linux platforms.
func (r *RealCabIO) ReadAlerter() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// SetEmergencyBrake is not implemented on non-Linux platforms.
func (r *RealCabIO) SetEmergencyBrake(bool) error {
	return errors.New("gpio: not supported")
}

// SetPantographDown is not implemented on non-Linux platforms.
func (r *RealCabIO) SetPantographDown(bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealCabIO) Close() error {
	return nil
}
