//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealCabIO drives the cab harness through the Linux GPIO character device.
type RealCabIO struct {
	chip       *gpiocdev.Chip
	alerter    *gpiocdev.Line
	brake      *gpiocdev.Line
	pantograph *gpiocdev.Line
}

// NewRealCabIO requests the alerter input and both relay outputs on chip.
// Relays start de-energised.
func NewRealCabIO(chipName string, pins Pins) (*RealCabIO, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealCabIO{chip: chip}

	// Pull-down matches the Pi boot default for the optocoupler input.
	r.alerter, err = chip.RequestLine(pins.Alerter, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request alerter pin %d: %w", pins.Alerter, err)
	}

	r.brake, err = chip.RequestLine(pins.EmergencyBrake, gpiocdev.AsOutput(0))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request emergency brake pin %d: %w", pins.EmergencyBrake, err)
	}

	r.pantograph, err = chip.RequestLine(pins.Pantograph, gpiocdev.AsOutput(0))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request pantograph pin %d: %w", pins.Pantograph, err)
	}

	return r, nil
}

// ReadAlerter returns true while the pedal is pressed.
// Inverts raw GPIO: raw inactive (0) = pressed.
func (r *RealCabIO) ReadAlerter() (bool, error) {
	raw, err := r.alerter.Value()
	if err != nil {
		return false, fmt.Errorf("read alerter pin: %w", err)
	}
	return raw == 0, nil
}

// SetEmergencyBrake switches the emergency brake relay.
func (r *RealCabIO) SetEmergencyBrake(on bool) error {
	if err := r.brake.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("set emergency brake relay: %w", err)
	}
	return nil
}

// SetPantographDown switches the pantograph drop relay.
func (r *RealCabIO) SetPantographDown(down bool) error {
	if err := r.pantograph.SetValue(boolToValue(down)); err != nil {
		return fmt.Errorf("set pantograph relay: %w", err)
	}
	return nil
}

func boolToValue(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close releases GPIO resources. Every line is returned to input with
// pull-down, the Pi boot default, so relays drop out cleanly on shutdown.
func (r *RealCabIO) Close() error {
	var errs []error

	for _, l := range []struct {
		name string
		line *gpiocdev.Line
	}{
		{"alerter", r.alerter},
		{"emergency brake", r.brake},
		{"pantograph", r.pantograph},
	} {
		if l.line == nil {
			continue
		}
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", l.name, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l.name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
