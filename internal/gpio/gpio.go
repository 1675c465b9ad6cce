// Package gpio drives the cab's discrete I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// CabIO is the hardwired part of the cab: the alerter pedal input and the
// emergency brake and pantograph relays.
type CabIO interface {
	// ReadAlerter returns true while the alerter pedal is pressed.
	// The raw input is inverted: raw inactive = pressed.
	ReadAlerter() (bool, error)

	// SetEmergencyBrake energises the emergency brake relay when on.
	SetEmergencyBrake(on bool) error

	// SetPantographDown energises the pantograph drop relay when down.
	SetPantographDown(down bool) error

	// Close releases GPIO resources.
	Close() error
}

// Pins holds BCM line numbers.
type Pins struct {
	Alerter        int `yaml:"alerter"`
	EmergencyBrake int `yaml:"emergency_brake"`
	Pantograph     int `yaml:"pantograph"`
}

// DefaultPins is the wiring of the reference cab harness.
var DefaultPins = Pins{
	Alerter:        26,
	EmergencyBrake: 20,
	Pantograph:     21,
}

// DefaultChip is the GPIO character device used on a Raspberry Pi.
const DefaultChip = "gpiochip0"
