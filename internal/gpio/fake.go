package gpio

import "errors"

// FakeCabIO is a test double with a scripted alerter and recorded relays.
type FakeCabIO struct {
	// Alerter contains scripted pedal states. Each ReadAlerter consumes the
	// next one; the last is repeated once exhausted.
	Alerter []bool

	// index tracks current position in Alerter
	index int

	// EmergencyBrake and PantographDown hold the last relay commands.
	EmergencyBrake bool
	PantographDown bool

	// RelayWrites counts successful relay commands.
	RelayWrites int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by ReadAlerter.
	ReadError error

	// WriteError, if set, will be returned by the relay setters.
	WriteError error
}

// NewFakeCabIO creates a FakeCabIO with the given pedal script.
func NewFakeCabIO(alerter []bool) *FakeCabIO {
	return &FakeCabIO{Alerter: alerter}
}

// ReadAlerter returns the next scripted pedal state.
func (f *FakeCabIO) ReadAlerter() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Alerter) == 0 {
		return false, errors.New("no samples configured")
	}

	v := f.Alerter[f.index]
	if f.index < len(f.Alerter)-1 {
		f.index++
	}
	return v, nil
}

// SetEmergencyBrake records the relay command.
func (f *FakeCabIO) SetEmergencyBrake(on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.EmergencyBrake = on
	f.RelayWrites++
	return nil
}

// SetPantographDown records the relay command.
func (f *FakeCabIO) SetPantographDown(down bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.PantographDown = down
	f.RelayWrites++
	return nil
}

// Close marks the cab I/O as closed.
func (f *FakeCabIO) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the pedal script and clears recorded state.
func (f *FakeCabIO) Reset() {
	f.index = 0
	f.EmergencyBrake = false
	f.PantographDown = false
	f.RelayWrites = 0
	f.Closed = false
}
