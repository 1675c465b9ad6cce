package supervision

// Supervisor is a speed control system the controller can delegate a cycle to.
type Supervisor interface {
	Mode() Mode
	Available() bool
	EmergencyLatched() bool
	update(in Input, cmd *commander)
	release()
}

// HighSpeedLine is the TVM300 supervisor. Speed limits come straight from
// the cab signalling and are checked against a fixed tolerance.
type HighSpeedLine struct {
	currentLimit float64
	nextLimit    float64
	latched      bool
}

// NewHighSpeedLine creates a TVM300 supervisor.
func NewHighSpeedLine() *HighSpeedLine {
	return &HighSpeedLine{}
}

// Mode implements Supervisor.
func (h *HighSpeedLine) Mode() Mode { return ModeTVM300 }

// Available implements Supervisor.
func (h *HighSpeedLine) Available() bool { return true }

// EmergencyLatched implements Supervisor.
func (h *HighSpeedLine) EmergencyLatched() bool { return h.latched }

func (h *HighSpeedLine) release() { h.latched = false }

// Limits returns the current and next limits read in the last cycle.
func (h *HighSpeedLine) Limits() (current, next float64) {
	return h.currentLimit, h.nextLimit
}

// EmergencyMargin returns the overspeed tolerated above a TVM300 limit.
func EmergencyMargin(limitMpS float64) float64 {
	switch {
	case limitMpS <= KpH(80):
		return KpH(5)
	case limitMpS <= KpH(170):
		return KpH(10)
	default:
		return KpH(15)
	}
}

func (h *HighSpeedLine) update(in Input, cmd *commander) {
	h.nextLimit = in.NextSignalSpeedLimitMpS
	h.currentLimit = in.CurrentSignalSpeedLimitMpS

	cmd.cab.SetNextSpeedLimit(h.nextLimit)
	cmd.cab.SetCurrentSpeedLimit(h.currentLimit)

	if h.latched || in.SpeedMpS > h.currentLimit+EmergencyMargin(h.currentLimit) {
		h.latched = true
		cmd.emergencyStop()
	}
	// Released as soon as the train is back under the bare limit.
	if h.latched && in.SpeedMpS <= h.currentLimit {
		h.latched = false
		cmd.setPenalty(false)
	}
}

// Stub stands in for a system that is configured but not implemented.
// It never supervises, so the controller treats the line as uncovered.
type Stub struct {
	mode Mode
}

// NewStub returns a placeholder for the given mode.
func NewStub(mode Mode) *Stub {
	return &Stub{mode: mode}
}

// Mode implements Supervisor.
func (s *Stub) Mode() Mode { return s.mode }

// Available implements Supervisor.
func (s *Stub) Available() bool { return false }

// EmergencyLatched implements Supervisor.
func (s *Stub) EmergencyLatched() bool { return false }

func (s *Stub) update(Input, *commander) {}

func (s *Stub) release() {}
