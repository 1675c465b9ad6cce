package supervision

// fakeCab records every command it receives.
type fakeCab struct {
	aspects         []Aspect
	currentLimits   []float64
	nextLimits      []float64
	overspeed       []bool
	penalty         []bool
	emergencyBrakes int
	throttle        []float64
	pantographsDown int
}

func (f *fakeCab) SetNextSignalAspect(a Aspect) { f.aspects = append(f.aspects, a) }
func (f *fakeCab) SetCurrentSpeedLimit(mps float64) { f.currentLimits = append(f.currentLimits, mps) }
func (f *fakeCab) SetNextSpeedLimit(mps float64) { f.nextLimits = append(f.nextLimits, mps) }
func (f *fakeCab) SetOverspeedWarning(on bool) { f.overspeed = append(f.overspeed, on) }
func (f *fakeCab) SetPenaltyApplication(on bool) { f.penalty = append(f.penalty, on) }
func (f *fakeCab) ApplyEmergencyBrake() { f.emergencyBrakes++ }
func (f *fakeCab) SetThrottle(value float64) { f.throttle = append(f.throttle, value) }
func (f *fakeCab) LowerPantographs() { f.pantographsDown++ }

func (f *fakeCab) lastPenalty() (on bool, ok bool) {
	if len(f.penalty) == 0 {
		return false, false
	}
	return f.penalty[len(f.penalty)-1], true
}

func (f *fakeCab) lastOverspeed() bool {
	if len(f.overspeed) == 0 {
		return false
	}
	return f.overspeed[len(f.overspeed)-1]
}
