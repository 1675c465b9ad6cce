package supervision

import "math"

const (
	// Below this distance the train is considered to be passing the signal.
	signalPassedDistanceM = 10.0

	postAlertMarginKpH     = 5.0
	postEmergencyMarginKpH = 10.0
)

// ClassicLine is the KVB supervisor. It keeps two target pipelines, one fed
// by lineside signals and one by speed posts, and checks the train speed
// against an alert and an emergency curve for each.
type ClassicLine struct {
	params        TrainParameters
	reactionDelay float64
	trainLimit    float64

	previousSignalDistanceM float64
	signal                  CurveTargets
	post                    CurveTargets

	currentLimit float64
	nextLimit    float64
	curves       Curves

	overspeed bool
	latched   bool
}

// NewClassicLine creates a KVB supervisor with both pipelines reset to the
// train limit.
func NewClassicLine(p TrainParameters) *ClassicLine {
	vt := p.ClassicLineSpeedLimitMpS
	reset := CurveTargets{
		CurrentLimitMpS:    vt,
		NextLimitMpS:       vt,
		TargetSpeedMpS:     vt,
		AlertMarginMpS:     KpH(postAlertMarginKpH),
		EmergencyMarginMpS: KpH(postEmergencyMarginKpH),
	}
	return &ClassicLine{
		params:        p,
		reactionDelay: p.ReactionDelay(),
		trainLimit:    vt,
		signal:        reset,
		post:          reset,
		currentLimit:  vt,
		nextLimit:     vt,
	}
}

// Mode implements Supervisor.
func (k *ClassicLine) Mode() Mode { return ModeKVB }

// Available implements Supervisor. KVB is fitted to every train.
func (k *ClassicLine) Available() bool { return true }

// EmergencyLatched implements Supervisor.
func (k *ClassicLine) EmergencyLatched() bool { return k.latched }

// Overspeed reports whether the last cycle exceeded an alert curve.
func (k *ClassicLine) Overspeed() bool { return k.overspeed }

// Curves returns the permitted speeds computed in the last cycle.
func (k *ClassicLine) Curves() Curves { return k.curves }

// SignalTargets returns the signal pipeline state.
func (k *ClassicLine) SignalTargets() CurveTargets { return k.signal }

// PostTargets returns the speed-post pipeline state.
func (k *ClassicLine) PostTargets() CurveTargets { return k.post }

// Limits returns the current and next limits published to the cab.
func (k *ClassicLine) Limits() (current, next float64) {
	return k.currentLimit, k.nextLimit
}

func (k *ClassicLine) latch()   { k.latched = true }
func (k *ClassicLine) release() { k.latched = false }

func (k *ClassicLine) update(in Input, cmd *commander) {
	k.updateSignal(in)
	k.updateSpeedPost(in)

	k.currentLimit = math.Min(k.signal.CurrentLimitMpS, k.post.CurrentLimitMpS)
	k.nextLimit = math.Min(k.signal.NextLimitMpS, k.post.NextLimitMpS)
	cmd.cab.SetNextSpeedLimit(k.nextLimit)
	cmd.cab.SetCurrentSpeedLimit(k.currentLimit)

	k.updateCurves(in, cmd)
}

func (k *ClassicLine) updateSignal(in Input) {
	// The distance jumps up once the previous signal has been passed and
	// the next one comes into view.
	if in.NextSignalDistanceM > k.previousSignalDistanceM {
		k.decodeAspect(in.NextSignalAspect, in.NextSignalSpeedLimitMpS)
	}
	k.previousSignalDistanceM = in.NextSignalDistanceM
	k.signal.TargetDistanceM = in.NextSignalDistanceM

	if in.NextSignalDistanceM <= signalPassedDistanceM {
		k.signal.CurrentLimitMpS = k.signal.NextLimitMpS
	}
}

func (k *ClassicLine) decodeAspect(aspect Aspect, signalLimit float64) {
	switch aspect {
	case AspectStop:
		k.signal.NextLimitMpS = KpH(10)
		k.signal.TargetSpeedMpS = 0
		k.signal.AlertMarginMpS = KpH(2.5)
		k.signal.EmergencyMarginMpS = KpH(5)

	case AspectStopAndProceed:
		k.signal.NextLimitMpS = KpH(30)
		k.signal.TargetSpeedMpS = 0
		k.signal.AlertMarginMpS = KpH(5)
		k.signal.EmergencyMarginMpS = KpH(10)

	case AspectRestricted, AspectApproach1, AspectApproach2, AspectApproach3, AspectClear1, AspectClear2:
		limit := k.trainLimit
		if signalLimit > 0 && signalLimit < k.trainLimit {
			limit = signalLimit
		}
		k.signal.NextLimitMpS = limit
		k.signal.TargetSpeedMpS = limit
		k.signal.AlertMarginMpS = KpH(5)
		k.signal.EmergencyMarginMpS = KpH(10)
	}
}

func (k *ClassicLine) updateSpeedPost(in Input) {
	k.post.NextLimitMpS = k.trainLimit
	if in.NextPostSpeedLimitMpS > 0 {
		k.post.NextLimitMpS = in.NextPostSpeedLimitMpS
	}
	k.post.CurrentLimitMpS = k.trainLimit
	if in.CurrentPostSpeedLimitMpS > 0 {
		k.post.CurrentLimitMpS = in.CurrentPostSpeedLimitMpS
	}
	k.post.TargetSpeedMpS = k.post.NextLimitMpS
	k.post.TargetDistanceM = in.NextPostDistanceM
}

func (k *ClassicLine) updateCurves(in Input, cmd *commander) {
	tx := k.params.AlertAnticipationS
	k.curves = Curves{
		SignalAlertMpS:     k.permittedSpeed(k.signal, k.signal.AlertMarginMpS, tx, KpH(5)),
		SignalEmergencyMpS: k.permittedSpeed(k.signal, k.signal.EmergencyMarginMpS, 0, KpH(10)),
		PostAlertMpS:       k.permittedSpeed(k.post, KpH(postAlertMarginKpH), tx, KpH(5)),
		PostEmergencyMpS:   k.permittedSpeed(k.post, KpH(postEmergencyMarginKpH), 0, KpH(10)),
	}

	v := in.SpeedMpS
	k.overspeed = v > k.curves.SignalAlertMpS || v > k.curves.PostAlertMpS

	if v > k.curves.SignalEmergencyMpS || v > k.curves.PostEmergencyMpS {
		k.latched = true
		cmd.emergencyStop()
	}

	cmd.cab.SetOverspeedWarning(k.overspeed)
}

func (k *ClassicLine) permittedSpeed(t CurveTargets, margin, anticipation, trainMargin float64) float64 {
	return PermittedSpeed(BrakingCurve{
		TargetDistanceM:    t.TargetDistanceM,
		TargetSpeedMpS:     t.TargetSpeedMpS,
		CurrentLimitMpS:    t.CurrentLimitMpS,
		NextLimitMpS:       t.NextLimitMpS,
		MarginAtTargetMpS:  margin,
		MarginAtCurrentMpS: margin,
		ReactionDelayS:     k.reactionDelay,
		DecelerationMpS2:   k.params.DecelerationMpS2,
		GravityNpKg:        k.params.GravityNpKg,
		Slope:              k.params.Declivity,
		AnticipationS:      anticipation,
		TrainLimitMpS:      k.trainLimit,
		TrainMarginMpS:     trainMargin,
	})
}
