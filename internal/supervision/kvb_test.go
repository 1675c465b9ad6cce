package supervision

import (
	"math"
	"testing"
)

func runKVB(k *ClassicLine, in Input) *fakeCab {
	cab := &fakeCab{}
	cmd := &commander{cab: cab, brakeApplied: in.EmergencyBrakeApplied}
	k.update(in, cmd)
	return cab
}

// classicInput is a 160 km/h line with the next speed post far away.
func classicInput(aspect Aspect, signalDistance, speed float64) Input {
	return Input{
		SpeedMpS:                 speed,
		NextSignalAspect:         aspect,
		NextSignalDistanceM:      signalDistance,
		NextPostDistanceM:        2000,
		NextPostSpeedLimitMpS:    KpH(160),
		CurrentPostSpeedLimitMpS: KpH(160),
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewClassicLineResetsToTrainLimit(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())

	for name, targets := range map[string]CurveTargets{"signal": k.SignalTargets(), "post": k.PostTargets()} {
		if !approxEqual(targets.CurrentLimitMpS, KpH(220)) {
			t.Errorf("%s: expected current limit 220 km/h, got %.1f", name, ToKpH(targets.CurrentLimitMpS))
		}
		if !approxEqual(targets.NextLimitMpS, KpH(220)) {
			t.Errorf("%s: expected next limit 220 km/h, got %.1f", name, ToKpH(targets.NextLimitMpS))
		}
		if !approxEqual(targets.AlertMarginMpS, KpH(5)) || !approxEqual(targets.EmergencyMarginMpS, KpH(10)) {
			t.Errorf("%s: expected margins 5/10 km/h", name)
		}
	}
	if k.EmergencyLatched() {
		t.Error("new supervisor should not be latched")
	}
}

func TestClassicLineDecodesAspects(t *testing.T) {
	tests := []struct {
		aspect      Aspect
		signalLimit float64
		wantNext    float64
		wantTarget  float64
		wantAlert   float64
		wantEB      float64
	}{
		{AspectStop, 0, KpH(10), 0, KpH(2.5), KpH(5)},
		{AspectStopAndProceed, 0, KpH(30), 0, KpH(5), KpH(10)},
		{AspectRestricted, KpH(30), KpH(30), KpH(30), KpH(5), KpH(10)},
		{AspectApproach1, KpH(60), KpH(60), KpH(60), KpH(5), KpH(10)},
		{AspectApproach2, KpH(160), KpH(160), KpH(160), KpH(5), KpH(10)},
		{AspectApproach3, 0, KpH(220), KpH(220), KpH(5), KpH(10)},
		{AspectClear1, KpH(300), KpH(220), KpH(220), KpH(5), KpH(10)},
		{AspectClear2, KpH(220), KpH(220), KpH(220), KpH(5), KpH(10)},
	}

	for _, tt := range tests {
		t.Run(string(tt.aspect), func(t *testing.T) {
			k := NewClassicLine(DefaultTrainParameters())
			in := classicInput(tt.aspect, 1000, 0)
			in.NextSignalSpeedLimitMpS = tt.signalLimit
			runKVB(k, in)

			s := k.SignalTargets()
			if !approxEqual(s.NextLimitMpS, tt.wantNext) {
				t.Errorf("next limit: expected %.1f km/h, got %.1f", ToKpH(tt.wantNext), ToKpH(s.NextLimitMpS))
			}
			if !approxEqual(s.TargetSpeedMpS, tt.wantTarget) {
				t.Errorf("target speed: expected %.1f km/h, got %.1f", ToKpH(tt.wantTarget), ToKpH(s.TargetSpeedMpS))
			}
			if !approxEqual(s.AlertMarginMpS, tt.wantAlert) {
				t.Errorf("alert margin: expected %.1f km/h, got %.1f", ToKpH(tt.wantAlert), ToKpH(s.AlertMarginMpS))
			}
			if !approxEqual(s.EmergencyMarginMpS, tt.wantEB) {
				t.Errorf("emergency margin: expected %.1f km/h, got %.1f", ToKpH(tt.wantEB), ToKpH(s.EmergencyMarginMpS))
			}
			if s.TargetDistanceM != 1000 {
				t.Errorf("expected target distance 1000, got %.0f", s.TargetDistanceM)
			}
		})
	}
}

func TestClassicLineIgnoresAspectWhileApproaching(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	runKVB(k, classicInput(AspectStop, 1000, 20))

	// Same signal, closer, aspect changed: not a new signal.
	runKVB(k, classicInput(AspectClear1, 900, 20))

	s := k.SignalTargets()
	if !approxEqual(s.NextLimitMpS, KpH(10)) {
		t.Errorf("expected next limit to stay 10 km/h, got %.1f", ToKpH(s.NextLimitMpS))
	}
	if s.TargetDistanceM != 900 {
		t.Errorf("expected target distance to follow the signal, got %.0f", s.TargetDistanceM)
	}
}

func TestClassicLineDecodesNextSignalAfterPassing(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	runKVB(k, classicInput(AspectStop, 100, 5))
	runKVB(k, classicInput(AspectStop, 5, 2))

	// Distance jumps up once the next signal comes into view.
	in := classicInput(AspectClear1, 1500, 10)
	in.NextSignalSpeedLimitMpS = KpH(220)
	runKVB(k, in)

	s := k.SignalTargets()
	if !approxEqual(s.NextLimitMpS, KpH(220)) {
		t.Errorf("expected next limit 220 km/h after new signal, got %.1f", ToKpH(s.NextLimitMpS))
	}
}

func TestClassicLinePromotesLimitAtSignal(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	runKVB(k, classicInput(AspectStopAndProceed, 600, 5))

	if !approxEqual(k.SignalTargets().CurrentLimitMpS, KpH(220)) {
		t.Fatal("current signal limit should not change before reaching the signal")
	}

	runKVB(k, classicInput(AspectStopAndProceed, 10, 5))
	if !approxEqual(k.SignalTargets().CurrentLimitMpS, KpH(30)) {
		t.Errorf("expected current signal limit 30 km/h at 10m, got %.1f", ToKpH(k.SignalTargets().CurrentLimitMpS))
	}
}

func TestClassicLinePublishesMinimumLimits(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	cab := runKVB(k, classicInput(AspectStop, 1000, 0))

	if len(cab.currentLimits) != 1 || len(cab.nextLimits) != 1 {
		t.Fatalf("expected one limit of each kind, got %d current and %d next", len(cab.currentLimits), len(cab.nextLimits))
	}
	if !approxEqual(cab.currentLimits[0], KpH(160)) {
		t.Errorf("expected current 160 km/h (post), got %.1f", ToKpH(cab.currentLimits[0]))
	}
	if !approxEqual(cab.nextLimits[0], KpH(10)) {
		t.Errorf("expected next 10 km/h (signal), got %.1f", ToKpH(cab.nextLimits[0]))
	}
}

func TestClassicLineSpeedPostDefaults(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	in := classicInput(AspectNone, 0, 0)
	in.NextPostSpeedLimitMpS = 0
	in.CurrentPostSpeedLimitMpS = 0
	runKVB(k, in)

	p := k.PostTargets()
	if !approxEqual(p.NextLimitMpS, KpH(220)) || !approxEqual(p.CurrentLimitMpS, KpH(220)) {
		t.Errorf("missing post limits should default to 220 km/h, got next %.1f current %.1f",
			ToKpH(p.NextLimitMpS), ToKpH(p.CurrentLimitMpS))
	}
	if !approxEqual(p.TargetSpeedMpS, p.NextLimitMpS) {
		t.Error("post target speed should equal the next post limit")
	}
}

func TestClassicLineCurves(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	runKVB(k, classicInput(AspectStop, 1000, 0))
	c := k.Curves()

	// Stop at 1000m, 2s delay: sqrt(1.8² + 2·0.9·1000) - 1.8
	wantSignalEB := math.Sqrt(3.24+1800) - 1.8
	if math.Abs(c.SignalEmergencyMpS-wantSignalEB) > 1e-9 {
		t.Errorf("signal emergency: expected %.4f, got %.4f", wantSignalEB, c.SignalEmergencyMpS)
	}
	// Alert adds the 5s anticipation.
	wantSignalAlert := math.Sqrt(6.3*6.3+1800) - 6.3
	if math.Abs(c.SignalAlertMpS-wantSignalAlert) > 1e-9 {
		t.Errorf("signal alert: expected %.4f, got %.4f", wantSignalAlert, c.SignalAlertMpS)
	}
	// Post curves are capped at the 160 km/h post limit plus margin.
	if !approxEqual(c.PostEmergencyMpS, KpH(170)) {
		t.Errorf("post emergency: expected 170 km/h, got %.2f", ToKpH(c.PostEmergencyMpS))
	}
	if !approxEqual(c.PostAlertMpS, KpH(165)) {
		t.Errorf("post alert: expected 165 km/h, got %.2f", ToKpH(c.PostAlertMpS))
	}
}

func TestClassicLineOverspeedWithoutEmergency(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	cab := runKVB(k, classicInput(AspectStop, 1000, 38))

	if !k.Overspeed() {
		t.Error("38 m/s is above the 36.6 m/s alert curve")
	}
	if !cab.lastOverspeed() {
		t.Error("overspeed warning should be displayed")
	}
	if k.EmergencyLatched() || cab.emergencyBrakes != 0 {
		t.Error("38 m/s is below the 40.7 m/s emergency curve")
	}

	// Overspeed is recomputed every cycle.
	cab = runKVB(k, classicInput(AspectStop, 990, 30))
	if k.Overspeed() || cab.lastOverspeed() {
		t.Error("overspeed should clear once back under the alert curve")
	}
}

func TestClassicLineEmergency(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	cab := runKVB(k, classicInput(AspectStop, 1000, 45))

	if !k.EmergencyLatched() {
		t.Fatal("45 m/s should exceed the signal emergency curve")
	}
	if cab.emergencyBrakes != 1 {
		t.Errorf("expected 1 emergency brake application, got %d", cab.emergencyBrakes)
	}
	if on, _ := cab.lastPenalty(); !on {
		t.Error("penalty display should be on")
	}
	if len(cab.throttle) != 1 || cab.throttle[0] != 0 {
		t.Errorf("expected throttle cut to 0, got %v", cab.throttle)
	}
	if cab.pantographsDown != 1 {
		t.Errorf("expected pantographs lowered once, got %d", cab.pantographsDown)
	}
}

func TestClassicLineSpeedPostEmergency(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	in := classicInput(AspectClear1, 3000, KpH(175))
	in.NextSignalSpeedLimitMpS = KpH(220)
	runKVB(k, in)

	if !k.EmergencyLatched() {
		t.Error("175 km/h should exceed the 170 km/h speed-post emergency curve")
	}
}

func TestClassicLineLatchSurvivesLowerSpeed(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	runKVB(k, classicInput(AspectStop, 1000, 45))
	runKVB(k, classicInput(AspectStop, 950, 5))

	if !k.EmergencyLatched() {
		t.Error("latch must only be released by the controller at standstill")
	}
}

func TestClassicLineBrakeAlreadyApplied(t *testing.T) {
	k := NewClassicLine(DefaultTrainParameters())
	in := classicInput(AspectStop, 1000, 45)
	in.EmergencyBrakeApplied = true
	cab := runKVB(k, in)

	if cab.emergencyBrakes != 0 {
		t.Errorf("brake already applied, expected no new application, got %d", cab.emergencyBrakes)
	}
	if on, _ := cab.lastPenalty(); !on {
		t.Error("penalty display should still be set")
	}
}
