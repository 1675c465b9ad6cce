package supervision

import "math"

// BrakingCurve is the set of inputs to one permitted-speed evaluation.
type BrakingCurve struct {
	TargetDistanceM    float64
	TargetSpeedMpS     float64
	CurrentLimitMpS    float64
	NextLimitMpS       float64
	MarginAtTargetMpS  float64
	MarginAtCurrentMpS float64
	ReactionDelayS     float64
	DecelerationMpS2   float64
	GravityNpKg        float64
	Slope              float64
	AnticipationS      float64
	TrainLimitMpS      float64 // cap skipped when <= 0
	TrainMarginMpS     float64
}

// PermittedSpeed returns the highest speed from which the train, coasting for
// the reaction window and then braking at the effective deceleration, still
// reaches the target speed within the target distance. The raw value is
// bounded below by the next limit and above by the train and current limits,
// each with its margin.
func PermittedSpeed(c BrakingCurve) float64 {
	a := c.DecelerationMpS2 - c.GravityNpKg*c.Slope
	tau := c.ReactionDelayS + c.AnticipationS

	radicand := tau*a*tau*a + 2*a*c.TargetDistanceM + c.TargetSpeedMpS*c.TargetSpeedMpS
	raw := math.Sqrt(math.Max(0, radicand)) - tau*a

	v := math.Max(raw, c.NextLimitMpS+c.MarginAtTargetMpS)
	if c.TrainLimitMpS > 0 {
		v = math.Min(v, c.TrainLimitMpS+c.TrainMarginMpS)
	}
	return math.Min(v, c.CurrentLimitMpS+c.MarginAtCurrentMpS)
}
