// Package supervision contains the pure train protection logic.
// This package has NO external dependencies (no GPIO, MQTT, network, or OS).
// Time only enters through Input.Time and the startTime given to the Controller.
package supervision

import "time"

// Aspect is the indication shown by the next signal ahead of the train.
type Aspect string

const (
	AspectNone           Aspect = "NONE"
	AspectStop           Aspect = "STOP"
	AspectStopAndProceed Aspect = "STOP_AND_PROCEED"
	AspectRestricted     Aspect = "RESTRICTED"
	AspectApproach1      Aspect = "APPROACH_1"
	AspectApproach2      Aspect = "APPROACH_2"
	AspectApproach3      Aspect = "APPROACH_3"
	AspectClear1         Aspect = "CLEAR_1"
	AspectClear2         Aspect = "CLEAR_2"
)

// Mode identifies the speed control system supervising the train.
type Mode string

const (
	ModeKVB    Mode = "KVB"
	ModeTVM300 Mode = "TVM300"
	ModeTVM430 Mode = "TVM430"
	ModeETCS   Mode = "ETCS"
)

// KpH converts km/h to m/s.
func KpH(kph float64) float64 {
	return kph / 3.6
}

// ToKpH converts m/s to km/h.
func ToKpH(mps float64) float64 {
	return mps * 3.6
}

// TrainParameters describes the consist. It is fixed for the whole run.
type TrainParameters struct {
	ElectroPneumaticBrake bool
	HeavyFreight          bool
	LengthM               float64

	MaxSpeedLimitMpS         float64 // rolling stock maximum, shown on the status page
	ClassicLineSpeedLimitMpS float64 // VT, train limit under KVB

	BrakingDelayS      float64 // used as-is only for EP passenger stock
	DecelerationMpS2   float64
	GravityNpKg        float64
	AlertAnticipationS float64 // Tx
	Declivity          float64 // i, positive downhill

	TVM300Present bool
	TVM430Present bool
	ETCSPresent   bool
}

// DefaultTrainParameters returns a 400 m EP passenger train fitted with TVM300.
func DefaultTrainParameters() TrainParameters {
	return TrainParameters{
		ElectroPneumaticBrake:    true,
		LengthM:                  400,
		MaxSpeedLimitMpS:         KpH(320),
		ClassicLineSpeedLimitMpS: KpH(220),
		BrakingDelayS:            2,
		DecelerationMpS2:         0.9,
		GravityNpKg:              9.80665,
		AlertAnticipationS:       5,
		TVM300Present:            true,
	}
}

// ReactionDelay returns the braking-established delay for the consist.
// Non-EP brakes propagate along the train, so the delay grows with length.
func (p TrainParameters) ReactionDelay() float64 {
	if !p.ElectroPneumaticBrake {
		return 2 + 2*p.LengthM*p.LengthM*0.00001
	}
	if p.HeavyFreight {
		return 12 + p.LengthM/200
	}
	return p.BrakingDelayS
}

// Input is one snapshot of the train and track state, read once per cycle.
type Input struct {
	Time     time.Time
	SpeedMpS float64

	NextSignalAspect           Aspect
	NextSignalDistanceM        float64
	NextSignalSpeedLimitMpS    float64
	CurrentSignalSpeedLimitMpS float64

	NextPostDistanceM        float64
	NextPostSpeedLimitMpS    float64
	CurrentPostSpeedLimitMpS float64

	AlerterEnabled        bool
	EmergencyBrakeApplied bool
}

// CurveTargets holds what one KVB pipeline (signals or speed posts) is
// currently supervising against.
type CurveTargets struct {
	CurrentLimitMpS    float64
	NextLimitMpS       float64
	TargetSpeedMpS     float64
	TargetDistanceM    float64
	AlertMarginMpS     float64
	EmergencyMarginMpS float64
}

// Curves are the four KVB permitted speeds of the last cycle.
type Curves struct {
	SignalAlertMpS     float64
	SignalEmergencyMpS float64
	PostAlertMpS       float64
	PostEmergencyMpS   float64
}

// EventType represents a supervision transition.
type EventType string

const (
	EventEmergencyApplied  EventType = "EMERGENCY_APPLIED"
	EventEmergencyReleased EventType = "EMERGENCY_RELEASED"
	EventOverspeedOn       EventType = "OVERSPEED_ON"
	EventOverspeedOff      EventType = "OVERSPEED_OFF"
	EventModeChanged       EventType = "MODE_CHANGED"
)

// Event is a transition to be published.
type Event struct {
	Timestamp       time.Time
	Type            EventType
	Mode            Mode
	SpeedMpS        float64
	CurrentLimitMpS float64
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	EmergencyApplied  int
	EmergencyReleased int
	OverspeedOn       int
	OverspeedOff      int
	ModeChanged       int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Mode      Mode
	Counts    EventCounts
}

// State is a copy of the controller's outputs after the last cycle.
type State struct {
	Mode             Mode
	Aspect           Aspect
	SpeedMpS         float64
	CurrentLimitMpS  float64
	NextLimitMpS     float64
	Curves           Curves
	Overspeed        bool
	EmergencyLatched bool
	PenaltyApplied   bool
	ReactionDelayS   float64
	Cycles           int
}
