// Package hostlink connects the supervisor to the host simulator over a
// websocket. The host sends one cycle frame per simulation step and expects
// a commands frame in reply.
package hostlink

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/sweeney/tcs-supervisor/internal/supervision"
)

// Message types.
const (
	TypeCycle    = "cycle"
	TypeCommands = "commands"
)

// Message is the envelope of every frame on the link.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Cycle is the host's view of the train for one step. Speeds are in km/h,
// distances in metres.
type Cycle struct {
	Time                  time.Time `json:"time" yaml:"-"`
	SpeedKmh              float64   `json:"speed_kmh" yaml:"speed_kmh"`
	NextSignalAspect      string    `json:"next_signal_aspect" yaml:"next_signal_aspect"`
	NextSignalDistanceM   float64   `json:"next_signal_distance_m" yaml:"next_signal_distance_m"`
	NextSignalLimitKmh    float64   `json:"next_signal_limit_kmh" yaml:"next_signal_limit_kmh"`
	CurrentSignalLimitKmh float64   `json:"current_signal_limit_kmh" yaml:"current_signal_limit_kmh"`
	NextPostDistanceM     float64   `json:"next_post_distance_m" yaml:"next_post_distance_m"`
	NextPostLimitKmh      float64   `json:"next_post_limit_kmh" yaml:"next_post_limit_kmh"`
	CurrentPostLimitKmh   float64   `json:"current_post_limit_kmh" yaml:"current_post_limit_kmh"`
	AlerterEnabled        bool      `json:"alerter_enabled" yaml:"alerter_enabled"`
	EmergencyBrakeApplied bool      `json:"emergency_brake_applied" yaml:"emergency_brake_applied"`
}

// Input converts the frame to the supervisor's units. A zero frame time is
// replaced by now.
func (c Cycle) Input(now time.Time) supervision.Input {
	t := c.Time
	if t.IsZero() {
		t = now
	}
	aspect := supervision.Aspect(c.NextSignalAspect)
	if aspect == "" {
		aspect = supervision.AspectNone
	}
	return supervision.Input{
		Time:                       t,
		SpeedMpS:                   supervision.KpH(c.SpeedKmh),
		NextSignalAspect:           aspect,
		NextSignalDistanceM:        c.NextSignalDistanceM,
		NextSignalSpeedLimitMpS:    supervision.KpH(c.NextSignalLimitKmh),
		CurrentSignalSpeedLimitMpS: supervision.KpH(c.CurrentSignalLimitKmh),
		NextPostDistanceM:          c.NextPostDistanceM,
		NextPostSpeedLimitMpS:      supervision.KpH(c.NextPostLimitKmh),
		CurrentPostSpeedLimitMpS:   supervision.KpH(c.CurrentPostLimitKmh),
		AlerterEnabled:             c.AlerterEnabled,
		EmergencyBrakeApplied:      c.EmergencyBrakeApplied,
	}
}

// Commands collects what the supervisor asked of the cab during one cycle.
// It implements supervision.Cab. Throttle is nil unless traction was cut.
type Commands struct {
	NextSignalAspect string   `json:"next_signal_aspect"`
	CurrentLimitKmh  float64  `json:"current_limit_kmh"`
	NextLimitKmh     float64  `json:"next_limit_kmh"`
	Overspeed        bool     `json:"overspeed"`
	Penalty          bool     `json:"penalty"`
	EmergencyBrake   bool     `json:"emergency_brake"`
	Throttle         *float64 `json:"throttle"`
	PantographsDown  bool     `json:"pantographs_down"`
}

func roundKmh(mps float64) float64 {
	return math.Round(supervision.ToKpH(mps)*10) / 10
}

// SetNextSignalAspect records the aspect echoed to the cab display.
func (c *Commands) SetNextSignalAspect(a supervision.Aspect) { c.NextSignalAspect = string(a) }

// SetCurrentSpeedLimit records the current limit in km/h, to 0.1.
func (c *Commands) SetCurrentSpeedLimit(mps float64) { c.CurrentLimitKmh = roundKmh(mps) }

// SetNextSpeedLimit records the next limit in km/h, to 0.1.
func (c *Commands) SetNextSpeedLimit(mps float64) { c.NextLimitKmh = roundKmh(mps) }

// SetOverspeedWarning records the overspeed lamp state.
func (c *Commands) SetOverspeedWarning(on bool) { c.Overspeed = on }

// SetPenaltyApplication records the penalty lamp state.
func (c *Commands) SetPenaltyApplication(on bool) { c.Penalty = on }

// ApplyEmergencyBrake requests the emergency brake.
func (c *Commands) ApplyEmergencyBrake() { c.EmergencyBrake = true }

// SetThrottle records a throttle demand. Throttle stays nil when unset.
func (c *Commands) SetThrottle(value float64) { c.Throttle = &value }

// LowerPantographs requests the pantographs down.
func (c *Commands) LowerPantographs() { c.PantographsDown = true }

// encode wraps a payload in a Message envelope.
func encode(msgType string, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msgType, err)
	}
	return json.Marshal(Message{Type: msgType, Data: data})
}

// decode unwraps an envelope. ok is false for messages of another type.
func decode(raw []byte, msgType string, v interface{}) (ok bool, err error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return false, fmt.Errorf("invalid frame: %w", err)
	}
	if m.Type != msgType {
		return false, nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return false, fmt.Errorf("invalid %s data: %w", msgType, err)
	}
	return true, nil
}
