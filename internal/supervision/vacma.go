package supervision

import "time"

// Vigilance is the VACMA driver vigilance monitor. It records alerter
// activity but does not yet raise alarms or emergencies.
type Vigilance struct {
	activated bool
	enabled   bool
	alarm     bool
	emergency bool

	presses   int
	resets    int
	lastPress time.Time
}

// NewVigilance returns an inactive monitor.
func NewVigilance() *Vigilance {
	return &Vigilance{}
}

// Activate marks the monitor as running.
func (v *Vigilance) Activate() { v.activated = true }

// Alarm reports whether a vigilance alarm is sounding.
func (v *Vigilance) Alarm() bool { return v.alarm }

// Emergency reports whether a vigilance emergency is latched.
func (v *Vigilance) Emergency() bool { return v.emergency }

// Presses returns the number of accepted alerter presses.
func (v *Vigilance) Presses() int { return v.presses }

// Resets returns the number of accepted alerter resets.
func (v *Vigilance) Resets() int { return v.resets }

// LastPress returns the time of the last accepted press.
func (v *Vigilance) LastPress() time.Time { return v.lastPress }

// Reset handles the alerter reset control.
func (v *Vigilance) Reset() {
	if !v.activated || v.emergency {
		return
	}
	v.resets++
}

// Pressed handles the alerter pedal or button.
func (v *Vigilance) Pressed(now time.Time) {
	if !v.activated || v.emergency {
		return
	}
	v.presses++
	v.lastPress = now
}

// Enabled reports whether the alerter was enabled in the last cycle.
func (v *Vigilance) Enabled() bool { return v.enabled }

// Update runs one cycle of the monitor. The alarm timing sequence is not
// implemented, so only the enable flag is tracked.
func (v *Vigilance) Update(in Input) {
	v.enabled = in.AlerterEnabled
}
