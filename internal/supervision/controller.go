package supervision

import "time"

// standstillMpS is the speed under which a KVB emergency may be released.
const standstillMpS = 0.1

// classicLineThresholdMpS separates classic lines from high-speed lines,
// judged on the current speed-post limit.
var classicLineThresholdMpS = KpH(220)

// Cab receives the supervisor's commands for the actuators and the driver's
// displays. Calls are made synchronously from Controller.Update.
type Cab interface {
	SetNextSignalAspect(a Aspect)
	SetCurrentSpeedLimit(mps float64)
	SetNextSpeedLimit(mps float64)
	SetOverspeedWarning(on bool)
	SetPenaltyApplication(on bool)
	ApplyEmergencyBrake()
	SetThrottle(value float64)
	LowerPantographs()
}

// commander wraps the cab for one cycle and remembers whether the
// emergency brake is already applied and whether the penalty was shown.
type commander struct {
	cab          Cab
	brakeApplied bool
	penalty      bool
}

func (c *commander) setPenalty(on bool) {
	c.penalty = on
	c.cab.SetPenaltyApplication(on)
}

// emergencyStop shows the penalty and, unless the brake is already applied,
// applies it, cuts traction and lowers the pantographs.
func (c *commander) emergencyStop() {
	c.setPenalty(true)
	if c.brakeApplied {
		return
	}
	c.cab.ApplyEmergencyBrake()
	c.brakeApplied = true
	c.cab.SetThrottle(0)
	c.cab.LowerPantographs()
}

// Controller runs one supervision cycle at a time, choosing between KVB and
// the high-speed system from the current speed-post limit.
// It is not safe for concurrent use.
type Controller struct {
	kvb       *ClassicLine
	highSpeed Supervisor
	vigilance *Vigilance
	cmd       commander

	mode      Mode
	aspect    Aspect
	speed     float64
	overspeed bool
	activated bool
	cycles    int

	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewController creates a controller for the given train. The startTime is
// used for calculating uptime in heartbeat events.
func NewController(p TrainParameters, startTime time.Time) *Controller {
	c := &Controller{
		kvb:           NewClassicLine(p),
		highSpeed:     highSpeedSupervisor(p),
		vigilance:     NewVigilance(),
		mode:          ModeKVB,
		aspect:        AspectNone,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	c.vigilance.Activate()
	c.activated = true
	return c
}

// highSpeedSupervisor picks the fitted high-speed system, TVM300 first.
// It returns nil when the train has none.
func highSpeedSupervisor(p TrainParameters) Supervisor {
	switch {
	case p.TVM300Present:
		return NewHighSpeedLine()
	case p.TVM430Present:
		return NewStub(ModeTVM430)
	case p.ETCSPresent:
		return NewStub(ModeETCS)
	}
	return nil
}

// Update runs one cycle against the input snapshot, sends the resulting
// commands to the cab and returns the transitions it caused.
func (c *Controller) Update(in Input, cab Cab) []Event {
	before := c.outputs()

	c.cmd.cab = cab
	c.cmd.brakeApplied = in.EmergencyBrakeApplied
	c.cmd.penalty = false
	c.aspect = in.NextSignalAspect
	c.speed = in.SpeedMpS
	c.cycles++

	cab.SetNextSignalAspect(in.NextSignalAspect)

	switch {
	case in.CurrentPostSpeedLimitMpS <= classicLineThresholdMpS:
		c.mode = ModeKVB
		c.kvb.update(in, &c.cmd)
		c.vigilance.Update(in)
		c.overspeed = c.kvb.Overspeed()

		if c.kvb.EmergencyLatched() {
			if in.SpeedMpS >= standstillMpS {
				c.cmd.emergencyStop()
			} else {
				c.kvb.release()
				c.cmd.setPenalty(false)
			}
		}
		// A high-speed emergency left over from before the handover is
		// dropped once the train has stopped.
		if c.highSpeed != nil && in.SpeedMpS < standstillMpS {
			c.highSpeed.release()
		}

	case c.highSpeed != nil && c.highSpeed.Available():
		c.mode = c.highSpeed.Mode()
		c.overspeed = false
		c.highSpeed.update(in, &c.cmd)

	default:
		// High-speed line without a working system on board.
		c.mode = ModeKVB
		c.overspeed = false
		c.kvb.latch()
		c.cmd.emergencyStop()
	}

	c.cmd.cab = nil
	return c.transitions(in, before)
}

type outputs struct {
	mode      Mode
	overspeed bool
	emergency bool
}

func (c *Controller) outputs() outputs {
	return outputs{
		mode:      c.mode,
		overspeed: c.overspeed,
		emergency: c.EmergencyLatched(),
	}
}

func (c *Controller) transitions(in Input, before outputs) []Event {
	after := c.outputs()
	current, _ := c.Limits()

	var events []Event
	emit := func(t EventType) {
		events = append(events, Event{
			Timestamp:       in.Time,
			Type:            t,
			Mode:            after.mode,
			SpeedMpS:        in.SpeedMpS,
			CurrentLimitMpS: current,
		})
	}

	if after.mode != before.mode {
		emit(EventModeChanged)
	}
	if after.emergency != before.emergency {
		if after.emergency {
			emit(EventEmergencyApplied)
		} else {
			emit(EventEmergencyReleased)
		}
	}
	if after.overspeed != before.overspeed {
		if after.overspeed {
			emit(EventOverspeedOn)
		} else {
			emit(EventOverspeedOff)
		}
	}

	for _, e := range events {
		switch e.Type {
		case EventEmergencyApplied:
			c.eventCounts.EmergencyApplied++
		case EventEmergencyReleased:
			c.eventCounts.EmergencyReleased++
		case EventOverspeedOn:
			c.eventCounts.OverspeedOn++
		case EventOverspeedOff:
			c.eventCounts.OverspeedOff++
		case EventModeChanged:
			c.eventCounts.ModeChanged++
		}
	}
	return events
}

// AlerterReset forwards the alerter reset control to the vigilance monitor.
func (c *Controller) AlerterReset() {
	if !c.activated {
		return
	}
	c.vigilance.Reset()
}

// AlerterPressed forwards an alerter press to the vigilance monitor.
func (c *Controller) AlerterPressed(now time.Time) {
	if !c.activated {
		return
	}
	c.vigilance.Pressed(now)
}

// Mode returns the system that supervised the last cycle.
func (c *Controller) Mode() Mode { return c.mode }

// EmergencyLatched reports whether the supervisor of the last cycle holds an
// emergency.
func (c *Controller) EmergencyLatched() bool {
	if c.highSpeed != nil && c.mode == c.highSpeed.Mode() {
		return c.highSpeed.EmergencyLatched()
	}
	return c.kvb.EmergencyLatched()
}

// Overspeed reports whether the last cycle raised the overspeed warning.
// Only KVB raises it.
func (c *Controller) Overspeed() bool { return c.overspeed }

// Limits returns the current and next limits published in the last cycle.
func (c *Controller) Limits() (current, next float64) {
	if h, ok := c.highSpeed.(*HighSpeedLine); ok && c.mode == h.Mode() {
		return h.Limits()
	}
	return c.kvb.Limits()
}

// ClassicLine returns the KVB supervisor.
func (c *Controller) ClassicLine() *ClassicLine { return c.kvb }

// Vigilance returns the vigilance monitor.
func (c *Controller) Vigilance() *Vigilance { return c.vigilance }

// Counts returns the event counts since startup.
func (c *Controller) Counts() EventCounts { return c.eventCounts }

// State returns a snapshot of the controller's outputs.
func (c *Controller) State() State {
	current, next := c.Limits()
	return State{
		Mode:             c.mode,
		Aspect:           c.aspect,
		SpeedMpS:         c.speed,
		CurrentLimitMpS:  current,
		NextLimitMpS:     next,
		Curves:           c.kvb.Curves(),
		Overspeed:        c.overspeed,
		EmergencyLatched: c.EmergencyLatched(),
		PenaltyApplied:   c.cmd.penalty,
		ReactionDelayS:   c.kvb.reactionDelay,
		Cycles:           c.cycles,
	}
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if no cycle has run yet, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if c.cycles == 0 {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Mode:      c.mode,
		Counts:    c.eventCounts,
	}
}
