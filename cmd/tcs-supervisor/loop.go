package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/tcs-supervisor/internal/gpio"
	"github.com/sweeney/tcs-supervisor/internal/hostlink"
	"github.com/sweeney/tcs-supervisor/internal/mqtt"
	"github.com/sweeney/tcs-supervisor/internal/status"
	"github.com/sweeney/tcs-supervisor/internal/supervision"
)

// commandSender delivers a cycle's commands to the host.
type commandSender interface {
	Send(cmds *hostlink.Commands) error
}

// loop owns the controller. Everything it touches runs on one goroutine.
type loop struct {
	ctrl       *supervision.Controller
	host       commandSender
	cab        gpio.CabIO // nil without hardware
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time

	pedal      bool
	pantoDown  bool
	relaysSet  bool
	ebRelay    bool
	pantoRelay bool
}

// run processes host cycles until a signal arrives or done is closed.
func (l *loop) run(cycles <-chan supervision.Input, tick <-chan time.Time, sig <-chan os.Signal, done <-chan struct{}) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			l.shutdown(signalName)
			return nil

		case <-done:
			log.Printf("scenario complete, shutting down")
			l.shutdown("SCENARIO_COMPLETE")
			return nil

		case in, ok := <-cycles:
			if !ok {
				cycles = nil
				continue
			}
			l.cycle(in)

		case <-tick:
			l.housekeeping(l.now())
		}
	}
}

// cycle runs one supervision step and answers the host.
func (l *loop) cycle(in supervision.Input) {
	cmds := &hostlink.Commands{}
	events := l.ctrl.Update(in, cmds)

	if err := l.host.Send(cmds); err != nil {
		log.Printf("host send error: %v", err)
	}

	for _, event := range events {
		log.Printf("event: %s (mode=%s speed=%.1fkm/h limit=%.1fkm/h)",
			event.Type, event.Mode, supervision.ToKpH(event.SpeedMpS), supervision.ToKpH(event.CurrentLimitMpS))
		if err := l.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
			// Don't stop supervising on publish failure
		}
	}

	if l.cab != nil {
		l.driveRelays(in, cmds)
	}

	if l.tracker != nil {
		l.tracker.RecordEvents(events)
		l.updateTracker()
	}
}

// driveRelays mirrors the commands on the hardware cab. The brake relay
// holds while the host reports the brake applied or an emergency is latched.
// The pantographs come back up once the emergency is released.
func (l *loop) driveRelays(in supervision.Input, cmds *hostlink.Commands) {
	latched := l.ctrl.EmergencyLatched()
	l.pantoDown = cmds.PantographsDown || (l.pantoDown && latched)
	eb := cmds.EmergencyBrake || latched || in.EmergencyBrakeApplied

	l.setRelay(&l.ebRelay, eb, l.cab.SetEmergencyBrake)
	l.setRelay(&l.pantoRelay, l.pantoDown, l.cab.SetPantographDown)
	l.relaysSet = true
}

// setRelay writes a relay when its state changes. A failed write leaves the
// recorded state alone, so the next cycle tries again.
func (l *loop) setRelay(state *bool, want bool, set func(bool) error) {
	if l.relaysSet && *state == want {
		return
	}
	if err := set(want); err != nil {
		log.Printf("gpio write error: %v", err)
		return
	}
	*state = want
}

// housekeeping polls the alerter pedal and emits heartbeats.
func (l *loop) housekeeping(t time.Time) {
	if l.cab != nil {
		pressed, err := l.cab.ReadAlerter()
		if err != nil {
			log.Printf("gpio read error: %v", err)
		} else {
			if pressed && !l.pedal {
				l.ctrl.AlerterPressed(t)
			}
			l.pedal = pressed
		}
	}

	if hbData := l.ctrl.CheckHeartbeat(t, l.heartbeat); hbData != nil {
		log.Printf("heartbeat: uptime=%v mode=%s emergency_applied=%d overspeed_on=%d",
			hbData.Uptime, hbData.Mode, hbData.Counts.EmergencyApplied, hbData.Counts.OverspeedOn)

		hbEvent := mqtt.SystemEvent{
			Timestamp: hbData.Timestamp,
			Event:     "HEARTBEAT",
		}
		if l.tracker != nil {
			// Refresh network info for heartbeat
			if info := readNetworkInfo(); info != nil {
				l.tracker.SetNetwork(info)
			}
			l.updateTracker()
			hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
		}
		if err := l.publisher.PublishSystem(hbEvent); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}

	if l.tracker != nil {
		l.updateTracker()
	}
}

func (l *loop) updateTracker() {
	l.tracker.Update(l.ctrl.State(), l.ctrl.Counts(), l.ctrl.Vigilance().Presses())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) shutdown(reason string) {
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		l.updateTracker()
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}
