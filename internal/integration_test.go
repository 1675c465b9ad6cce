package internal

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/tcs-supervisor/internal/config"
	"github.com/sweeney/tcs-supervisor/internal/hostlink"
	"github.com/sweeney/tcs-supervisor/internal/mqtt"
	"github.com/sweeney/tcs-supervisor/internal/status"
	"github.com/sweeney/tcs-supervisor/internal/supervision"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// drive runs one cycle the way the daemon does: controller, host commands,
// MQTT events and status tracker.
func drive(ctrl *supervision.Controller, pub *mqtt.FakePublisher, tracker *status.Tracker, in supervision.Input) (*hostlink.Commands, []supervision.Event) {
	cmds := &hostlink.Commands{}
	events := ctrl.Update(in, cmds)
	for _, e := range events {
		pub.Publish(e)
	}
	tracker.RecordEvents(events)
	tracker.Update(ctrl.State(), ctrl.Counts(), ctrl.Vigilance().Presses())
	return cmds, events
}

func classicLine(t time.Time, distance, speed float64, brakeApplied bool) supervision.Input {
	return supervision.Input{
		Time:                     t,
		SpeedMpS:                 speed,
		NextSignalAspect:         supervision.AspectStop,
		NextSignalDistanceM:      distance,
		NextPostDistanceM:        5000,
		NextPostSpeedLimitMpS:    supervision.KpH(160),
		CurrentPostSpeedLimitMpS: supervision.KpH(160),
		EmergencyBrakeApplied:    brakeApplied,
	}
}

func indexOf(types []supervision.EventType, want supervision.EventType) int {
	for i, et := range types {
		if et == want {
			return i
		}
	}
	return -1
}

// TestIntegrationStopSignalRunThrough simulates a driver ignoring a stop
// signal: the alert comes first, then the emergency brake, then the release
// once the train is at a standstill.
func TestIntegrationStopSignalRunThrough(t *testing.T) {
	ctrl := supervision.NewController(supervision.DefaultTrainParameters(), startTime)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(startTime, status.Config{})

	distance, speed := 3000.0, 30.0
	braking := false
	applications := 0
	now := startTime

	for i := 0; i < 400; i++ {
		cmds, _ := drive(ctrl, pub, tracker, classicLine(now, distance, speed, braking))
		if cmds.EmergencyBrake {
			applications++
			braking = true
		}

		if speed == 0 && !ctrl.EmergencyLatched() {
			break
		}

		// One second of motion.
		distance -= speed
		if braking {
			speed = math.Max(0, speed-0.9)
		}
		now = now.Add(time.Second)
	}

	types := pub.EventTypes()
	alert := indexOf(types, supervision.EventOverspeedOn)
	applied := indexOf(types, supervision.EventEmergencyApplied)
	released := indexOf(types, supervision.EventEmergencyReleased)

	if alert < 0 || applied < 0 || released < 0 {
		t.Fatalf("missing events, got %v", types)
	}
	if !(alert < applied && applied < released) {
		t.Errorf("expected overspeed, then emergency, then release; got %v", types)
	}
	if applications != 1 {
		t.Errorf("expected a single brake application while the host holds the brake, got %d", applications)
	}
	if speed != 0 {
		t.Errorf("train should be at a standstill, got %.1f m/s", speed)
	}

	snap := tracker.Snapshot()
	if snap.Counts.EmergencyApplied != 1 || snap.Counts.EmergencyReleased != 1 {
		t.Errorf("unexpected counts %+v", snap.Counts)
	}
	if snap.State.EmergencyLatched {
		t.Error("tracker should show the emergency released")
	}

	// Every published payload is the MQTT envelope.
	for i, payload := range pub.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Fatalf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Supervision.Event != string(types[i]) || parsed.Supervision.Mode != "KVB" {
			t.Errorf("payload %d: unexpected %+v", i, parsed.Supervision)
		}
	}
}

// TestIntegrationHighSpeedHandover moves from a classic line onto a TVM300
// line and back.
func TestIntegrationHighSpeedHandover(t *testing.T) {
	ctrl := supervision.NewController(supervision.DefaultTrainParameters(), startTime)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(startTime, status.Config{})

	classic := classicLine(startTime, 3000, 40, false)
	classic.NextSignalAspect = supervision.AspectClear1
	highSpeed := supervision.Input{
		Time:                       startTime.Add(time.Second),
		SpeedMpS:                   supervision.KpH(280),
		NextSignalAspect:           supervision.AspectNone,
		CurrentSignalSpeedLimitMpS: supervision.KpH(300),
		NextSignalSpeedLimitMpS:    supervision.KpH(300),
		CurrentPostSpeedLimitMpS:   supervision.KpH(300),
		NextPostSpeedLimitMpS:      supervision.KpH(300),
		NextPostDistanceM:          5000,
	}

	drive(ctrl, pub, tracker, classic)
	cmds, events := drive(ctrl, pub, tracker, highSpeed)
	if ctrl.Mode() != supervision.ModeTVM300 {
		t.Fatalf("expected TVM300, got %s", ctrl.Mode())
	}
	if len(events) != 1 || events[0].Type != supervision.EventModeChanged || events[0].Mode != supervision.ModeTVM300 {
		t.Errorf("expected MODE_CHANGED to TVM300, got %+v", events)
	}
	if cmds.EmergencyBrake {
		t.Error("280 km/h under a 300 km/h limit must not brake")
	}
	if cmds.CurrentLimitKmh != 300 {
		t.Errorf("expected cab limit 300 km/h, got %v", cmds.CurrentLimitKmh)
	}

	classic.Time = startTime.Add(2 * time.Second)
	drive(ctrl, pub, tracker, classic)
	if ctrl.Mode() != supervision.ModeKVB {
		t.Errorf("expected KVB after leaving the high-speed line, got %s", ctrl.Mode())
	}

	if got := tracker.Snapshot().Counts.ModeChanged; got != 2 {
		t.Errorf("expected 2 mode changes, got %d", got)
	}
}

// TestIntegrationNoHighSpeedSystemStopsTrain checks a train without a
// high-speed system entering a high-speed line.
func TestIntegrationNoHighSpeedSystemStopsTrain(t *testing.T) {
	p := supervision.DefaultTrainParameters()
	p.TVM300Present = false
	ctrl := supervision.NewController(p, startTime)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(startTime, status.Config{})

	in := supervision.Input{
		Time:                     startTime,
		SpeedMpS:                 supervision.KpH(250),
		NextSignalAspect:         supervision.AspectNone,
		CurrentPostSpeedLimitMpS: supervision.KpH(300),
		NextPostSpeedLimitMpS:    supervision.KpH(300),
		NextPostDistanceM:        5000,
	}
	cmds, _ := drive(ctrl, pub, tracker, in)

	if !cmds.EmergencyBrake || !cmds.Penalty || !cmds.PantographsDown {
		t.Errorf("expected an emergency stop, got %+v", cmds)
	}
	if cmds.Throttle == nil || *cmds.Throttle != 0 {
		t.Errorf("expected traction cut, got %v", cmds.Throttle)
	}
	if indexOf(pub.EventTypes(), supervision.EventEmergencyApplied) < 0 {
		t.Errorf("expected EMERGENCY_APPLIED, got %v", pub.EventTypes())
	}
}

// TestIntegrationLifecyclePayloads checks STARTUP, HEARTBEAT and SHUTDOWN
// system events carry the status snapshot.
func TestIntegrationLifecyclePayloads(t *testing.T) {
	ctrl := supervision.NewController(supervision.DefaultTrainParameters(), startTime)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(startTime, status.Config{
		CycleMs:     100,
		HeartbeatMs: 60000,
		Broker:      "tcp://localhost:1883",
		HostURL:     "ws://127.0.0.1:8765/cab",
		Systems:     []supervision.Mode{supervision.ModeTVM300},
	})

	publishSystem := func(event, reason string) {
		snap := tracker.Snapshot()
		err := pub.PublishSystem(mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      event,
			Reason:     reason,
			Retained:   event != "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, event, reason),
		})
		if err != nil {
			t.Fatalf("publish %s: %v", event, err)
		}
	}

	publishSystem("STARTUP", "")
	drive(ctrl, pub, tracker, classicLine(startTime, 1000, 45, false))
	if hb := ctrl.CheckHeartbeat(startTime.Add(time.Minute), time.Minute); hb == nil {
		t.Fatal("expected a heartbeat after one minute")
	}
	publishSystem("HEARTBEAT", "")
	publishSystem("SHUTDOWN", "SIGTERM")

	want := []string{"STARTUP", "HEARTBEAT", "SHUTDOWN"}
	got := pub.SystemEventNames()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	for i, payload := range pub.SystemPayloads {
		var parsed status.StatusJSON
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Fatalf("%s: invalid JSON: %v", want[i], err)
		}
		if parsed.Status.Event != want[i] {
			t.Errorf("event %d: got %q, want %q", i, parsed.Status.Event, want[i])
		}
		if parsed.Status.Config.HostURL != "ws://127.0.0.1:8765/cab" {
			t.Errorf("%s: host url missing", want[i])
		}
		if i == 0 && parsed.Status.Mode != "UNKNOWN" {
			t.Errorf("STARTUP before any cycle should report UNKNOWN mode, got %q", parsed.Status.Mode)
		}
		if i > 0 && !parsed.Status.Train.EmergencyLatched {
			t.Errorf("%s: expected the latched emergency in the snapshot", want[i])
		}
	}
	if pub.SystemEvents[2].Reason != "SIGTERM" {
		t.Errorf("shutdown reason: got %q", pub.SystemEvents[2].Reason)
	}
}

// TestIntegrationConfigFileToController loads a freight consist from YAML and
// checks the reaction delay reaches the curves.
func TestIntegrationConfigFileToController(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freight.yaml")
	body := `
train:
  electro_pneumatic_brake: false
  heavy_freight: true
  length_m: 750
kvb:
  train_speed_limit_kmh: 100
systems:
  tvm300: false
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctrl := supervision.NewController(cfg.TrainParameters(), startTime)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(startTime, status.Config{})
	drive(ctrl, pub, tracker, classicLine(startTime, 3000, 20, false))

	state := tracker.Snapshot().State
	// Non-EP brake: 2 + 2 * 750^2 * 1e-5
	if math.Abs(state.ReactionDelayS-13.25) > 1e-9 {
		t.Errorf("reaction delay: got %v, want 13.25", state.ReactionDelayS)
	}
	if math.Abs(supervision.ToKpH(state.CurrentLimitMpS)-100) > 1e-9 {
		t.Errorf("current limit should be capped by the train limit, got %.1f km/h", supervision.ToKpH(state.CurrentLimitMpS))
	}
}
