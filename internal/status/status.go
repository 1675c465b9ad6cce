// Package status provides a thread-safe status tracker for the supervisor
// daemon. It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/sweeney/tcs-supervisor/internal/supervision"
)

// maxRecent is the number of supervision events kept for display.
const maxRecent = 20

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	CycleMs     int64
	HeartbeatMs int64
	Broker      string
	HostURL     string
	HTTPAddr    string
	GPIO        bool
	Systems     []supervision.Mode // high-speed systems fitted
	MaxSpeedMpS float64            // rolling stock maximum
}

// Snapshot is a point-in-time view of daemon state.
// It is a deep copy: safe to use after the lock is released.
type Snapshot struct {
	State          supervision.State
	Counts         supervision.EventCounts
	Recent         []supervision.Event // newest last
	AlerterPresses int
	HostConnected  bool
	MQTTConnected  bool
	Network        *NetworkInfo
	StartTime      time.Time
	Now            time.Time
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update stores the controller state and counters.
// Called from the run loop after every cycle.
func (t *Tracker) Update(state supervision.State, counts supervision.EventCounts, alerterPresses int) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Counts = counts
	t.snap.AlerterPresses = alerterPresses
	t.mu.Unlock()
}

// RecordEvents appends supervision events, keeping the most recent ones.
func (t *Tracker) RecordEvents(events []supervision.Event) {
	if len(events) == 0 {
		return
	}
	t.mu.Lock()
	t.snap.Recent = append(t.snap.Recent, events...)
	if n := len(t.snap.Recent); n > maxRecent {
		t.snap.Recent = append([]supervision.Event(nil), t.snap.Recent[n-maxRecent:]...)
	}
	t.mu.Unlock()
}

// SetHostConnected sets the host link status.
func (t *Tracker) SetHostConnected(connected bool) {
	t.mu.Lock()
	t.snap.HostConnected = connected
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a deep copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := deepcopy.Copy(t.snap).(Snapshot)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
