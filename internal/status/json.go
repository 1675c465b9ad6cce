package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/tcs-supervisor/internal/supervision"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string       `json:"event,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Mode           string       `json:"mode"`
	Aspect         string       `json:"aspect"`
	Train          TrainJSON    `json:"train"`
	AlerterPresses int          `json:"alerter_presses"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	StartTime      string       `json:"start_time"`
	Timestamp      string       `json:"timestamp"`
	Host           HostStatus   `json:"host"`
	MQTT           MQTTStatus   `json:"mqtt"`
	Counts         CountsJSON   `json:"event_counts"`
	Recent         []EventJSON  `json:"recent_events"`
	Network        *NetworkJSON `json:"network,omitempty"`
	Config         ConfigJSON   `json:"config"`
}

// TrainJSON reports the supervised speeds in km/h.
type TrainJSON struct {
	SpeedKmh          float64    `json:"speed_kmh"`
	CurrentLimitKmh   float64    `json:"current_limit_kmh"`
	NextLimitKmh      float64    `json:"next_limit_kmh"`
	Curves            CurvesJSON `json:"curves"`
	Overspeed         bool       `json:"overspeed"`
	EmergencyLatched  bool       `json:"emergency_latched"`
	PenaltyApplied    bool       `json:"penalty_applied"`
	ReactionDelaySecs float64    `json:"reaction_delay_s"`
	Cycles            int        `json:"cycles"`
}

// CurvesJSON holds the four KVB permitted speeds in km/h.
type CurvesJSON struct {
	SignalAlertKmh     float64 `json:"signal_alert_kmh"`
	SignalEmergencyKmh float64 `json:"signal_emergency_kmh"`
	PostAlertKmh       float64 `json:"post_alert_kmh"`
	PostEmergencyKmh   float64 `json:"post_emergency_kmh"`
}

// HostStatus reports the simulator link state.
type HostStatus struct {
	Connected bool   `json:"connected"`
	URL       string `json:"url"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	EmergencyApplied  int `json:"emergency_applied"`
	EmergencyReleased int `json:"emergency_released"`
	OverspeedOn       int `json:"overspeed_on"`
	OverspeedOff      int `json:"overspeed_off"`
	ModeChanged       int `json:"mode_changed"`
}

// EventJSON is one entry of the recent event list.
type EventJSON struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	Mode      string  `json:"mode"`
	SpeedKmh  float64 `json:"speed_kmh"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	CycleMs     int64    `json:"cycle_ms"`
	HeartbeatMs int64    `json:"heartbeat_ms"`
	Broker      string   `json:"broker"`
	HostURL     string   `json:"host_url"`
	HTTPAddr    string   `json:"http_addr"`
	GPIO        bool     `json:"gpio"`
	Systems     []string `json:"systems"`
	MaxSpeedKmh float64  `json:"max_speed_kmh"`
}

func kmh(mps float64) float64 {
	return math.Round(supervision.ToKpH(mps)*10) / 10
}

func stringOrUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	st := snap.State
	inner := StatusInner{
		Mode:           stringOrUnknown(string(st.Mode)),
		Aspect:         stringOrUnknown(string(st.Aspect)),
		AlerterPresses: snap.AlerterPresses,
		Train: TrainJSON{
			SpeedKmh:        kmh(st.SpeedMpS),
			CurrentLimitKmh: kmh(st.CurrentLimitMpS),
			NextLimitKmh:    kmh(st.NextLimitMpS),
			Curves: CurvesJSON{
				SignalAlertKmh:     kmh(st.Curves.SignalAlertMpS),
				SignalEmergencyKmh: kmh(st.Curves.SignalEmergencyMpS),
				PostAlertKmh:       kmh(st.Curves.PostAlertMpS),
				PostEmergencyKmh:   kmh(st.Curves.PostEmergencyMpS),
			},
			Overspeed:         st.Overspeed,
			EmergencyLatched:  st.EmergencyLatched,
			PenaltyApplied:    st.PenaltyApplied,
			ReactionDelaySecs: st.ReactionDelayS,
			Cycles:            st.Cycles,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Host:          HostStatus{Connected: snap.HostConnected, URL: snap.Config.HostURL},
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			EmergencyApplied:  snap.Counts.EmergencyApplied,
			EmergencyReleased: snap.Counts.EmergencyReleased,
			OverspeedOn:       snap.Counts.OverspeedOn,
			OverspeedOff:      snap.Counts.OverspeedOff,
			ModeChanged:       snap.Counts.ModeChanged,
		},
		Recent: make([]EventJSON, 0, len(snap.Recent)),
		Config: ConfigJSON{
			CycleMs:     snap.Config.CycleMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HostURL:     snap.Config.HostURL,
			HTTPAddr:    snap.Config.HTTPAddr,
			GPIO:        snap.Config.GPIO,
			Systems:     make([]string, 0, len(snap.Config.Systems)),
			MaxSpeedKmh: kmh(snap.Config.MaxSpeedMpS),
		},
	}
	for _, e := range snap.Recent {
		inner.Recent = append(inner.Recent, EventJSON{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(e.Type),
			Mode:      string(e.Mode),
			SpeedKmh:  kmh(e.SpeedMpS),
		})
	}
	for _, m := range snap.Config.Systems {
		inner.Config.Systems = append(inner.Config.Systems, string(m))
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
