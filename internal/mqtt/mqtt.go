// Package mqtt publishes supervision and lifecycle events to an MQTT broker,
// with a fake for testing.
package mqtt

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/tcs-supervisor/internal/supervision"
)

// Topic is the MQTT topic for supervision events.
const Topic = "rail/tcs/supervisor/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "rail/tcs/supervisor/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a supervision event to the broker.
	// Returns error if publishing fails (must not stop supervision).
	Publish(event supervision.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload represents the MQTT message payload for a supervision event.
type Payload struct {
	Supervision SupervisionPayload `json:"supervision"`
}

// SupervisionPayload contains the supervision event details.
type SupervisionPayload struct {
	Timestamp       string  `json:"timestamp"`
	Event           string  `json:"event"`
	Mode            string  `json:"mode"`
	SpeedKmh        float64 `json:"speed_kmh"`
	CurrentLimitKmh float64 `json:"current_limit_kmh"`
}

// FormatPayload creates the JSON payload for a supervision event.
func FormatPayload(event supervision.Event) ([]byte, error) {
	payload := Payload{
		Supervision: SupervisionPayload{
			Timestamp:       event.Timestamp.UTC().Format(time.RFC3339),
			Event:           string(event.Type),
			Mode:            string(event.Mode),
			SpeedKmh:        round1(supervision.ToKpH(event.SpeedMpS)),
			CurrentLimitKmh: round1(supervision.ToKpH(event.CurrentLimitMpS)),
		},
	}
	return json.Marshal(payload)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
