package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/tcs-supervisor/internal/supervision"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	now    func() time.Time

	mu       sync.Mutex
	buffer   *ringBuffer
	connects int
}

// NewRealPublisher creates a publisher for the given broker. An unreachable
// broker is not fatal: the client keeps retrying in the background and
// events are buffered until it connects.
func NewRealPublisher(broker, clientID string, bufferSize int) (*RealPublisher, error) {
	p := &RealPublisher{
		now:    time.Now,
		buffer: newRingBuffer(bufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("mqtt: broker %s not reachable yet, buffering", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// newPublisher wraps an existing client; used by tests.
func newPublisher(client paho.Client, bufferSize int) *RealPublisher {
	return &RealPublisher{
		client: client,
		now:    time.Now,
		buffer: newRingBuffer(bufferSize),
	}
}

// onConnect replays the buffer and announces reconnections.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	p.connects++
	reconnect := p.connects > 1
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	if len(pending) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		if err := p.send(m); err != nil {
			log.Printf("mqtt: replay error: %v", err)
		}
	}

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"}); err != nil {
			log.Printf("mqtt: reconnected event error: %v", err)
		}
	}
}

// Publish sends a supervision event to the MQTT broker.
func (p *RealPublisher) Publish(event supervision.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1: emergency transitions must reach the log at least once.
	return p.publish(bufferedMsg{topic: Topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buffer.push(m)
		p.mu.Unlock()
		return nil
	}
	return p.send(m)
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
