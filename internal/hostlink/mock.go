package hostlink

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/tcs-supervisor/internal/config"
)

const replyTimeout = 5 * time.Second

// Scenario is a scripted drive replayed by MockHost.
type Scenario struct {
	Name     string        `yaml:"name"`
	Interval time.Duration `yaml:"interval"`
	Steps    []Step        `yaml:"steps"`
}

// Step is one cycle frame, sent Repeat times (at least once).
type Step struct {
	Cycle  `yaml:",inline"`
	Repeat int `yaml:"repeat"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	s, err := config.Load(path, Scenario{})
	if err != nil {
		return nil, err
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: no steps", path)
	}
	return s, nil
}

// Frames expands the steps into the frame sequence.
func (s Scenario) Frames() []Cycle {
	var out []Cycle
	for _, st := range s.Steps {
		n := st.Repeat
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, st.Cycle)
		}
	}
	return out
}

// MockHost is a stand-in for the host simulator. Each websocket session
// replays the scenario, waiting for the commands reply to every frame.
// Once the supervisor applies the emergency brake, the brake stays applied
// in later frames until the penalty is lifted.
type MockHost struct {
	scenario Scenario
	now      func() time.Time
	upgrader websocket.Upgrader

	mu       sync.Mutex
	commands []Commands

	done     chan struct{}
	doneOnce sync.Once
}

// NewMockHost creates a mock host for the scenario.
func NewMockHost(s Scenario) *MockHost {
	return &MockHost{
		scenario: s,
		now:      time.Now,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		done:     make(chan struct{}),
	}
}

// Done is closed when a session has replayed the whole scenario.
func (m *MockHost) Done() <-chan struct{} {
	return m.done
}

// Commands returns the replies received so far.
func (m *MockHost) Commands() []Commands {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Commands, len(m.commands))
	copy(out, m.commands)
	return out
}

// ServeHTTP upgrades the request and runs one scenario session.
func (m *MockHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("mockhost: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("mockhost: replaying %q", m.scenario.Name)
	braking := false
	for i, frame := range m.scenario.Frames() {
		if i > 0 && m.scenario.Interval > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(m.scenario.Interval):
			}
		}

		frame.Time = m.now()
		frame.EmergencyBrakeApplied = frame.EmergencyBrakeApplied || braking
		payload, err := encode(TypeCycle, frame)
		if err != nil {
			log.Printf("mockhost: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("mockhost: write error: %v", err)
			return
		}

		cmds, err := m.awaitCommands(conn)
		if err != nil {
			log.Printf("mockhost: %v", err)
			return
		}
		if cmds.EmergencyBrake {
			braking = true
		} else if !cmds.Penalty {
			braking = false
		}
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scenario complete"))
	m.doneOnce.Do(func() { close(m.done) })
}

func (m *MockHost) awaitCommands(conn *websocket.Conn) (Commands, error) {
	conn.SetReadDeadline(time.Now().Add(replyTimeout))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return Commands{}, fmt.Errorf("await commands: %w", err)
		}
		var cmds Commands
		ok, err := decode(raw, TypeCommands, &cmds)
		if err != nil {
			return Commands{}, err
		}
		if !ok {
			continue
		}
		m.mu.Lock()
		m.commands = append(m.commands, cmds)
		m.mu.Unlock()
		return cmds, nil
	}
}
