package hostlink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/tcs-supervisor/internal/supervision"
)

// DefaultRetryInterval is the wait between connection attempts.
const DefaultRetryInterval = 2 * time.Second

const writeTimeout = time.Second

// ErrNotConnected is returned by Send while no host connection is open.
var ErrNotConnected = errors.New("hostlink: not connected")

// Client keeps a connection to the host open, delivering cycle frames and
// sending commands back. Run owns the reading side; Send may be called from
// one other goroutine.
type Client struct {
	url string
	now func() time.Time

	// RetryInterval is the wait between connection attempts.
	RetryInterval time.Duration

	// OnConnection, if set, is called when the link goes up or down.
	OnConnection func(connected bool)

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a client for the given websocket URL.
func NewClient(url string) *Client {
	return &Client{
		url:           url,
		now:           time.Now,
		RetryInterval: DefaultRetryInterval,
	}
}

// Run connects to the host and forwards every cycle frame as an Input until
// ctx is cancelled. Lost connections are retried. The out channel is closed
// when Run returns.
func (c *Client) Run(ctx context.Context, out chan<- supervision.Input) {
	defer close(out)

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("hostlink: dial %s: %v", c.url, err)
		} else {
			log.Printf("hostlink: connected to %s", c.url)
			c.setConn(conn)
			err := c.readLoop(ctx, conn, out)
			c.setConn(nil)
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			log.Printf("hostlink: connection lost: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.RetryInterval):
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- supervision.Input) error {
	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame Cycle
		ok, err := decode(raw, TypeCycle, &frame)
		if err != nil {
			log.Printf("hostlink: %v", err)
			continue
		}
		if !ok {
			continue
		}
		select {
		case out <- frame.Input(c.now()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	if c.OnConnection != nil {
		c.OnConnection(conn != nil)
	}
}

// Connected reports whether a host connection is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes a commands frame to the host.
func (c *Client) Send(cmds *Commands) error {
	payload, err := encode(TypeCommands, cmds)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("hostlink: send commands: %w", err)
	}
	return nil
}
