package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is one WebSocket session. It is not reused after Close;
// reconnecting means dialing a new Connection.
type Connection struct {
	url     string
	state   ConnectionState
	stateMu sync.RWMutex

	// Connection options
	pingInterval     time.Duration
	writeTimeout     time.Duration
	readTimeout      time.Duration
	handshakeTimeout time.Duration

	conn    *websocket.Conn
	writeMu sync.Mutex

	closeChan chan struct{}
	closeOnce sync.Once
}

// ConnectionOption configures connection behavior
type ConnectionOption func(*Connection)

// WithPingInterval sets the ping interval
func WithPingInterval(interval time.Duration) ConnectionOption {
	return func(c *Connection) {
		c.pingInterval = interval
	}
}

// WithWriteTimeout sets the write timeout
func WithWriteTimeout(timeout time.Duration) ConnectionOption {
	return func(c *Connection) {
		c.writeTimeout = timeout
	}
}

// WithReadTimeout sets how long a read may wait. Kraken sends a heartbeat
// every second on an idle subscription, so silence means a dead link.
func WithReadTimeout(timeout time.Duration) ConnectionOption {
	return func(c *Connection) {
		c.readTimeout = timeout
	}
}

// WithHandshakeTimeout bounds the dial
func WithHandshakeTimeout(timeout time.Duration) ConnectionOption {
	return func(c *Connection) {
		c.handshakeTimeout = timeout
	}
}

// NewConnection creates a new WebSocket connection
func NewConnection(url string, opts ...ConnectionOption) *Connection {
	conn := &Connection{
		url:              url,
		state:            StateDisconnected,
		pingInterval:     30 * time.Second,
		writeTimeout:     10 * time.Second,
		readTimeout:      60 * time.Second,
		handshakeTimeout: 10 * time.Second,
		closeChan:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(conn)
	}

	return conn
}

// URL returns the WebSocket URL
func (c *Connection) URL() string {
	return c.url
}

// State returns the current connection state
func (c *Connection) State() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Connection) setState(state ConnectionState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = state
}

// Connect dials the server and starts the ping loop
func (c *Connection) Connect(ctx context.Context) error {
	if c.State() != StateDisconnected {
		return fmt.Errorf("connection is %s", c.State())
	}
	c.setState(StateConnecting)

	dialer := websocket.Dialer{
		HandshakeTimeout: c.handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	c.conn = conn
	c.setState(StateConnected)

	go c.pingLoop()

	return nil
}

// WriteJSON sends v as a text frame
func (c *Connection) WriteJSON(ctx context.Context, v any) error {
	if c.State() != StateConnected {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Read blocks for the next data frame. Only one goroutine may read.
func (c *Connection) Read() ([]byte, error) {
	if c.State() != StateConnected {
		return nil, fmt.Errorf("not connected")
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return nil, err
	}
	_, message, err := c.conn.ReadMessage()
	return message, err
}

// Close sends a close frame and releases the socket. Safe to call more
// than once and from any goroutine.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		wasConnected := c.State() == StateConnected
		c.setState(StateClosed)
		close(c.closeChan)

		if !wasConnected || c.conn == nil {
			return
		}

		// WriteControl may run concurrently with the other writers
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(100*time.Millisecond),
		)
		err = c.conn.Close()
	})
	return err
}

// pingLoop keeps the read deadline moving on quiet links
func (c *Connection) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeChan:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				// the reader sees the broken link and reports it
				return
			}
		}
	}
}
