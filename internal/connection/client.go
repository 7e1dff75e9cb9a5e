package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single STOMP session over one WebSocket connection.
type Client interface {
	// Connect dials the WebSocket and completes the STOMP handshake.
	Connect(ctx context.Context) error

	// Subscribe registers interest in a destination and returns the subscription id.
	Subscribe(destination string) (string, error)

	// Close sends DISCONNECT (best effort) and closes the connection.
	Close() error

	// Messages returns a channel of MESSAGE frames, each with its receive timestamp.
	Messages() <-chan TimestampedFrame

	// Errors returns a channel of connection errors (transport, ERROR frames, staleness).
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool

	// ServerSession returns the session header from the CONNECTED frame, if any.
	ServerSession() string
}

// ClientFactory creates clients. The manager calls it once per connection attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	messages chan TimestampedFrame
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// Subscription ids
	subSeq atomic.Int64

	// State
	mu            sync.RWMutex
	connected     bool
	lastPingAt    time.Time
	closed        bool
	serverSession string
}

// NewClient creates a new STOMP client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedFrame, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and performs the STOMP handshake.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	timeout := c.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		Subprotocols:     []string{"v12.stomp", "v11.stomp", "v10.stomp"},
	}

	conn, _, err := dialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.handshake(ctx, timeout); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.lastPingAt = time.Now()
	c.mu.Unlock()

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping
	conn.SetPongHandler(func(data string) error {
		c.touch()
		return nil
	})

	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("stomp connected",
		"url", c.cfg.URL,
		"server_session", c.ServerSession(),
	)

	return nil
}

// handshake sends CONNECT and waits for CONNECTED, at most timeout and
// never past the end of ctx.
func (c *client) handshake(ctx context.Context, timeout time.Duration) (err error) {
	// Closing the conn unblocks the read below.
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer func() {
		if !stop() {
			err = fmt.Errorf("%w: %w", ErrHandshake, ctx.Err())
		}
	}()

	connect := NewFrame(CmdConnect,
		HeaderAcceptVersion, "1.2,1.1,1.0",
		HeaderHost, c.virtualHost(),
		HeaderHeartBeat, "0,0",
	)
	if c.cfg.Login != "" {
		connect.Header[HeaderLogin] = c.cfg.Login
		connect.Header[HeaderPasscode] = c.cfg.Passcode
	}

	if err := c.write(connect); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(timeout))
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHandshake, err)
		}

		frame, err := ParseFrame(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHandshake, err)
		}

		if frame.IsHeartbeat() {
			continue
		}

		switch frame.Command {
		case CmdConnected:
			c.mu.Lock()
			c.serverSession = frame.Get(HeaderSession)
			c.mu.Unlock()
			return nil
		case CmdError:
			return fmt.Errorf("%w: %s", ErrHandshake, errorText(frame))
		default:
			return fmt.Errorf("%w: unexpected %s frame", ErrHandshake, frame.Command)
		}
	}
}

// virtualHost returns the configured host or the URL's hostname.
func (c *client) virtualHost() string {
	if c.cfg.Host != "" {
		return c.cfg.Host
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Subscribe sends a SUBSCRIBE frame for destination.
func (c *client) Subscribe(destination string) (string, error) {
	id := fmt.Sprintf("sub-%d", c.subSeq.Add(1)-1)

	frame := NewFrame(CmdSubscribe,
		HeaderID, id,
		HeaderDestination, destination,
		HeaderAck, "auto",
	)
	if err := c.Send(frame); err != nil {
		return "", err
	}

	c.logger.Debug("subscribed", "destination", destination, "subscription", id)
	return id, nil
}

// Close gracefully closes the connection.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	wasConnected := c.connected
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	// Signal goroutines to stop
	close(c.done)

	if conn == nil {
		return nil
	}

	if wasConnected {
		if err := c.write(NewFrame(CmdDisconnect)); err != nil {
			c.logger.Debug("failed to send disconnect", "error", err)
		}
	}

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// Send writes a frame to the connection.
func (c *client) Send(frame Frame) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	return c.write(frame)
}

// write serializes frame writes without checking connection state.
func (c *client) write(frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame.Marshal())
}

// Messages returns the messages channel.
func (c *client) Messages() <-chan TimestampedFrame {
	return c.messages
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ServerSession returns the session id the server assigned.
func (c *client) ServerSession() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverSession
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

// reportError delivers err unless one is already pending.
func (c *client) reportError(err error) {
	select {
	case c.errors <- err:
	default:
	}
}

// readLoop reads frames from the WebSocket and sends MESSAGE frames to the messages channel.
func (c *client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-c.done:
				return
			default:
				c.reportError(err)
				return
			}
		}
		c.touch()

		frame, err := ParseFrame(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
			continue
		}

		if frame.IsHeartbeat() {
			continue
		}

		switch frame.Command {
		case CmdMessage:
			select {
			case c.messages <- TimestampedFrame{Frame: frame, ReceivedAt: receivedAt}:
			case <-c.done:
				return
			}
		case CmdError:
			c.reportError(fmt.Errorf("%w: %s", ErrServerError, errorText(frame)))
			return
		case CmdReceipt:
		default:
			c.logger.Debug("ignoring frame", "command", frame.Command)
		}
	}
}

// heartbeatLoop keeps the connection alive and detects stale connections.
func (c *client) heartbeatLoop() {
	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if conn != nil {
				deadline := time.Now().Add(c.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil &&
					!errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug("failed to send ping", "error", err)
				}
			}

			if c.cfg.PingTimeout <= 0 {
				continue
			}

			c.mu.RLock()
			lastPing := c.lastPingAt
			c.mu.RUnlock()

			if time.Since(lastPing) > c.cfg.PingTimeout {
				c.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", c.cfg.PingTimeout,
				)
				c.reportError(ErrStaleConnection)
				return
			}
		}
	}
}

// errorText extracts a readable message from an ERROR frame.
func errorText(f Frame) string {
	if msg := f.Get(HeaderMessage); msg != "" {
		return msg
	}
	if len(f.Body) > 0 {
		return string(f.Body)
	}
	return "unknown error"
}
