package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrTimeout         = errors.New("operation timeout")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrAlreadyStarted  = errors.New("already started")
	ErrHandshake       = errors.New("stomp handshake failed")
	ErrServerError     = errors.New("stomp error frame")
	ErrMalformedFrame  = errors.New("malformed stomp frame")
)

// TimestampedFrame wraps a decoded frame with its receive timestamp.
type TimestampedFrame struct {
	Frame      Frame
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a message from Connection Manager to Message Router.
type RawMessage struct {
	Topic      string    // STOMP destination the message was published to
	Body       []byte    // Raw JSON payload
	SessionID  string    // Connection session this came from (new per attempt)
	MessageID  string    // STOMP message-id header
	ReceivedAt time.Time // Local timestamp when the client received the frame
}

// ClientConfig configures a STOMP-over-WebSocket client.
type ClientConfig struct {
	URL            string        // WebSocket URL (e.g., ws://localhost:8080/websocket/websocket)
	Host           string        // STOMP virtual host header (defaults to URL host)
	Login          string        // Optional STOMP login
	Passcode       string        // Optional STOMP passcode
	ConnectTimeout time.Duration // Max time for dial + CONNECTED frame
	PingInterval   time.Duration // Interval between WebSocket keepalive pings
	PingTimeout    time.Duration // Max time without ping/pong/data before considering connection stale
	WriteTimeout   time.Duration // Write deadline for sends
	BufferSize     int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
		PingTimeout:    90 * time.Second,
		WriteTimeout:   5 * time.Second,
		BufferSize:     1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Client            ClientConfig    // Settings for every client the manager creates
	Topics            []string        // Destinations to subscribe on every connect
	Policy            ReconnectPolicy // Delay between attempts (nil = DefaultReconnectDelay fixed)
	MessageBufferSize int             // Buffer size for output message channel
}

// DefaultReconnectDelay is the fixed delay between connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:            DefaultClientConfig(),
		Topics:            EffectTopics(DefaultTopicPrefix),
		Policy:            FixedDelay{Delay: DefaultReconnectDelay},
		MessageBufferSize: 1000,
	}
}

// Topic names relative to the destination prefix.
const (
	DefaultTopicPrefix = "/topic/"
	TopicSchedule      = "effect/schedule"
	TopicProgress      = "effect/progress"
	TopicRemove        = "effect/remove"
)

// EffectTopics returns the three effect destinations under prefix.
func EffectTopics(prefix string) []string {
	return []string{
		prefix + TopicSchedule,
		prefix + TopicProgress,
		prefix + TopicRemove,
	}
}

// State is the Connection Manager lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
