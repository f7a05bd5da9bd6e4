package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// State is the connection state. Only the Manager changes it.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

var allStates = []string{
	StateDisconnected.String(),
	StateConnecting.String(),
	StateConnected.String(),
}

// Status is a point-in-time view of the Manager.
type Status struct {
	State      State
	LastError  error // Most recent transport failure, nil if none yet
	QueueDepth int
	Suspended  bool
	Closed     bool
}

// TimestampedMessage wraps raw frame data with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://app.example.com/ws)
	Origin           string        // Origin header for the handshake (optional)
	HandshakeTimeout time.Duration // Dial and upgrade timeout
	PingInterval     time.Duration // Interval between protocol-level pings
	PingTimeout      time.Duration // Max time without pong/ping before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Inbound frame channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager. ReconnectDelay and
// KeepAliveInterval are process-wide; RetryCount and RetryDelay are the
// per-send defaults and can be overridden on each Send.
type ManagerConfig struct {
	ReconnectDelay    time.Duration
	KeepAliveInterval time.Duration
	RetryCount        int
	RetryDelay        time.Duration
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectDelay:    3 * time.Second,
		KeepAliveInterval: 30 * time.Second,
		RetryCount:        3,
		RetryDelay:        500 * time.Millisecond,
	}
}
