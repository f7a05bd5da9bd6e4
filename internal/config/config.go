package config

import "time"

// ClientConfig is the root configuration for a realtime client process.
type ClientConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Send       SendConfig       `yaml:"send"`
	Queue      QueueConfig      `yaml:"queue"`
	Database   DBConfig         `yaml:"database"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig locates the realtime endpoint.
type ServerConfig struct {
	AppURL string `yaml:"app_url"` // URL the application is served from (http or https)
	Path   string `yaml:"path"`    // Well-known realtime path on the same host
	Origin string `yaml:"origin"`  // Origin header sent on the handshake (empty = AppURL)
}

// ConnectionConfig holds process-wide connection manager settings.
type ConnectionConfig struct {
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	PongTimeout       time.Duration `yaml:"pong_timeout"`
	ReadBufferSize    int           `yaml:"read_buffer_size"` // Inbound frame channel size
}

// SendConfig holds the default per-send retry policy.
type SendConfig struct {
	RetryCount *int          `yaml:"retry_count"` // nil = default; 0 = queue immediately
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Retries returns the configured retry count.
func (s SendConfig) Retries() int {
	if s.RetryCount == nil {
		return DefaultRetryCount
	}
	return *s.RetryCount
}

// QueueConfig holds pending message queue settings.
type QueueConfig struct {
	Capacity int    `yaml:"capacity"`
	Overflow string `yaml:"overflow"` // "drop-oldest", "drop-newest" or "reject"
	Persist  bool   `yaml:"persist"`  // Mirror pending messages to the database
}

// DBConfig holds the database used to persist pending messages.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
