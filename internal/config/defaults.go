package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAppURL            = "http://localhost:8080"
	DefaultPath              = "/ws"
	DefaultReconnectDelay    = 3 * time.Second
	DefaultKeepAliveInterval = 30 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultPongTimeout       = 60 * time.Second
	DefaultReadBufferSize    = 1000
	DefaultRetryCount        = 3
	DefaultRetryDelay        = 500 * time.Millisecond
	DefaultQueueCapacity     = 1024
	DefaultQueueOverflow     = "drop-oldest"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// ApplyDefaults fills in every unset optional field.
func (c *ClientConfig) ApplyDefaults() {
	if c.Server.AppURL == "" {
		c.Server.AppURL = DefaultAppURL
	}
	if c.Server.Path == "" {
		c.Server.Path = DefaultPath
	}

	if c.Connection.ReconnectDelay == 0 {
		c.Connection.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connection.KeepAliveInterval == 0 {
		c.Connection.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.PongTimeout == 0 {
		c.Connection.PongTimeout = DefaultPongTimeout
	}
	if c.Connection.ReadBufferSize == 0 {
		c.Connection.ReadBufferSize = DefaultReadBufferSize
	}

	if c.Send.RetryCount == nil {
		n := DefaultRetryCount
		c.Send.RetryCount = &n
	}
	if c.Send.RetryDelay == 0 {
		c.Send.RetryDelay = DefaultRetryDelay
	}

	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = DefaultQueueCapacity
	}
	if c.Queue.Overflow == "" {
		c.Queue.Overflow = DefaultQueueOverflow
	}

	applyDBDefaults(&c.Database)

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Default returns a config with every field at its default.
func Default() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.ApplyDefaults()
	return cfg
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
