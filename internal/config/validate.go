package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if _, err := EndpointURL(c.Server.AppURL, c.Server.Path); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if c.Connection.ReconnectDelay <= 0 {
		return errors.New("connection.reconnect_delay must be > 0")
	}
	if c.Connection.KeepAliveInterval <= 0 {
		return errors.New("connection.keepalive_interval must be > 0")
	}
	if c.Connection.ReadBufferSize < 1 {
		return errors.New("connection.read_buffer_size must be >= 1")
	}

	if c.Send.Retries() < 0 {
		return errors.New("send.retry_count must be >= 0")
	}
	if c.Send.RetryDelay < 0 {
		return errors.New("send.retry_delay must be >= 0")
	}

	if c.Queue.Capacity < 1 {
		return errors.New("queue.capacity must be >= 1")
	}
	switch c.Queue.Overflow {
	case "drop-oldest", "drop-newest", "reject":
	default:
		return fmt.Errorf("queue.overflow must be drop-oldest, drop-newest or reject, got %q", c.Queue.Overflow)
	}

	if c.Queue.Persist {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
