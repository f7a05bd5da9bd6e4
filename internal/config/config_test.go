package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  app_url: https://app.example.com
  path: /realtime
connection:
  reconnect_delay: 5s
  keepalive_interval: 20s
send:
  retry_count: 0
  retry_delay: 250ms
queue:
  capacity: 64
  overflow: reject
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.AppURL != "https://app.example.com" {
		t.Errorf("Server.AppURL = %q, want %q", cfg.Server.AppURL, "https://app.example.com")
	}
	if cfg.Connection.ReconnectDelay != 5*time.Second {
		t.Errorf("Connection.ReconnectDelay = %v, want 5s", cfg.Connection.ReconnectDelay)
	}
	if cfg.Send.Retries() != 0 {
		t.Errorf("Send.Retries() = %d, want 0", cfg.Send.Retries())
	}
	if cfg.Send.RetryDelay != 250*time.Millisecond {
		t.Errorf("Send.RetryDelay = %v, want 250ms", cfg.Send.RetryDelay)
	}
	if cfg.Queue.Overflow != "reject" {
		t.Errorf("Queue.Overflow = %q, want reject", cfg.Queue.Overflow)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
queue:
  persist: true
database:
  host: localhost
  name: live
  user: testuser
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "log:\n  level: debug\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Connection.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("Connection.ReconnectDelay = %v, want default %v", cfg.Connection.ReconnectDelay, DefaultReconnectDelay)
	}
	if cfg.Connection.KeepAliveInterval != DefaultKeepAliveInterval {
		t.Errorf("Connection.KeepAliveInterval = %v, want default %v", cfg.Connection.KeepAliveInterval, DefaultKeepAliveInterval)
	}
	if cfg.Send.Retries() != DefaultRetryCount {
		t.Errorf("Send.Retries() = %d, want default %d", cfg.Send.Retries(), DefaultRetryCount)
	}
	if cfg.Send.RetryDelay != DefaultRetryDelay {
		t.Errorf("Send.RetryDelay = %v, want default %v", cfg.Send.RetryDelay, DefaultRetryDelay)
	}
	if cfg.Queue.Capacity != DefaultQueueCapacity {
		t.Errorf("Queue.Capacity = %d, want default %d", cfg.Queue.Capacity, DefaultQueueCapacity)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	negative := -1

	tests := []struct {
		name    string
		mutate  func(*ClientConfig)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*ClientConfig) {},
			wantErr: "",
		},
		{
			name:    "bad app url scheme",
			mutate:  func(c *ClientConfig) { c.Server.AppURL = "ftp://example.com" },
			wantErr: `server: app_url "ftp://example.com": unsupported scheme "ftp"`,
		},
		{
			name:    "negative retry count",
			mutate:  func(c *ClientConfig) { c.Send.RetryCount = &negative },
			wantErr: "send.retry_count must be >= 0",
		},
		{
			name:    "unknown overflow policy",
			mutate:  func(c *ClientConfig) { c.Queue.Overflow = "drop-all" },
			wantErr: `queue.overflow must be drop-oldest, drop-newest or reject, got "drop-all"`,
		},
		{
			name:    "persist without database host",
			mutate:  func(c *ClientConfig) { c.Queue.Persist = true },
			wantErr: "database.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *ClientConfig) {
				c.Queue.Persist = true
				c.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "metrics port out of range",
			mutate: func(c *ClientConfig) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 70000
			},
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		appURL  string
		path    string
		want    string
		wantErr bool
	}{
		{appURL: "https://app.example.com", path: "/ws", want: "wss://app.example.com/ws"},
		{appURL: "http://localhost:8080", path: "/ws", want: "ws://localhost:8080/ws"},
		{appURL: "https://app.example.com/dashboard?x=1", path: "ws", want: "wss://app.example.com/ws"},
		{appURL: "", path: "/ws", wantErr: true},
		{appURL: "/relative", path: "/ws", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.appURL, func(t *testing.T) {
			got, err := EndpointURL(tt.appURL, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("EndpointURL(%q) expected error, got %q", tt.appURL, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("EndpointURL(%q) failed: %v", tt.appURL, err)
			}
			if got != tt.want {
				t.Errorf("EndpointURL(%q) = %q, want %q", tt.appURL, got, tt.want)
			}
		})
	}
}

func TestHandshakeOrigin(t *testing.T) {
	cfg := Default()
	cfg.Server.AppURL = "https://app.example.com/home"
	if got := cfg.HandshakeOrigin(); got != "https://app.example.com" {
		t.Errorf("HandshakeOrigin() = %q, want https://app.example.com", got)
	}

	cfg.Server.Origin = "https://other.example.com"
	if got := cfg.HandshakeOrigin(); got != "https://other.example.com" {
		t.Errorf("HandshakeOrigin() = %q, want override", got)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestExampleConfigs(t *testing.T) {
	t.Setenv("ATHLETE_LIVE_APP_URL", "https://app.example.com")

	for _, name := range []string{"parentview.example.yaml", "parentview.local.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadAndValidate(filepath.Join("..", "..", "configs", name))
			if err != nil {
				t.Fatalf("LoadAndValidate: %v", err)
			}
			if _, err := cfg.Endpoint(); err != nil {
				t.Errorf("Endpoint: %v", err)
			}
		})
	}
}
