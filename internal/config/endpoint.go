package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// EndpointURL derives the realtime endpoint from the URL the application is
// served from: same host, the given path, and the secure WebSocket scheme when
// the application itself is served over https.
func EndpointURL(appURL, path string) (string, error) {
	if appURL == "" {
		return "", errors.New("app_url is required")
	}

	u, err := url.Parse(appURL)
	if err != nil {
		return "", fmt.Errorf("parse app_url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("app_url %q has no host", appURL)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("app_url %q: unsupported scheme %q", appURL, u.Scheme)
	}

	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}

// Endpoint returns the realtime endpoint for this config.
func (c *ClientConfig) Endpoint() (string, error) {
	return EndpointURL(c.Server.AppURL, c.Server.Path)
}

// HandshakeOrigin returns the Origin header value for the handshake.
func (c *ClientConfig) HandshakeOrigin() string {
	if c.Server.Origin != "" {
		return c.Server.Origin
	}
	u, err := url.Parse(c.Server.AppURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
