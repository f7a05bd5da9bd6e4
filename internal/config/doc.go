// Package config loads the realtime client configuration from YAML.
package config
