// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state, reconnect attempts and transport failures
//   - Outbound send outcomes (sent, retried, queued) and keepalive pings
//   - Pending queue depth and flush counts
//   - Inbound frames dispatched and parse errors
package metrics
