// Package connection implements the realtime connection manager.
//
// The Connection Manager:
//   - Owns the single WebSocket transport and its state machine
//     (disconnected, connecting, connected)
//   - Reconnects after a fixed delay when the transport fails, unless the
//     embedding application has suspended it
//   - Retries sends that cannot be written yet, then queues them and flushes
//     the queue in FIFO order on the next connect
//   - Sends a keepalive ping on a fixed interval while connected
//   - Hands inbound frames to the router for parsing and fan-out
//
// Close is the single cancellation point: it stops every timer, closes the
// transport and disables automatic reconnection.
package connection
