// Package router turns inbound WebSocket frames into messages and routes
// them to subscribers.
//
// Malformed frames are logged and dropped. Every well-formed message is
// recorded as the last received message and handed to each subscriber in
// registration order, in the order frames arrived on the wire.
package router
