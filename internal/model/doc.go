// Package model defines the wire types exchanged with the realtime server.
//
// Conventions:
//   - One JSON object per WebSocket text frame
//   - Every object carries a string "type" field used for routing
//   - Payload fields are message-specific and kept verbatim
package model
