package router

import (
	"time"

	"github.com/rickgao/athlete-live/internal/model"
)

// Handler receives every successfully parsed inbound message. Handlers share
// the message value and must not modify it.
type Handler func(model.Message)

// SendFunc sends an outbound message through the connection manager,
// reporting whether it was written immediately.
type SendFunc func(model.Message) bool

// DispatcherStats contains runtime statistics.
type DispatcherStats struct {
	FramesReceived   int64
	MessagesRouted   int64
	ParseErrors      int64
	SubscriberPanics int64
	Subscribers      int
	LastReceivedAt   time.Time
}
