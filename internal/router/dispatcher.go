package router

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rickgao/athlete-live/internal/metrics"
	"github.com/rickgao/athlete-live/internal/model"
)

var (
	errInvalidJSON = errors.New("frame is not valid JSON")
	errNotObject   = errors.New("frame is not a JSON object")
)

type subscriber struct {
	id      uint64
	handler Handler
}

// Dispatcher parses inbound frames and fans them out to subscribers.
type Dispatcher struct {
	send    SendFunc
	logger  *slog.Logger
	metrics *metrics.Collector

	mu     sync.RWMutex
	subs   []subscriber
	nextID uint64

	// Last received message
	last   model.Message
	lastAt time.Time

	// Stats
	received    int64
	routed      int64
	parseErrors int64
	panics      int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records dispatch metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) {
		d.metrics = c
	}
}

// NewDispatcher creates a Dispatcher. send is used by the convenience
// operations such as AuthenticateParentView.
func NewDispatcher(send SendFunc, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		send:   send,
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers h for every inbound message. The returned function
// removes it; calling it more than once is harmless.
func (d *Dispatcher) Subscribe(h Handler) (unsubscribe func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscriber{id: id, handler: h})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, s := range d.subs {
				if s.id == id {
					// Copy so snapshots held by in-flight dispatches stay intact.
					next := make([]subscriber, 0, len(d.subs)-1)
					next = append(next, d.subs[:i]...)
					next = append(next, d.subs[i+1:]...)
					d.subs = next
					return
				}
			}
		})
	}
}

// SubscriberCount returns the number of registered subscribers.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Dispatch parses one frame and routes it. Malformed frames are dropped.
func (d *Dispatcher) Dispatch(frame []byte, receivedAt time.Time) {
	d.mu.Lock()
	d.received++
	d.mu.Unlock()
	d.metrics.IncFrames()

	msg, err := d.parse(frame)
	if err != nil {
		d.mu.Lock()
		d.parseErrors++
		d.mu.Unlock()
		d.metrics.IncParseErrors()
		d.logger.Warn("dropping malformed frame", "error", err, "size", len(frame))
		return
	}

	d.mu.Lock()
	d.last = msg
	d.lastAt = receivedAt
	d.routed++
	subs := d.subs
	d.mu.Unlock()

	for _, s := range subs {
		d.deliver(s, msg)
	}
}

// parse validates the frame and builds the message from a single gjson
// parse. The type is checked before the object is materialized so frames
// without one are rejected cheaply.
func (d *Dispatcher) parse(frame []byte) (model.Message, error) {
	if !gjson.ValidBytes(frame) {
		return nil, errInvalidJSON
	}
	root := gjson.ParseBytes(frame)
	if !root.IsObject() {
		return nil, errNotObject
	}
	if t := root.Get("type"); t.Type != gjson.String || t.Str == "" {
		return nil, model.ErrMissingType
	}
	fields, ok := root.Value().(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return model.Message(fields), nil
}

// deliver invokes one subscriber, containing any panic.
func (d *Dispatcher) deliver(s subscriber, msg model.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.mu.Lock()
			d.panics++
			d.mu.Unlock()
			d.metrics.IncSubscriberPanics()
			d.logger.Error("subscriber panicked",
				"subscriber", s.id,
				"type", msg.Type(),
				"panic", r,
			)
		}
	}()
	s.handler(msg)
}

// LastMessage returns the most recent well-formed inbound message, if any.
func (d *Dispatcher) LastMessage() (model.Message, time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.lastAt, d.last != nil
}

// AuthenticateParentView sends the parent view handshake for token. The
// server's reply arrives through the normal subscriber path.
func (d *Dispatcher) AuthenticateParentView(token string) bool {
	return d.send(model.ParentView(token))
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return DispatcherStats{
		FramesReceived:   d.received,
		MessagesRouted:   d.routed,
		ParseErrors:      d.parseErrors,
		SubscriberPanics: d.panics,
		Subscribers:      len(d.subs),
		LastReceivedAt:   d.lastAt,
	}
}
