package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/athlete-live/internal/metrics"
	"github.com/rickgao/athlete-live/internal/model"
	"github.com/rickgao/athlete-live/internal/queue"
	"github.com/rickgao/athlete-live/internal/router"
)

// Manager owns the transport, the connection state machine and the send
// path. All exported methods are safe for concurrent use.
type Manager struct {
	cfg        ManagerConfig
	newClient  ClientFactory
	queue      *queue.Queue
	ownsQueue  bool
	logger     *slog.Logger
	metrics    *metrics.Collector
	dispatcher *router.Dispatcher
	keepAlive  *KeepAlive

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	lastErr error
	client  Client
	gen     uint64 // bumped whenever the current transport is abandoned

	reconnect    *time.Timer
	reconnectSeq uint64
	retries      map[uint64]*time.Timer
	retrySeq     uint64

	suspended bool
	deferred  bool // reconnect owed once resumed
	closed    bool

	listeners []func(old, new State)
	changes   []stateChange // fired by unlock
}

type stateChange struct {
	old, new State
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics records connection metrics on c.
func WithMetrics(c *metrics.Collector) ManagerOption {
	return func(m *Manager) {
		m.metrics = c
	}
}

// SendOption overrides the retry defaults for a single Send.
type SendOption func(*sendOptions)

type sendOptions struct {
	retryCount int
	retryDelay time.Duration
}

// WithRetry sets how many delayed retries a send gets before it is queued.
func WithRetry(count int, delay time.Duration) SendOption {
	return func(o *sendOptions) {
		o.retryCount = count
		o.retryDelay = delay
	}
}

// NewManager creates a Manager in the disconnected state. Nothing is dialed
// until Connect or the first Send. A nil queue gets an in-memory default.
func NewManager(cfg ManagerConfig, newClient ClientFactory, q *queue.Queue, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultManagerConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = def.KeepAliveInterval
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	ownsQueue := q == nil
	if ownsQueue {
		q = queue.New(queue.DefaultConfig(), nil, logger)
	}

	m := &Manager{
		cfg:       cfg,
		newClient: newClient,
		queue:     q,
		ownsQueue: ownsQueue,
		logger:    logger,
		retries:   make(map[uint64]*time.Timer),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	var dopts []router.Option
	if m.metrics != nil {
		dopts = append(dopts, router.WithMetrics(m.metrics))
	}
	m.dispatcher = router.NewDispatcher(func(msg model.Message) bool {
		return m.Send(msg)
	}, logger, dopts...)
	m.keepAlive = NewKeepAlive(cfg.KeepAliveInterval, m.sendIfConnected, logger)

	m.metrics.SetState(StateDisconnected.String(), allStates)
	m.metrics.SetQueueDepth(q.Len())

	return m
}

// Connect starts a connection attempt and returns without waiting for it.
// It does nothing while connecting or connected, or after Close.
func (m *Manager) Connect() {
	m.mu.Lock()
	m.connectLocked()
	m.unlock()
}

func (m *Manager) connectLocked() {
	if m.closed || m.state != StateDisconnected {
		return
	}
	m.cancelReconnectLocked()
	m.deferred = false

	m.gen++
	gen := m.gen
	c := m.newClient()
	m.setStateLocked(StateConnecting)

	go m.open(gen, c)
}

// open dials c and, if it is still the current attempt, promotes it.
func (m *Manager) open(gen uint64, c Client) {
	err := c.Connect(m.ctx)

	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		c.Close()
		return
	}
	if err != nil {
		stale := m.failLocked(fmt.Errorf("connect: %w", err))
		m.unlock()
		if stale != nil {
			stale.Close()
		}
		c.Close()
		return
	}

	m.client = c
	m.setStateLocked(StateConnected)
	m.metrics.IncConnects()
	m.logger.Info("connected")

	m.flushLocked(c)
	m.keepAlive.Start()
	go m.pump(gen, c)
	m.unlock()
}

// flushLocked drains the pending queue onto c in FIFO order.
func (m *Manager) flushLocked(c Client) {
	if m.queue.Len() == 0 {
		return
	}
	res := m.queue.Flush(func(msg model.Message) error {
		data, err := msg.Encode()
		if err != nil {
			return err
		}
		return c.Send(data)
	})
	m.metrics.AddFlushed(res.Attempted - res.Failed)
	m.metrics.SetQueueDepth(m.queue.Len())
	m.logger.Info("flushed pending messages",
		"attempted", res.Attempted,
		"failed", res.Failed,
	)
}

// pump moves inbound frames from one transport to the dispatcher until that
// transport ends.
func (m *Manager) pump(gen uint64, c Client) {
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-c.Done():
			return
		case msg := <-c.Messages():
			m.dispatcher.Dispatch(msg.Data, msg.ReceivedAt)
		case err := <-c.Errors():
			// Frames read before the failure still belong to the stream.
			m.drain(c)
			m.transportFailed(gen, err)
			return
		}
	}
}

func (m *Manager) drain(c Client) {
	for {
		select {
		case msg := <-c.Messages():
			m.dispatcher.Dispatch(msg.Data, msg.ReceivedAt)
		default:
			return
		}
	}
}

func (m *Manager) transportFailed(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || m.closed || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	stale := m.failLocked(err)
	m.unlock()
	if stale != nil {
		stale.Close()
	}
}

// failLocked moves to disconnected, records err and schedules a reconnect.
// It returns the abandoned transport, which the caller closes after
// releasing the lock.
func (m *Manager) failLocked(err error) Client {
	m.lastErr = err
	m.metrics.IncTransportErrors()
	m.keepAlive.Stop()

	stale := m.client
	m.client = nil
	m.gen++
	m.setStateLocked(StateDisconnected)

	m.logger.Warn("connection lost", "error", err)
	m.scheduleReconnectLocked()
	return stale
}

func (m *Manager) scheduleReconnectLocked() {
	if m.closed {
		return
	}
	if m.suspended {
		m.deferred = true
		m.logger.Debug("reconnect deferred while suspended")
		return
	}
	m.cancelReconnectLocked()
	m.reconnectSeq++
	seq := m.reconnectSeq
	m.reconnect = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.reconnectFired(seq)
	})
	m.logger.Debug("reconnect scheduled", "delay", m.cfg.ReconnectDelay)
}

func (m *Manager) reconnectFired(seq uint64) {
	m.mu.Lock()
	if seq != m.reconnectSeq || m.closed {
		m.mu.Unlock()
		return
	}
	m.reconnect = nil
	if m.suspended {
		m.deferred = true
		m.mu.Unlock()
		return
	}
	m.metrics.IncReconnects()
	m.connectLocked()
	m.unlock()
}

func (m *Manager) cancelReconnectLocked() {
	m.reconnectSeq++
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

// Send writes msg if connected and reports whether it was written now.
//
// Otherwise the message is retried after the retry delay, up to the retry
// count; once retries are exhausted it is queued, a connection attempt is
// started, and it is flushed on the next connect. A false return does not
// mean the message was lost.
func (m *Manager) Send(msg model.Message, opts ...SendOption) bool {
	o := sendOptions{retryCount: m.cfg.RetryCount, retryDelay: m.cfg.RetryDelay}
	for _, opt := range opts {
		opt(&o)
	}

	if err := msg.Validate(); err != nil {
		m.logger.Warn("refusing to send invalid message", "error", err)
		m.metrics.ObserveSend(metrics.SendFailed)
		return false
	}
	data, err := msg.Encode()
	if err != nil {
		m.logger.Warn("failed to encode message", "type", msg.Type(), "error", err)
		m.metrics.ObserveSend(metrics.SendFailed)
		return false
	}

	m.mu.Lock()
	ok, stale := m.sendLocked(msg, data, o)
	m.unlock()

	if stale != nil {
		stale.Close()
	}
	return ok
}

func (m *Manager) sendLocked(msg model.Message, data []byte, o sendOptions) (bool, Client) {
	if m.closed {
		m.logger.Debug("dropping send after close", "type", msg.Type())
		m.metrics.ObserveSend(metrics.SendFailed)
		return false, nil
	}

	if m.state == StateConnected {
		err := m.client.Send(data)
		if err == nil {
			m.metrics.ObserveSend(metrics.SendSent)
			return true, nil
		}
		// The transport is broken; keep the message for the next connection.
		m.enqueueLocked(msg, o)
		return false, m.failLocked(fmt.Errorf("write: %w", err))
	}

	if o.retryCount > 0 {
		m.scheduleRetryLocked(msg, data, sendOptions{
			retryCount: o.retryCount - 1,
			retryDelay: o.retryDelay,
		})
		m.metrics.ObserveSend(metrics.SendRetried)
		return false, nil
	}

	m.enqueueLocked(msg, o)
	m.connectLocked()
	return false, nil
}

// sendIfConnected writes msg only if a transport is up. Keepalive pings use
// it: a ping that misses its connection is worthless, so it is never retried
// or queued.
func (m *Manager) sendIfConnected(msg model.Message) bool {
	data, err := msg.Encode()
	if err != nil {
		m.logger.Warn("failed to encode message", "type", msg.Type(), "error", err)
		return false
	}

	m.mu.Lock()
	if m.closed || m.state != StateConnected {
		m.mu.Unlock()
		m.logger.Debug("skipping send while not connected", "type", msg.Type())
		return false
	}
	var stale Client
	err = m.client.Send(data)
	if err == nil {
		m.metrics.ObserveSend(metrics.SendSent)
		if msg.Type() == model.TypePing {
			m.metrics.IncPings()
		}
	} else {
		stale = m.failLocked(fmt.Errorf("write: %w", err))
	}
	m.unlock()

	if stale != nil {
		stale.Close()
	}
	return err == nil
}

// scheduleRetryLocked arms a retry timer. The callback takes m.mu, so it
// cannot observe the map before the timer is stored.
func (m *Manager) scheduleRetryLocked(msg model.Message, data []byte, o sendOptions) {
	m.retrySeq++
	id := m.retrySeq
	m.retries[id] = time.AfterFunc(o.retryDelay, func() {
		m.retryFired(id, msg, data, o)
	})
}

func (m *Manager) retryFired(id uint64, msg model.Message, data []byte, o sendOptions) {
	m.mu.Lock()
	if _, ok := m.retries[id]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.retries, id)
	_, stale := m.sendLocked(msg, data, o)
	m.unlock()

	if stale != nil {
		stale.Close()
	}
}

func (m *Manager) enqueueLocked(msg model.Message, o sendOptions) {
	if _, err := m.queue.Enqueue(msg, o.retryCount, o.retryDelay); err != nil {
		m.logger.Warn("failed to queue message", "type", msg.Type(), "error", err)
		m.metrics.ObserveSend(metrics.SendFailed)
		return
	}
	m.metrics.ObserveSend(metrics.SendQueued)
	m.metrics.SetQueueDepth(m.queue.Len())
}

// Subscribe registers h for every inbound message.
func (m *Manager) Subscribe(h router.Handler) (unsubscribe func()) {
	return m.dispatcher.Subscribe(h)
}

// AuthenticateParentView sends the parent_view token handshake. The reply
// arrives through subscribers as parent_view_success or error.
func (m *Manager) AuthenticateParentView(token string) bool {
	return m.dispatcher.AuthenticateParentView(token)
}

// Dispatcher exposes the inbound dispatcher.
func (m *Manager) Dispatcher() *router.Dispatcher {
	return m.dispatcher
}

// KeepAliveStats returns keepalive counters.
func (m *Manager) KeepAliveStats() KeepAliveStats {
	return m.keepAlive.Stats()
}

// OnStateChange registers fn to run after every state transition. Callbacks
// run without the Manager lock held, so they may call back into it.
func (m *Manager) OnStateChange(fn func(old, new State)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the most recent transport failure.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Status returns a snapshot of the Manager.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:      m.state,
		LastError:  m.lastErr,
		QueueDepth: m.queue.Len(),
		Suspended:  m.suspended,
		Closed:     m.closed,
	}
}

// Suspend defers automatic reconnection until Resume. An open connection
// is left alone.
func (m *Manager) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.suspended {
		return
	}
	m.suspended = true
	m.logger.Debug("suspended")
}

// Resume re-enables automatic reconnection and connects at once if a
// reconnect was deferred while suspended.
func (m *Manager) Resume() {
	m.mu.Lock()
	if !m.suspended {
		m.mu.Unlock()
		return
	}
	m.suspended = false
	if m.deferred {
		m.logger.Debug("resuming deferred reconnect")
		m.connectLocked()
	}
	m.unlock()
}

// Close stops keepalive, the reconnect timer and every pending retry,
// cancels an in-flight dial and closes the transport. The Manager does not
// reconnect afterwards. Queued messages stay in the queue and its store; a
// queue passed to NewManager is left open for its owner to close.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.keepAlive.Stop()
	m.cancelReconnectLocked()
	for id, t := range m.retries {
		t.Stop()
		delete(m.retries, id)
	}
	m.deferred = false
	m.gen++
	c := m.client
	m.client = nil
	m.setStateLocked(StateDisconnected)
	m.cancel()
	m.unlock()

	m.logger.Info("connection manager closed", "pending", m.queue.Len())
	if m.ownsQueue {
		m.queue.Close()
	}

	if c != nil {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close transport: %w", err)
		}
	}
	return nil
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.changes = append(m.changes, stateChange{old: m.state, new: s})
	m.state = s
}

// unlock releases m.mu and then reports the transitions made while it was
// held.
func (m *Manager) unlock() {
	changes := m.changes
	m.changes = nil
	var listeners []func(old, new State)
	if len(changes) > 0 {
		listeners = append(listeners, m.listeners...)
	}
	m.mu.Unlock()

	for _, ch := range changes {
		m.metrics.SetState(ch.new.String(), allStates)
		m.logger.Debug("state change", "from", ch.old, "to", ch.new)
		for _, fn := range listeners {
			fn(ch.old, ch.new)
		}
	}
}
