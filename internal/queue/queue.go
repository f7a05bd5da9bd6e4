package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/athlete-live/internal/model"
)

// Queue is a bounded, thread-safe FIFO of pending messages. The ring buffer
// doubles in size as it fills, up to Capacity.
type Queue struct {
	cfg    Config
	store  Store
	logger *slog.Logger

	mu     sync.Mutex
	buf    []Entry
	head   int // read position
	tail   int // write position
	count  int
	closed bool

	// Store writer
	ops           []storeOp
	waiters       []chan struct{}
	wake          chan struct{}
	stop          chan struct{}
	writerDone    chan struct{}
	writerStopped bool

	stats Stats
}

// New creates a queue. A nil store keeps entries in memory only; otherwise a
// writer goroutine mirrors the queue to the store until Close.
func New(cfg Config, store Store, logger *slog.Logger) *Queue {
	def := DefaultConfig()
	if cfg.Capacity < 1 {
		cfg.Capacity = def.Capacity
	}
	if cfg.InitialSize < 1 {
		cfg.InitialSize = def.InitialSize
	}
	if cfg.InitialSize > cfg.Capacity {
		cfg.InitialSize = cfg.Capacity
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		cfg:    cfg,
		store:  store,
		logger: logger,
		buf:    make([]Entry, cfg.InitialSize),
	}
	if store != nil {
		q.wake = make(chan struct{}, 1)
		q.stop = make(chan struct{})
		q.writerDone = make(chan struct{})
		go q.writeLoop()
	}
	return q
}

// Enqueue appends a message to the tail.
//
// When the queue is full the overflow policy applies: DropOldest evicts the
// head and succeeds, DropNewest and Reject return ErrQueueFull. Enqueue never
// waits on the store.
func (q *Queue) Enqueue(msg model.Message, retryCount int, retryDelay time.Duration) (Entry, error) {
	entry := Entry{
		ID:         uuid.New(),
		Message:    msg,
		RetryCount: retryCount,
		RetryDelay: retryDelay,
		EnqueuedAt: time.Now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Entry{}, ErrClosed
	}

	var evicted *Entry
	if q.count == q.cfg.Capacity {
		switch q.cfg.Overflow {
		case DropOldest:
			old := q.popLocked()
			evicted = &old
			q.stats.Evicted++
			q.recordDeleteLocked(old)
		case DropNewest:
			q.stats.Evicted++
			q.mu.Unlock()
			q.logger.Warn("pending queue full, dropping newest message",
				"type", msg.Type(),
				"capacity", q.cfg.Capacity,
			)
			return Entry{}, ErrQueueFull
		default:
			q.stats.Rejected++
			q.mu.Unlock()
			q.logger.Warn("pending queue full, rejecting message",
				"type", msg.Type(),
				"capacity", q.cfg.Capacity,
			)
			return Entry{}, ErrQueueFull
		}
	}

	q.pushLocked(entry)
	q.stats.Enqueued++
	q.recordSaveLocked(entry)
	q.mu.Unlock()

	if evicted != nil {
		q.logger.Warn("pending queue full, dropped oldest message",
			"type", evicted.Message.Type(),
			"id", evicted.ID,
			"queued_for", time.Since(evicted.EnqueuedAt),
		)
	}

	return entry, nil
}

// Flush drains the queue head to tail, calling send for each message. An
// entry is removed once its send has been attempted; failed sends are logged
// and not re-enqueued.
func (q *Queue) Flush(send func(model.Message) error) FlushResult {
	var res FlushResult

	for {
		q.mu.Lock()
		if q.count == 0 {
			q.mu.Unlock()
			return res
		}
		entry := q.buf[q.head]
		q.mu.Unlock()

		err := send(entry.Message)
		res.Attempted++

		q.mu.Lock()
		// Only pop if the head is still the entry we sent; a concurrent
		// DropOldest may have evicted it.
		if q.count > 0 && q.buf[q.head].ID == entry.ID {
			q.popLocked()
			q.recordDeleteLocked(entry)
		}
		q.stats.Flushed++
		if err != nil {
			q.stats.SendErrors++
			res.Failed++
		}
		q.mu.Unlock()

		if err != nil {
			q.logger.Warn("failed to flush pending message",
				"type", entry.Message.Type(),
				"id", entry.ID,
				"error", err,
			)
		}
	}
}

// Restore loads persisted entries from the store and appends them, oldest
// first. Call it before the first Enqueue so restored entries keep their
// place ahead of new ones. Entries beyond capacity are subject to the
// overflow policy, and anything dropped is deleted from the store so it is
// not loaded again.
func (q *Queue) Restore(ctx context.Context) (int, error) {
	if q.store == nil {
		return 0, nil
	}
	entries, err := q.store.Load(ctx)
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	restored, dropped := 0, 0
	for _, e := range entries {
		if q.count == q.cfg.Capacity {
			if q.cfg.Overflow != DropOldest {
				q.stats.Rejected++
				q.recordDeleteLocked(e)
				dropped++
				continue
			}
			q.recordDeleteLocked(q.popLocked())
			q.stats.Evicted++
			dropped++
		}
		q.pushLocked(e)
		restored++
	}

	if dropped > 0 {
		q.logger.Warn("pending queue full during restore, dropped stored messages",
			"dropped", dropped,
			"policy", q.cfg.Overflow,
		)
	}
	if restored > 0 {
		q.logger.Info("restored pending messages", "count", restored)
	}
	return restored, nil
}

// Close refuses further entries, waits for the store writer to apply what
// was recorded and stops it. Pending entries stay in the store.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	if q.store == nil {
		return
	}
	close(q.stop)
	<-q.writerDone
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Entries returns a copy of the pending entries in FIFO order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, q.count)
	for i := 0; i < q.count; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// Stats returns queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Count = q.count
	s.Capacity = q.cfg.Capacity
	return s
}

// pushLocked appends to the tail, growing the ring if needed. Must be called
// with lock held and count < Capacity.
func (q *Queue) pushLocked(e Entry) {
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[q.tail] = e
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
}

// popLocked removes the head. Must be called with lock held and count > 0.
func (q *Queue) popLocked() Entry {
	e := q.buf[q.head]
	q.buf[q.head] = Entry{} // Clear reference for GC
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return e
}

// grow doubles the ring size, capped at Capacity. Must be called with lock held.
func (q *Queue) grow() {
	newSize := len(q.buf) * 2
	if newSize > q.cfg.Capacity {
		newSize = q.cfg.Capacity
	}
	newBuf := make([]Entry, newSize)

	// Copy existing items in order
	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count % newSize
}
