package connection

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/athlete-live/internal/model"
)

// KeepAlive sends an application-level ping on a fixed interval while
// started. It has no error handling of its own: the send function decides
// what happens to a ping that cannot be written.
type KeepAlive struct {
	interval time.Duration
	send     func(model.Message) bool
	logger   *slog.Logger

	mu   sync.Mutex
	stop chan struct{}

	pings atomic.Int64
}

// KeepAliveStats holds keepalive counters.
type KeepAliveStats struct {
	Running bool
	Pings   int64
}

// NewKeepAlive creates a stopped KeepAlive.
func NewKeepAlive(interval time.Duration, send func(model.Message) bool, logger *slog.Logger) *KeepAlive {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultManagerConfig().KeepAliveInterval
	}
	return &KeepAlive{
		interval: interval,
		send:     send,
		logger:   logger,
	}
}

// Start begins the ping ticker. Starting a running KeepAlive is a no-op.
// Start never blocks, so it may be called with the Manager lock held.
func (k *KeepAlive) Start() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stop != nil {
		return
	}
	stop := make(chan struct{})
	k.stop = stop
	go k.loop(stop)
}

// Stop ends the ticker. It does not wait for an in-progress send.
func (k *KeepAlive) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stop == nil {
		return
	}
	close(k.stop)
	k.stop = nil
}

// Running reports whether the ticker is active.
func (k *KeepAlive) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stop != nil
}

// Stats returns keepalive counters.
func (k *KeepAlive) Stats() KeepAliveStats {
	return KeepAliveStats{
		Running: k.Running(),
		Pings:   k.pings.Load(),
	}
}

func (k *KeepAlive) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// A tick and a Stop can be ready together.
			select {
			case <-stop:
				return
			default:
			}
			k.pings.Add(1)
			if !k.send(model.Ping()) {
				k.logger.Debug("keepalive ping not written immediately")
			}
		}
	}
}
