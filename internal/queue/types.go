package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/athlete-live/internal/model"
)

// Errors
var (
	ErrQueueFull = errors.New("queue full")
	ErrClosed    = errors.New("queue closed")
)

// Policy decides what happens when Enqueue is called on a full queue.
type Policy int

const (
	// DropOldest evicts the head entry to make room for the new one.
	DropOldest Policy = iota
	// DropNewest discards the entry being enqueued.
	DropNewest
	// Reject refuses the entry and returns ErrQueueFull.
	Reject
)

// String returns the config spelling of the policy.
func (p Policy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParsePolicy parses the config spelling of a policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "drop-oldest", "":
		return DropOldest, nil
	case "drop-newest":
		return DropNewest, nil
	case "reject":
		return Reject, nil
	}
	return DropOldest, fmt.Errorf("unknown overflow policy %q", s)
}

// Config configures a Queue.
type Config struct {
	Capacity     int           // Max pending entries
	InitialSize  int           // Initial ring size; grows by doubling up to Capacity
	Overflow     Policy        // Behaviour when full
	StoreTimeout time.Duration // Per-call timeout for Store operations
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:     1024,
		InitialSize:  16,
		Overflow:     DropOldest,
		StoreTimeout: 2 * time.Second,
	}
}

// Entry is a message waiting for a usable connection.
type Entry struct {
	ID         uuid.UUID
	Message    model.Message
	RetryCount int           // Retry budget the send was configured with
	RetryDelay time.Duration // Retry delay the send was configured with
	EnqueuedAt time.Time
}

// FlushResult summarizes a single Flush.
type FlushResult struct {
	Attempted int
	Failed    int
}

// Stats contains queue statistics.
type Stats struct {
	Count       int
	Capacity    int
	Enqueued    int64
	Flushed     int64
	SendErrors  int64
	Evicted     int64 // Entries discarded by DropOldest/DropNewest
	Rejected    int64 // Entries refused by Reject
	StoreErrors int64
}
