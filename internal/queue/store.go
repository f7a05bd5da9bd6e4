package queue

import (
	"context"

	"github.com/google/uuid"
)

// Store persists pending entries so they survive a process restart. The
// queue calls SaveAll and DeleteAll from its own writer goroutine, never
// from Enqueue or Flush.
type Store interface {
	// SaveAll records newly enqueued entries. Saving an ID twice is a no-op.
	SaveAll(ctx context.Context, entries []Entry) error

	// DeleteAll removes entries that were flushed or dropped.
	DeleteAll(ctx context.Context, ids []uuid.UUID) error

	// Load returns all stored entries in enqueue order.
	Load(ctx context.Context) ([]Entry, error)
}
