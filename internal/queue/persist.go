package queue

import (
	"context"

	"github.com/google/uuid"
)

type storeOp struct {
	entry  Entry
	delete bool
}

func (q *Queue) recordSaveLocked(e Entry) {
	if q.store == nil {
		return
	}
	q.ops = append(q.ops, storeOp{entry: e})
	q.wakeWriter()
}

func (q *Queue) recordDeleteLocked(e Entry) {
	if q.store == nil {
		return
	}
	q.ops = append(q.ops, storeOp{entry: e, delete: true})
	q.wakeWriter()
}

func (q *Queue) wakeWriter() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Sync blocks until every store operation recorded before the call has been
// applied, or ctx is done.
func (q *Queue) Sync(ctx context.Context) error {
	if q.store == nil {
		return nil
	}

	done := make(chan struct{})
	q.mu.Lock()
	if q.writerStopped {
		q.mu.Unlock()
		return ErrClosed
	}
	q.waiters = append(q.waiters, done)
	q.wakeWriter()
	q.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writeLoop applies recorded store operations in batches until stop is
// closed, then drains what is left.
func (q *Queue) writeLoop() {
	defer close(q.writerDone)

	for {
		select {
		case <-q.wake:
			q.writePending()
		case <-q.stop:
			q.writePending()
			q.mu.Lock()
			q.writerStopped = true
			waiters := q.waiters
			q.waiters = nil
			q.mu.Unlock()
			for _, w := range waiters {
				close(w)
			}
			return
		}
	}
}

func (q *Queue) writePending() {
	q.mu.Lock()
	ops := q.ops
	q.ops = nil
	waiters := q.waiters
	q.waiters = nil
	q.mu.Unlock()

	if len(ops) > 0 {
		saves, deletes := coalesce(ops)
		q.apply(saves, deletes)
	}
	for _, w := range waiters {
		close(w)
	}
}

// coalesce folds a run of operations into one save set and one delete set.
// An entry saved and deleted within the same run never reaches the store.
func coalesce(ops []storeOp) ([]Entry, []uuid.UUID) {
	pending := make(map[uuid.UUID]int)
	var saves []Entry
	var deletes []uuid.UUID

	for _, op := range ops {
		id := op.entry.ID
		if !op.delete {
			pending[id] = len(saves)
			saves = append(saves, op.entry)
			continue
		}
		if i, ok := pending[id]; ok {
			saves[i].ID = uuid.Nil
			delete(pending, id)
			continue
		}
		deletes = append(deletes, id)
	}

	kept := saves[:0]
	for _, e := range saves {
		if e.ID != uuid.Nil {
			kept = append(kept, e)
		}
	}
	return kept, deletes
}

func (q *Queue) apply(saves []Entry, deletes []uuid.UUID) {
	if len(saves) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), q.cfg.StoreTimeout)
		err := q.store.SaveAll(ctx, saves)
		cancel()
		if err != nil {
			q.storeFailed("save", len(saves), err)
		}
	}
	if len(deletes) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), q.cfg.StoreTimeout)
		err := q.store.DeleteAll(ctx, deletes)
		cancel()
		if err != nil {
			q.storeFailed("delete", len(deletes), err)
		}
	}
}

func (q *Queue) storeFailed(op string, n int, err error) {
	q.mu.Lock()
	q.stats.StoreErrors++
	q.mu.Unlock()
	q.logger.Warn("pending store operation failed", "op", op, "entries", n, "error", err)
}
