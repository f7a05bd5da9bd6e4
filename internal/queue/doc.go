// Package queue implements the pending message queue.
//
// Messages that cannot be delivered because the realtime connection is not
// usable wait here until the connection manager flushes them on the next
// transition into the connected state:
//   - Strict FIFO; no reordering or prioritization
//   - Bounded, with an explicit overflow policy (drop-oldest, drop-newest, reject)
//   - Optionally mirrored to a Store so pending messages survive a restart;
//     store writes are batched on a writer goroutine and never block callers
package queue
