// Package mailbox provides the unbounded hand-off queue between the
// broker delivery callback and a feed's drain goroutine. The callback
// thread belongs to the broker client, so Put must never block; Pop
// waits with a bounded timeout so the drain loop can observe shutdown
// promptly.
package mailbox

import (
	"sync"
	"time"

	"feedflow/models"
)

// Queue is an unbounded thread-safe FIFO of decoded bars.
type Queue struct {
	mu     sync.Mutex
	items  []models.BarMessage
	closed bool
	sent   int64

	// signal carries at most one pending wakeup for the single consumer.
	signal chan struct{}
}

func New() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Put appends bar and wakes a waiting Pop. It never blocks and reports
// false once the queue is closed.
func (q *Queue) Put(bar models.BarMessage) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, bar)
	q.sent++
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Pop removes the oldest bar, waiting up to timeout for one to arrive.
// A closed queue returns immediately; pending items are discarded, since
// a queue is only closed when its feed terminates.
func (q *Queue) Pop(timeout time.Duration) (models.BarMessage, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return models.BarMessage{}, false
		}
		if len(q.items) > 0 {
			bar := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return bar, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-deadline.C:
			return models.BarMessage{}, false
		}
	}
}

// Close marks the queue closed and wakes any waiting Pop. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Closed reports whether the queue has been closed.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Sent returns the number of bars accepted since construction.
func (q *Queue) Sent() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sent
}
