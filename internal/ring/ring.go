// Package ring provides the bounded per-symbol bar buffer. Staleness is
// preferred over unbounded memory growth: when full, the oldest entry is
// evicted.
package ring

import (
	"sync"

	"feedflow/models"
)

// DefaultCapacity bounds per-symbol memory when no capacity is
// configured.
const DefaultCapacity = 1000

// Stats counts buffer traffic since construction.
type Stats struct {
	Pushed  int64
	Popped  int64
	Evicted int64
}

// Buffer is a bounded FIFO of decoded bars with drop-oldest eviction.
// It has exactly one writer (the feed's drain goroutine) and one reader
// (the execution engine pulling bars); the mutex exists because status
// snapshots also read Len and Stats concurrently.
type Buffer struct {
	mu    sync.Mutex
	buf   []models.BarMessage
	head  int
	size  int
	stats Stats
}

func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{buf: make([]models.BarMessage, capacity)}
}

// Push appends bar in arrival order, evicting the oldest entry when the
// buffer is at capacity. It reports whether an eviction happened.
func (b *Buffer) Push(bar models.BarMessage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := false
	if b.size == len(b.buf) {
		b.buf[b.head] = models.BarMessage{}
		b.head = (b.head + 1) % len(b.buf)
		b.size--
		evicted = true
		b.stats.Evicted++
	}

	b.buf[(b.head+b.size)%len(b.buf)] = bar
	b.size++
	b.stats.Pushed++
	return evicted
}

// Pop removes and returns the oldest buffered bar.
func (b *Buffer) Pop() (models.BarMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return models.BarMessage{}, false
	}

	bar := b.buf[b.head]
	b.buf[b.head] = models.BarMessage{}
	b.head = (b.head + 1) % len(b.buf)
	b.size--
	b.stats.Popped++
	return bar, true
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer) Cap() int {
	return len(b.buf)
}

func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
