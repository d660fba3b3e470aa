// Package feed owns the live bar pipeline for one symbol: broker
// deliveries land in a mailbox queue, a drain goroutine moves them into
// a bounded ring buffer, and the consumer pulls bars out with Load. A
// supervisor goroutine watches the streaming pull and re-subscribes
// with a fixed backoff when it dies.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"feedflow/config"
	"feedflow/internal/mailbox"
	"feedflow/internal/ring"
	"feedflow/logger"
	"feedflow/models"
	"feedflow/subscriber"
)

// Config carries the per-feed knobs. Zero values fall back to the
// defaults used by config.LoadConfig.
type Config struct {
	Symbol       string
	Subscription string

	Capacity     int
	QueueCheckMs int

	ReconnectBackoffMs   int
	MaxReconnectAttempts int
}

func (c *Config) applyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = config.DefaultBufferCapacity
	}
	if c.QueueCheckMs <= 0 {
		c.QueueCheckMs = config.DefaultQueueCheckMs
	}
	if c.ReconnectBackoffMs <= 0 {
		c.ReconnectBackoffMs = config.DefaultReconnectBackoffMs
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = config.DefaultMaxReconnectAttempts
	}
}

// Feed is the per-symbol consumer. It is safe for concurrent use; the
// consumer calls Load from its own goroutine while broker deliveries
// arrive on the client's callbacks.
type Feed struct {
	config Config
	source subscriber.Source
	client *subscriber.Client
	log    *logger.Log

	queue *mailbox.Queue
	buf   *ring.Buffer

	mu       sync.RWMutex
	state    models.FeedState
	stopped  bool
	handle   *subscriber.Handle
	lastBar  time.Time
	hasLast  bool
	attempts int

	stopCh chan struct{}
	wg     sync.WaitGroup

	// overflowLimit throttles eviction logging while the consumer lags.
	overflowLimit *rate.Limiter
}

// New builds a stopped feed for cfg.Symbol. Start opens the stream.
func New(source subscriber.Source, cfg Config) *Feed {
	cfg.applyDefaults()
	f := &Feed{
		config:        cfg,
		source:        source,
		log:           logger.GetLogger(),
		queue:         mailbox.New(),
		buf:           ring.New(cfg.Capacity),
		state:         models.FeedStopped,
		stopCh:        make(chan struct{}),
		overflowLimit: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	f.client = subscriber.NewClient(source, cfg.Subscription, cfg.Symbol, f.enqueue)
	return f
}

// Start subscribes and launches the drain and supervisor goroutines.
// A feed starts at most once; after Stop it stays terminated.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return fmt.Errorf("feed %s is already stopped", f.config.Symbol)
	}
	if f.state != models.FeedStopped {
		f.mu.Unlock()
		return fmt.Errorf("feed %s cannot start from state %s", f.config.Symbol, f.state)
	}
	f.state = models.FeedStarting
	f.mu.Unlock()

	handle, err := f.client.Subscribe(ctx)
	if err != nil {
		f.mu.Lock()
		f.state = models.FeedStopped
		f.mu.Unlock()
		return fmt.Errorf("failed to start feed %s: %w", f.config.Symbol, err)
	}

	f.mu.Lock()
	f.handle = handle
	f.state = models.FeedRunning
	f.mu.Unlock()

	f.wg.Add(2)
	go f.drain()
	go f.supervise(ctx, handle)

	f.log.WithComponent("feed").WithFields(logger.Fields{
		"symbol":       f.config.Symbol,
		"subscription": f.config.Subscription,
		"capacity":     f.config.Capacity,
	}).Info("feed started")
	return nil
}

// Stop cancels the stream and waits for the drain and supervisor
// goroutines to exit. Safe to call more than once and on a feed that
// never started.
func (f *Feed) Stop() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.stopped = true
	f.state = models.FeedStopped
	handle := f.handle
	f.mu.Unlock()

	close(f.stopCh)
	if handle != nil {
		handle.Cancel()
	}
	f.queue.Close()
	f.wg.Wait()

	f.log.WithComponent("feed").WithFields(logger.Fields{
		"symbol": f.config.Symbol,
	}).Info("feed stopped")
}

// Load pulls the oldest buffered bar. The tri-state result lets the
// consumer tell "no data yet" apart from "feed is gone":
//
//	LoadLoaded  a bar was returned
//	LoadEmpty   feed alive, buffer momentarily empty
//	LoadEnded   feed stopped or failed; no more data will come
//
// A failed feed reports LoadEnded even when bars remain buffered, so
// the consumer never trades on a stream known to be dead.
func (f *Feed) Load() (models.BarMessage, models.LoadResult) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.state.Alive() {
		return models.BarMessage{}, models.LoadEnded
	}
	bar, ok := f.buf.Pop()
	if !ok {
		return models.BarMessage{}, models.LoadEmpty
	}
	return bar, models.LoadLoaded
}

// Status reports a point-in-time snapshot for health endpoints.
func (f *Feed) Status() models.FeedStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st := models.FeedStatus{
		Symbol:   f.config.Symbol,
		State:    f.state.String(),
		Buffered: f.buf.Len(),
		Capacity: f.buf.Cap(),
	}
	if f.hasLast {
		st.LastBarTime = f.lastBar
	}
	return st
}

// State returns the current lifecycle state.
func (f *Feed) State() models.FeedState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// enqueue runs on the broker client's delivery goroutines. It must not
// block: a full mailbox is impossible (the queue is unbounded), but a
// closed one means the feed is terminating and the bar is discarded.
func (f *Feed) enqueue(bar models.BarMessage) bool {
	return f.queue.Put(bar)
}

// drain moves bars from the mailbox into the ring buffer. Polling with
// a timeout instead of blocking forever keeps shutdown latency bounded
// by the queue check interval even if the close signal is missed.
func (f *Feed) drain() {
	defer f.wg.Done()
	qcheck := time.Duration(f.config.QueueCheckMs) * time.Millisecond

	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		bar, ok := f.queue.Pop(qcheck)
		if !ok {
			if f.queue.Closed() {
				return
			}
			continue
		}

		if evicted := f.buf.Push(bar); evicted {
			logger.IncrementBufferDrop()
			if f.overflowLimit.Allow() {
				f.log.WithComponent("feed").WithFields(logger.Fields{
					"symbol":   f.config.Symbol,
					"capacity": f.config.Capacity,
				}).Info("buffer full, evicting oldest bar")
			}
		}

		f.mu.Lock()
		f.lastBar = bar.Timestamp
		f.hasLast = true
		f.mu.Unlock()
	}
}

// supervise watches the streaming pull and re-subscribes when it dies.
// The attempt counter resets on every successful re-subscribe, so only
// consecutive failures count toward the ceiling.
func (f *Feed) supervise(ctx context.Context, handle *subscriber.Handle) {
	defer f.wg.Done()
	backoff := time.Duration(f.config.ReconnectBackoffMs) * time.Millisecond

	for {
		var err error
		select {
		case <-f.stopCh:
			return
		case err = <-handle.Done():
		}

		if err == nil {
			// Clean cancellation, Stop is in flight.
			return
		}

		f.log.WithComponent("feed").WithFields(logger.Fields{
			"symbol":       f.config.Symbol,
			"subscription": f.config.Subscription,
		}).WithError(err).Warn("streaming pull terminated")

		next, ok := f.reconnect(ctx, backoff)
		if !ok {
			return
		}
		handle = next
	}
}

// reconnect retries the subscription until it succeeds, the feed stops,
// or the consecutive-failure ceiling is reached. On the ceiling the
// feed transitions to failed and closes its mailbox; buffered bars stay
// unread because Load refuses a dead feed.
func (f *Feed) reconnect(ctx context.Context, backoff time.Duration) (*subscriber.Handle, bool) {
	for {
		f.mu.Lock()
		if f.stopped {
			f.mu.Unlock()
			return nil, false
		}
		f.attempts++
		attempt := f.attempts
		if attempt > f.config.MaxReconnectAttempts {
			f.state = models.FeedFailed
			f.mu.Unlock()
			f.queue.Close()
			f.log.WithComponent("feed").WithFields(logger.Fields{
				"symbol":       f.config.Symbol,
				"subscription": f.config.Subscription,
				"attempts":     f.config.MaxReconnectAttempts,
			}).Error("reconnect attempts exhausted, feed failed")
			return nil, false
		}
		f.state = models.FeedReconnecting
		f.mu.Unlock()

		f.log.WithComponent("feed").WithFields(logger.Fields{
			"symbol":       f.config.Symbol,
			"attempt":      attempt,
			"max_attempts": f.config.MaxReconnectAttempts,
			"backoff_ms":   backoff.Milliseconds(),
		}).Info("reconnecting")

		select {
		case <-f.stopCh:
			return nil, false
		case <-time.After(backoff):
		}

		handle, err := f.client.Subscribe(ctx)
		if err != nil {
			f.log.WithComponent("feed").WithFields(logger.Fields{
				"symbol":  f.config.Symbol,
				"attempt": attempt,
			}).WithError(err).Warn("re-subscribe failed")
			continue
		}

		f.mu.Lock()
		if f.stopped {
			f.mu.Unlock()
			handle.Cancel()
			return nil, false
		}
		f.handle = handle
		f.attempts = 0
		f.state = models.FeedRunning
		f.mu.Unlock()

		logger.IncrementReconnect()
		f.log.WithComponent("feed").WithFields(logger.Fields{
			"symbol":     f.config.Symbol,
			"attempt_id": handle.ID,
		}).Info("reconnected")
		return handle, true
	}
}
