package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"feedflow/config"
	"feedflow/logger"
	"feedflow/models"
	"feedflow/subscriber"
)

// Manager owns one feed per subscription and drives their lifecycle as
// a group. Feeds are keyed by symbol, case-insensitively, matching the
// duplicate rules enforced on the config file.
type Manager struct {
	source subscriber.Source
	feeds  config.FeedsConfig
	log    *logger.Log

	mu    sync.RWMutex
	byKey map[string]*Feed
	order []string
}

// NewManager builds an empty manager. feeds supplies the shared knobs
// (capacity, intervals, reconnect policy) applied to every added feed.
func NewManager(source subscriber.Source, feeds config.FeedsConfig) *Manager {
	return &Manager{
		source: source,
		feeds:  feeds,
		log:    logger.GetLogger(),
		byKey:  map[string]*Feed{},
	}
}

// AddFeed registers a feed for symbol on the given subscription.
func (m *Manager) AddFeed(symbol, subscription string) error {
	key := strings.ToLower(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byKey[key]; dup {
		return fmt.Errorf("feed for %s already registered", symbol)
	}

	m.byKey[key] = New(m.source, Config{
		Symbol:               symbol,
		Subscription:         subscription,
		Capacity:             m.feeds.BufferCapacity,
		QueueCheckMs:         m.feeds.QueueCheckMs,
		ReconnectBackoffMs:   m.feeds.ReconnectBackoffMs,
		MaxReconnectAttempts: m.feeds.MaxReconnectAttempts,
	})
	m.order = append(m.order, key)
	return nil
}

// AddMarketDataFeed registers a feed on the conventional market-data
// subscription for (symbol, timeframe).
func (m *Manager) AddMarketDataFeed(symbol, timeframe string) error {
	return m.AddFeed(symbol, config.MarketDataSubscription(symbol, timeframe))
}

// AddAlternativeDataFeed registers a feed on the conventional
// alternative-data subscription for channel. The channel name doubles
// as the bar symbol on that subscription.
func (m *Manager) AddAlternativeDataFeed(channel string) error {
	return m.AddFeed(channel, config.AlternativeDataSubscription(channel))
}

// Get returns the feed registered for symbol, or nil.
func (m *Manager) Get(symbol string) *Feed {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byKey[strings.ToLower(symbol)]
}

// StartAll starts every registered feed in registration order. A feed
// that fails to start does not block the others; the joined error
// reports every failure.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	feeds := make([]*Feed, 0, len(m.order))
	for _, key := range m.order {
		feeds = append(feeds, m.byKey[key])
	}
	m.mu.RUnlock()

	var errs []error
	for _, f := range feeds {
		if err := f.Start(ctx); err != nil {
			m.log.WithComponent("feed_manager").WithFields(logger.Fields{
				"symbol": f.config.Symbol,
			}).WithError(err).Error("failed to start feed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every feed concurrently and waits up to the shutdown
// grace period. Feeds still stopping after the grace are abandoned with
// a warning; their goroutines die with the process.
func (m *Manager) StopAll() {
	m.mu.RLock()
	feeds := make([]*Feed, 0, len(m.byKey))
	for _, f := range m.byKey {
		feeds = append(feeds, f)
	}
	m.mu.RUnlock()

	grace := time.Duration(m.feeds.ShutdownGraceMs) * time.Millisecond
	if grace <= 0 {
		grace = time.Duration(config.DefaultShutdownGraceMs) * time.Millisecond
	}

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, f := range feeds {
			wg.Add(1)
			go func(f *Feed) {
				defer wg.Done()
				f.Stop()
			}(f)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.WithComponent("feed_manager").WithFields(logger.Fields{
			"feeds": len(feeds),
		}).Info("all feeds stopped")
	case <-time.After(grace):
		m.log.WithComponent("feed_manager").WithFields(logger.Fields{
			"grace_ms": grace.Milliseconds(),
		}).Warn("shutdown grace exceeded, abandoning remaining feeds")
	}
}

// Status reports the snapshot for one symbol.
func (m *Manager) Status(symbol string) (models.FeedStatus, bool) {
	f := m.Get(symbol)
	if f == nil {
		return models.FeedStatus{}, false
	}
	return f.Status(), true
}

// StatusAll reports a snapshot of every feed, sorted by symbol.
func (m *Manager) StatusAll() []models.FeedStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.FeedStatus, 0, len(m.byKey))
	for _, f := range m.byKey {
		out = append(out, f.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
