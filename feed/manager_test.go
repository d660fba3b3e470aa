package feed

import (
	"context"
	"testing"
	"time"

	"feedflow/config"
	"feedflow/models"
)

func testFeedsConfig() config.FeedsConfig {
	return config.FeedsConfig{
		BufferCapacity:       16,
		QueueCheckMs:         10,
		ReconnectBackoffMs:   5,
		MaxReconnectAttempts: 3,
		ShutdownGraceMs:      2000,
	}
}

func TestManagerRejectsDuplicateSymbols(t *testing.T) {
	m := NewManager(&fakeSource{recv: newFakeReceiver()}, testFeedsConfig())

	if err := m.AddMarketDataFeed("AAPL", "1Min"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.AddMarketDataFeed("aapl", "5Min"); err == nil {
		t.Errorf("case-insensitive duplicate should be rejected")
	}
	if err := m.AddAlternativeDataFeed("news"); err != nil {
		t.Fatalf("add alternative: %v", err)
	}
}

func TestManagerSubscriptionNaming(t *testing.T) {
	m := NewManager(&fakeSource{recv: newFakeReceiver()}, testFeedsConfig())

	if err := m.AddMarketDataFeed("BTCUSD", "1Min"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.AddAlternativeDataFeed("News"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if got := m.Get("btcusd").config.Subscription; got != "market-data-btcusd-1min" {
		t.Errorf("market data subscription = %q", got)
	}
	if got := m.Get("news").config.Subscription; got != "alternative-data-news" {
		t.Errorf("alternative data subscription = %q", got)
	}
	if m.Get("unknown") != nil {
		t.Errorf("unknown symbol should return nil")
	}
}

func TestManagerLifecycle(t *testing.T) {
	recv := newFakeReceiver()
	m := NewManager(&fakeSource{recv: recv}, testFeedsConfig())

	if err := m.AddMarketDataFeed("AAPL", "1Min"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.AddMarketDataFeed("MSFT", "1Min"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}

	statuses := m.StatusAll()
	if len(statuses) != 2 {
		t.Fatalf("statuses = %d, want 2", len(statuses))
	}
	if statuses[0].Symbol != "AAPL" || statuses[1].Symbol != "MSFT" {
		t.Errorf("statuses out of order: %v", statuses)
	}
	for _, st := range statuses {
		if st.State != models.FeedRunning.String() {
			t.Errorf("%s state = %s, want running", st.Symbol, st.State)
		}
	}

	m.StopAll()
	for _, st := range m.StatusAll() {
		if st.State != models.FeedStopped.String() {
			t.Errorf("%s state = %s after stop", st.Symbol, st.State)
		}
	}
}

func TestManagerStartAllContinuesPastFailure(t *testing.T) {
	recv := newFakeReceiver()
	recv.failNext = 1
	m := NewManager(&fakeSource{recv: recv}, testFeedsConfig())

	if err := m.AddMarketDataFeed("AAPL", "1Min"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.AddMarketDataFeed("MSFT", "1Min"); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := m.StartAll(context.Background())
	if err == nil {
		t.Fatalf("expected joined error from failing feed")
	}
	defer m.StopAll()

	// The first feed failed to subscribe, the second still came up.
	if got := m.Get("AAPL").State(); got != models.FeedStopped {
		t.Errorf("aapl state = %v, want stopped", got)
	}
	if got := m.Get("MSFT").State(); got != models.FeedRunning {
		t.Errorf("msft state = %v, want running", got)
	}
}

func TestManagerStopAllHonorsGracePeriod(t *testing.T) {
	cfg := testFeedsConfig()
	cfg.ShutdownGraceMs = 50
	m := NewManager(&fakeSource{recv: newFakeReceiver()}, cfg)

	if err := m.AddMarketDataFeed("AAPL", "1Min"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}

	// Pin the feed's wait group so Stop wedges; StopAll must still
	// return once the grace period elapses.
	f := m.Get("AAPL")
	f.wg.Add(1)
	defer f.wg.Done()

	start := time.Now()
	m.StopAll()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("StopAll took %v despite 50ms grace", elapsed)
	}
}

func TestManagerStatusForSingleSymbol(t *testing.T) {
	m := NewManager(&fakeSource{recv: newFakeReceiver()}, testFeedsConfig())
	if err := m.AddMarketDataFeed("AAPL", "1Min"); err != nil {
		t.Fatalf("add: %v", err)
	}

	st, ok := m.Status("aapl")
	if !ok || st.Symbol != "AAPL" {
		t.Fatalf("status = %+v ok=%v", st, ok)
	}
	if st.State != models.FeedStopped.String() {
		t.Errorf("state = %s before start", st.State)
	}
	if _, ok := m.Status("unknown"); ok {
		t.Errorf("unknown symbol should report not found")
	}
}

func TestManagerStopAllWithoutStart(t *testing.T) {
	m := NewManager(&fakeSource{recv: newFakeReceiver()}, testFeedsConfig())
	if err := m.AddMarketDataFeed("AAPL", "1Min"); err != nil {
		t.Fatalf("add: %v", err)
	}

	start := time.Now()
	m.StopAll()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stop of idle feeds took %v", elapsed)
	}
}
