package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
feedflow:
  name: feedflow
  version: 0.1.0
logging:
  level: info
  format: json
  output: stdout
pubsub:
  project_id: paper-trading
feeds:
  buffer_capacity: 500
  market_data:
    - symbol: AAPL
      timeframe: 1Min
    - symbol: BTCUSD
      timeframe: 1Min
  alternative_data:
    - channel: news
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Pubsub.ProjectID != "paper-trading" {
		t.Errorf("project_id = %q", cfg.Pubsub.ProjectID)
	}
	if cfg.Feeds.BufferCapacity != 500 {
		t.Errorf("buffer_capacity = %d", cfg.Feeds.BufferCapacity)
	}

	// Defaults fill unset fields
	if cfg.Feeds.MaxReconnectAttempts != 10 {
		t.Errorf("max_reconnect_attempts = %d", cfg.Feeds.MaxReconnectAttempts)
	}
	if cfg.Feeds.ReconnectBackoffMs != 5000 {
		t.Errorf("reconnect_backoff_ms = %d", cfg.Feeds.ReconnectBackoffMs)
	}
	if cfg.Pubsub.MaxOutstandingMessages != 100 {
		t.Errorf("max_outstanding_messages = %d", cfg.Pubsub.MaxOutstandingMessages)
	}
}

func TestLoadConfigProjectFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "env-project")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pubsub.ProjectID != "env-project" {
		t.Errorf("project_id = %q, want env override", cfg.Pubsub.ProjectID)
	}
}

func TestLoadConfigMissingProject(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	body := strings.Replace(validYAML, "  project_id: paper-trading\n", "", 1)
	_, err := LoadConfig(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "project_id") {
		t.Fatalf("err = %v, want project_id validation failure", err)
	}
}

func TestLoadConfigNoFeeds(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	body := `
feedflow:
  name: feedflow
  version: 0.1.0
pubsub:
  project_id: paper-trading
`
	_, err := LoadConfig(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "at least one") {
		t.Fatalf("err = %v, want feed list validation failure", err)
	}
}

func TestLoadConfigDuplicateSymbol(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	body := strings.Replace(validYAML, "symbol: BTCUSD", "symbol: aapl", 1)
	_, err := LoadConfig(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "duplicated") {
		t.Fatalf("err = %v, want duplicate symbol failure", err)
	}
}

func TestLoadConfigMissingTimeframe(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	body := strings.Replace(validYAML, "    - symbol: AAPL\n      timeframe: 1Min\n", "    - symbol: AAPL\n", 1)
	_, err := LoadConfig(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "timeframe") {
		t.Fatalf("err = %v, want timeframe validation failure", err)
	}
}

func TestSubscriptionNaming(t *testing.T) {
	if got := MarketDataSubscription("AAPL", "1Min"); got != "market-data-aapl-1min" {
		t.Errorf("market data subscription = %q", got)
	}
	if got := AlternativeDataSubscription("News"); got != "alternative-data-news" {
		t.Errorf("alternative data subscription = %q", got)
	}
}
