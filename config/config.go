package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by LoadConfig for settings the file omits. The feed
// package falls back to the same values when constructed directly.
const (
	DefaultMaxOutstandingMessages = 100
	DefaultBufferCapacity         = 1000
	DefaultQueueCheckMs           = 500
	DefaultReconnectBackoffMs     = 5000
	DefaultMaxReconnectAttempts   = 10
	DefaultShutdownGraceMs        = 30000
	DefaultReportSec              = 30
)

type Config struct {
	Feedflow FeedflowConfig `yaml:"feedflow"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Pubsub   PubsubConfig   `yaml:"pubsub"`
	Feeds    FeedsConfig    `yaml:"feeds"`
}

type FeedflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Region        string `yaml:"region"`
	Namespace     string `yaml:"namespace"`
	DashboardName string `yaml:"dashboard_name"`
	ReportSec     int    `yaml:"report_sec"`
}

type PubsubConfig struct {
	ProjectID              string `yaml:"project_id"`
	MaxOutstandingMessages int    `yaml:"max_outstanding_messages"`
}

type FeedsConfig struct {
	BufferCapacity       int                   `yaml:"buffer_capacity"`
	QueueCheckMs         int                   `yaml:"queue_check_ms"`
	ReconnectBackoffMs   int                   `yaml:"reconnect_backoff_ms"`
	MaxReconnectAttempts int                   `yaml:"max_reconnect_attempts"`
	ShutdownGraceMs      int                   `yaml:"shutdown_grace_ms"`
	MarketData           []MarketDataConfig    `yaml:"market_data"`
	AlternativeData      []AlternativeDataConfig `yaml:"alternative_data"`
}

type MarketDataConfig struct {
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`
}

type AlternativeDataConfig struct {
	Channel string `yaml:"channel"`
}

// MarketDataSubscription derives the broker subscription name for one
// (symbol, timeframe) pair. The naming is the out-of-band contract with
// the data-producing ingester.
func MarketDataSubscription(symbol, timeframe string) string {
	return fmt.Sprintf("market-data-%s-%s", strings.ToLower(symbol), strings.ToLower(timeframe))
}

// AlternativeDataSubscription derives the broker subscription name for
// one alternative-data channel.
func AlternativeDataSubscription(channel string) string {
	return fmt.Sprintf("alternative-data-%s", strings.ToLower(channel))
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Pubsub: PubsubConfig{
			MaxOutstandingMessages: DefaultMaxOutstandingMessages,
		},
		Feeds: FeedsConfig{
			BufferCapacity:       DefaultBufferCapacity,
			QueueCheckMs:         DefaultQueueCheckMs,
			ReconnectBackoffMs:   DefaultReconnectBackoffMs,
			MaxReconnectAttempts: DefaultMaxReconnectAttempts,
			ShutdownGraceMs:      DefaultShutdownGraceMs,
		},
		Metrics: MetricsConfig{
			ReportSec: DefaultReportSec,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override Pub/Sub settings from environment variables if available
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		config.Pubsub.ProjectID = strings.TrimSpace(v)
	}
	config.Pubsub.ProjectID = strings.TrimSpace(config.Pubsub.ProjectID)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Feedflow.Name == "" {
		return fmt.Errorf("feedflow.name is required")
	}

	if cfg.Feedflow.Version == "" {
		return fmt.Errorf("feedflow.version is required")
	}

	if cfg.Pubsub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required")
	}

	if cfg.Pubsub.MaxOutstandingMessages <= 0 {
		return fmt.Errorf("pubsub.max_outstanding_messages must be greater than 0")
	}

	if cfg.Feeds.BufferCapacity <= 0 {
		return fmt.Errorf("feeds.buffer_capacity must be greater than 0")
	}
	if cfg.Feeds.QueueCheckMs <= 0 {
		return fmt.Errorf("feeds.queue_check_ms must be greater than 0")
	}
	if cfg.Feeds.ReconnectBackoffMs <= 0 {
		return fmt.Errorf("feeds.reconnect_backoff_ms must be greater than 0")
	}
	if cfg.Feeds.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("feeds.max_reconnect_attempts must be greater than 0")
	}
	if cfg.Feeds.ShutdownGraceMs <= 0 {
		return fmt.Errorf("feeds.shutdown_grace_ms must be greater than 0")
	}

	if len(cfg.Feeds.MarketData)+len(cfg.Feeds.AlternativeData) == 0 {
		return fmt.Errorf("at least one market_data or alternative_data feed is required")
	}

	seen := map[string]struct{}{}
	for i, md := range cfg.Feeds.MarketData {
		if md.Symbol == "" {
			return fmt.Errorf("feeds.market_data[%d].symbol is required", i)
		}
		if md.Timeframe == "" {
			return fmt.Errorf("feeds.market_data[%d].timeframe is required", i)
		}
		key := strings.ToLower(md.Symbol)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("feeds.market_data[%d].symbol '%s' is duplicated", i, md.Symbol)
		}
		seen[key] = struct{}{}
	}

	for i, ad := range cfg.Feeds.AlternativeData {
		if ad.Channel == "" {
			return fmt.Errorf("feeds.alternative_data[%d].channel is required", i)
		}
		key := strings.ToLower(ad.Channel)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("feeds.alternative_data[%d].channel '%s' is duplicated", i, ad.Channel)
		}
		seen[key] = struct{}{}
	}

	return nil
}
