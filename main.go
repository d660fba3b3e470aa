package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"feedflow/config"
	"feedflow/feed"
	"feedflow/logger"
	"feedflow/subscriber"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Feedflow.Name,
		"version": cfg.Feedflow.Version,
	}).Info("starting feedflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace, cfg.Metrics.DashboardName)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, time.Duration(cfg.Metrics.ReportSec)*time.Second)
	}

	source, err := subscriber.NewPubsubSource(ctx, cfg.Pubsub.ProjectID, cfg.Pubsub.MaxOutstandingMessages)
	if err != nil {
		log.WithError(err).Error("Failed to create Pub/Sub client")
		os.Exit(1)
	}
	defer source.Close()

	manager := feed.NewManager(source, cfg.Feeds)
	for _, md := range cfg.Feeds.MarketData {
		if err := manager.AddMarketDataFeed(md.Symbol, md.Timeframe); err != nil {
			log.WithError(err).Error("Failed to register market data feed")
			os.Exit(1)
		}
	}
	for _, ad := range cfg.Feeds.AlternativeData {
		if err := manager.AddAlternativeDataFeed(ad.Channel); err != nil {
			log.WithError(err).Error("Failed to register alternative data feed")
			os.Exit(1)
		}
	}

	if err := manager.StartAll(ctx); err != nil {
		log.WithError(err).Warn("some feeds failed to start")
	} else {
		log.Info("all components started successfully")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()
	manager.StopAll()

	log.Info("feedflow stopped")
}
