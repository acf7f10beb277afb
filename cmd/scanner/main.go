package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/crisis-news-scanner/internal/adapter/fetch"
	httpadapter "github.com/couchcryptid/crisis-news-scanner/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/crisis-news-scanner/internal/adapter/kafka"
	"github.com/couchcryptid/crisis-news-scanner/internal/classify"
	"github.com/couchcryptid/crisis-news-scanner/internal/config"
	"github.com/couchcryptid/crisis-news-scanner/internal/dedup"
	"github.com/couchcryptid/crisis-news-scanner/internal/geocode"
	"github.com/couchcryptid/crisis-news-scanner/internal/observability"
	"github.com/couchcryptid/crisis-news-scanner/internal/pipeline"
	"github.com/couchcryptid/crisis-news-scanner/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	registry, err := config.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		logger.Error("failed to load source registry", "error", err)
		os.Exit(1)
	}
	sources := registry.Enabled()
	logger.Info("source registry loaded", "sources", len(registry.Sources), "enabled", len(sources))

	fetcher := fetch.New(fetch.Config{
		RequestTimeout: cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
		Backoff:        cfg.RetryBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
		CacheTTL:       cfg.CacheTTL,
		CacheSize:      cfg.CacheSize,
	}, logger, metrics)

	events := store.New(cfg.MaxEvents)
	deduplicator := dedup.New(events, dedup.Config{
		Horizon:   cfg.DedupHorizon,
		Bucket:    cfg.DedupTimeBucket,
		Threshold: cfg.DedupThreshold,
	})
	enricher := pipeline.NewEnricher(geocode.Default(), classify.New())

	// Publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var publisher pipeline.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p, err := pipeline.New(pipeline.Options{
		Sources:      sources,
		Keywords:     registry.Keywords,
		MaxEntries:   cfg.MaxEntriesPerSource,
		CycleTimeout: cfg.CycleTimeout,
	}, fetcher, enricher, deduplicator, events, publisher, logger, metrics)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	scheduler := pipeline.NewScheduler(p, cfg.RefreshInterval, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.API{
		Events:    events,
		Sources:   registry.Sources,
		Monitor:   fetcher,
		Cycles:    p,
		Readiness: p,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh scheduler.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("refresh cycle still running at shutdown deadline")
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
