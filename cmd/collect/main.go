// Command collect runs a single refresh cycle against the configured sources
// and prints the resulting events as JSON. It reads the same environment
// variables as the scanner service; Kafka publishing is never enabled.
//
// Usage:
//
//	go run ./cmd/collect -sources internal/config/sources.yaml -summary
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/crisis-news-scanner/internal/adapter/fetch"
	"github.com/couchcryptid/crisis-news-scanner/internal/classify"
	"github.com/couchcryptid/crisis-news-scanner/internal/config"
	"github.com/couchcryptid/crisis-news-scanner/internal/dedup"
	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
	"github.com/couchcryptid/crisis-news-scanner/internal/geocode"
	"github.com/couchcryptid/crisis-news-scanner/internal/observability"
	"github.com/couchcryptid/crisis-news-scanner/internal/pipeline"
	"github.com/couchcryptid/crisis-news-scanner/internal/store"
	"github.com/couchcryptid/crisis-news-scanner/internal/summary"
)

type output struct {
	Report  pipeline.Report    `json:"report"`
	Events  []domain.NewsEvent `json:"events"`
	Summary *summary.Summary   `json:"summary,omitempty"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "collect:", err)
		os.Exit(1)
	}
}

func run() error {
	sourcesFile := flag.String("sources", "", "source registry YAML (default: embedded registry)")
	all := flag.Bool("all", false, "include sources disabled in the registry")
	withSummary := flag.Bool("summary", false, "include the situation summary")
	verbose := flag.Bool("v", false, "log progress to stderr")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *sourcesFile != "" {
		cfg.SourcesFile = *sourcesFile
	}

	// stdout carries the JSON result, so logs go to stderr.
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	registry, err := config.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return err
	}
	sources := registry.Enabled()
	if *all {
		sources = registry.Sources
	}

	metrics := observability.NewMetricsForTesting()
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

	p, err := pipeline.New(pipeline.Options{
		Sources:      sources,
		Keywords:     registry.Keywords,
		MaxEntries:   cfg.MaxEntriesPerSource,
		CycleTimeout: cfg.CycleTimeout,
	}, fetcher, pipeline.NewEnricher(geocode.Default(), classify.New()), deduplicator, events, nil, logger, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := p.RunCycle(ctx)
	if err != nil {
		return err
	}

	out := output{Report: report, Events: events.All()}
	if *withSummary {
		s := summary.Generate(out.Events)
		out.Summary = &s
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
