package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/crisis-news-scanner/internal/adapter/feed"
	"github.com/couchcryptid/crisis-news-scanner/internal/adapter/fetch"
	"github.com/couchcryptid/crisis-news-scanner/internal/dedup"
	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
	"github.com/couchcryptid/crisis-news-scanner/internal/observability"
)

// ErrCycleInProgress is returned when a cycle is requested while another is running.
var ErrCycleInProgress = errors.New("cycle already in progress")

// Fetcher retrieves raw documents for a set of sources.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []domain.Source) []fetch.Result
}

// Deduplicator folds enriched candidates into the event store.
type Deduplicator interface {
	Apply(candidates []domain.Candidate) []dedup.Result
}

// EventReader is the read side of the event store the pipeline needs.
type EventReader interface {
	Get(id string) (domain.NewsEvent, bool)
	Len() int
}

// Publisher forwards changed events to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, events []domain.NewsEvent) error
}

// Options configures a Pipeline.
type Options struct {
	Sources      []domain.Source
	Keywords     []string
	MaxEntries   int
	CycleTimeout time.Duration
}

// Pipeline runs fetch-parse-enrich-dedup cycles. Cycles never overlap.
type Pipeline struct {
	sources      []domain.Source
	parsers      map[string]feed.Parser
	fetcher      Fetcher
	enricher     *Enricher
	dedup        Deduplicator
	events       EventReader
	publisher    Publisher
	cycleTimeout time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics

	cycleMu sync.Mutex
	ready   atomic.Bool

	reportMu sync.RWMutex
	last     *Report
}

// New creates a Pipeline. publisher may be nil to disable the sink.
func New(
	opts Options,
	f Fetcher,
	e *Enricher,
	d Deduplicator,
	events EventReader,
	publisher Publisher,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (*Pipeline, error) {
	parsers := make(map[string]feed.Parser, len(opts.Sources))
	for _, src := range opts.Sources {
		p, err := feed.ForSource(src, feed.Options{Keywords: opts.Keywords, MaxEntries: opts.MaxEntries})
		if err != nil {
			return nil, err
		}
		parsers[src.ID] = p
	}

	return &Pipeline{
		sources:      opts.Sources,
		parsers:      parsers,
		fetcher:      f,
		enricher:     e,
		dedup:        d,
		events:       events,
		publisher:    publisher,
		cycleTimeout: opts.CycleTimeout,
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// CheckReadiness returns nil once at least one cycle has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no refresh cycle has completed yet")
	}
	return nil
}

// LastReport returns the report of the most recent completed cycle.
func (p *Pipeline) LastReport() (Report, bool) {
	p.reportMu.RLock()
	defer p.reportMu.RUnlock()
	if p.last == nil {
		return Report{}, false
	}
	return p.last.clone(), true
}

// RunCycle executes one cycle across all sources. Source failures are
// recorded in the report and never fail the cycle. It returns
// ErrCycleInProgress without doing any work if a cycle is already running.
func (p *Pipeline) RunCycle(ctx context.Context) (Report, error) {
	if !p.cycleMu.TryLock() {
		p.metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return Report{}, ErrCycleInProgress
	}
	defer p.cycleMu.Unlock()

	start := time.Now()
	report := Report{StartedAt: domain.Now()}

	cycleCtx := ctx
	if p.cycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, p.cycleTimeout)
		defer cancel()
	}

	results := p.fetcher.FetchAll(cycleCtx, p.sources)
	fetchedAt := domain.Now()

	var candidates []domain.Candidate
	for _, res := range results {
		sr, cands := p.collect(res, fetchedAt)
		report.Sources = append(report.Sources, sr)
		candidates = append(candidates, cands...)
	}
	report.Candidates = len(candidates)

	changed := p.applyDedup(candidates, &report)
	report.Published = p.publish(ctx, changed)

	report.Duration = time.Since(start)
	result := report.result()
	p.metrics.CyclesTotal.WithLabelValues(result).Inc()
	p.metrics.CycleDuration.Observe(report.Duration.Seconds())
	p.metrics.EventsStored.Set(float64(p.events.Len()))

	p.logger.Info("cycle complete",
		"result", result,
		"candidates", report.Candidates,
		"inserted", report.Inserted,
		"merged", report.Merged,
		"unchanged", report.Unchanged,
		"evicted", report.Evicted,
		"failed_sources", report.FailedSources(),
		"duration", report.Duration,
	)

	p.reportMu.Lock()
	p.last = &report
	p.reportMu.Unlock()
	p.ready.Store(true)

	return report.clone(), nil
}

// collect parses and enriches one fetch result.
func (p *Pipeline) collect(res fetch.Result, fetchedAt time.Time) (SourceReport, []domain.Candidate) {
	sr := SourceReport{SourceID: res.Source.ID, Cached: res.Cached}

	if res.Err != nil {
		p.logger.Warn("source fetch failed, skipping",
			"source", res.Source.ID,
			"url", res.Source.URL,
			"error", res.Err,
		)
		sr.Error = res.Err.Error()
		return sr, nil
	}

	parser, ok := p.parsers[res.Source.ID]
	if !ok {
		sr.Error = fmt.Sprintf("no parser for source %s", res.Source.ID)
		return sr, nil
	}

	raws, err := parser.Parse(res.Body, fetchedAt)
	if err != nil {
		p.logger.Warn("source parse failed, skipping", "source", res.Source.ID, "error", err)
		p.metrics.ParseFailures.WithLabelValues(res.Source.ID).Inc()
		sr.Error = err.Error()
		return sr, nil
	}

	p.metrics.CandidatesParsed.WithLabelValues(res.Source.ID).Add(float64(len(raws)))
	sr.Candidates = len(raws)
	return sr, p.enricher.EnrichAll(raws)
}

// applyDedup folds candidates into the store and returns the IDs of events
// that were inserted or merged and are still stored, in first-touched order.
func (p *Pipeline) applyDedup(candidates []domain.Candidate, report *Report) []string {
	var changed []string
	seen := make(map[string]bool)

	for _, res := range p.dedup.Apply(candidates) {
		p.metrics.DedupOutcomes.WithLabelValues(string(res.Outcome)).Inc()
		switch res.Outcome {
		case dedup.OutcomeInserted:
			report.Inserted++
		case dedup.OutcomeMerged:
			report.Merged++
		case dedup.OutcomeUnchanged:
			report.Unchanged++
		}
		if res.Outcome != dedup.OutcomeUnchanged && !seen[res.EventID] {
			seen[res.EventID] = true
			changed = append(changed, res.EventID)
		}
		report.Evicted += len(res.Evicted)
		p.metrics.EventsEvicted.Add(float64(len(res.Evicted)))
	}
	return changed
}

func (p *Pipeline) publish(ctx context.Context, ids []string) int {
	if p.publisher == nil || len(ids) == 0 {
		return 0
	}

	events := make([]domain.NewsEvent, 0, len(ids))
	for _, id := range ids {
		ev, ok := p.events.Get(id)
		if !ok {
			continue // evicted later in the same cycle
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return 0
	}

	if err := p.publisher.Publish(ctx, events); err != nil {
		p.logger.Error("publish events failed", "error", err, "events", len(events))
		p.metrics.PublishErrors.Inc()
		return 0
	}
	p.metrics.EventsPublished.Add(float64(len(events)))
	return len(events)
}
