package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crisis_scanner"

// Metrics holds the Prometheus counters, histograms, and gauges for the scanner.
type Metrics struct {
	// Fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: source, outcome={success,cached,failure}
	FetchRetries  *prometheus.CounterVec   // labels: source
	FetchDuration *prometheus.HistogramVec // labels: source

	// Parse metrics.
	CandidatesParsed *prometheus.CounterVec // labels: source
	ParseFailures    *prometheus.CounterVec // labels: source

	// Dedup and store metrics.
	DedupOutcomes *prometheus.CounterVec // labels: outcome={inserted,merged,unchanged}
	EventsStored  prometheus.Gauge
	EventsEvicted prometheus.Counter

	// Cycle metrics.
	CyclesTotal      *prometheus.CounterVec // labels: result={ok,partial,failed,skipped}
	CycleDuration    prometheus.Histogram
	SchedulerRunning prometheus.Gauge

	// Kafka sink metrics.
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchRetries,
		m.FetchDuration,
		m.CandidatesParsed,
		m.ParseFailures,
		m.DedupOutcomes,
		m.EventsStored,
		m.EventsEvicted,
		m.CyclesTotal,
		m.CycleDuration,
		m.SchedulerRunning,
		m.EventsPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Source fetches by outcome.",
		}, []string{"source", "outcome"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Retried fetch attempts per source.",
		}, []string{"source"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Network fetch duration including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"source"}),
		CandidatesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_parsed_total",
			Help:      "Candidates extracted per source.",
		}, []string{"source"}),
		ParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Documents that could not be parsed.",
		}, []string{"source"}),
		DedupOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_outcomes_total",
			Help:      "Deduplication decisions by outcome.",
		}, []string{"outcome"}),
		EventsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_stored",
			Help:      "Events currently held in the store.",
		}),
		EventsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_evicted_total",
			Help:      "Events evicted at capacity.",
		}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed refresh cycles by result.",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a fetch-parse-enrich-dedup cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the refresh scheduler is active, 0 when shut down.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events written to the Kafka sink.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka sink writes.",
		}),
	}
}
