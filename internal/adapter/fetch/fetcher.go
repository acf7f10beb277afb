// Package fetch retrieves raw source documents over HTTP with per-request
// timeouts, bounded retries with exponential backoff, and a TTL response cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
	"github.com/couchcryptid/crisis-news-scanner/internal/observability"
)

// DefaultUserAgents is the rotation pool of browser-like user agents.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_3) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:123.0) Gecko/20100101 Firefox/123.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36 Edg/121.0.0.0",
}

// Config controls timeouts, retries and caching.
type Config struct {
	RequestTimeout time.Duration
	MaxRetries     int // extra attempts after the first
	Backoff        time.Duration
	MaxBackoff     time.Duration
	CacheTTL       time.Duration
	CacheSize      int
	MaxBodyBytes   int64
	UserAgents     []string
}

// Result is the outcome of fetching one source. Err is always a *FetchFailure
// when non-nil.
type Result struct {
	Source domain.Source
	Body   []byte
	Cached bool
	Err    error
}

// Fetcher is safe for concurrent use.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	clock   clockwork.Clock
	cache   *responseCache
	states  *stateTable
	logger  *slog.Logger
	metrics *observability.Metrics
	uaNext  atomic.Uint64
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithClock sets the time source used for cache expiry, state timestamps and
// backoff sleeps.
func WithClock(c clockwork.Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

// New creates a Fetcher.
func New(cfg Config, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Fetcher {
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	f := &Fetcher{
		cfg:     cfg,
		client:  &http.Client{},
		clock:   clockwork.NewRealClock(),
		cache:   newResponseCache(cfg.CacheTTL, cfg.CacheSize),
		states:  newStateTable(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the body for src, from cache when a successful response is
// younger than the TTL. Errors are always *FetchFailure.
func (f *Fetcher) Fetch(ctx context.Context, src domain.Source) ([]byte, error) {
	body, _, err := f.fetch(ctx, src)
	return body, err
}

// FetchAll fetches every source concurrently and returns results in input
// order. A failure in one source does not affect the others.
func (f *Fetcher) FetchAll(ctx context.Context, sources []domain.Source) []Result {
	results := make([]Result, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		f.states.register(src.ID, f.clock.Now())
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, cached, err := f.fetch(ctx, src)
			results[i] = Result{Source: src, Body: body, Cached: cached, Err: err}
		}()
	}
	wg.Wait()
	return results
}

// Statuses returns the state of every source fetched so far, sorted by ID.
func (f *Fetcher) Statuses() []Status {
	return f.states.snapshot()
}

// Status returns the state of one source.
func (f *Fetcher) Status(sourceID string) (Status, bool) {
	return f.states.status(sourceID)
}

func (f *Fetcher) fetch(ctx context.Context, src domain.Source) ([]byte, bool, error) {
	if body, ok := f.cache.get(src.URL, f.clock.Now()); ok {
		f.states.hit(src.ID, f.clock.Now())
		f.metrics.FetchRequests.WithLabelValues(src.ID, "cached").Inc()
		f.logger.Debug("fetch served from cache", "source", src.ID, "url", src.URL)
		return body, true, nil
	}

	f.states.begin(src.ID, f.clock.Now())
	start := f.clock.Now()
	body, failure := f.fetchWithRetry(ctx, src)
	f.metrics.FetchDuration.WithLabelValues(src.ID).Observe(f.clock.Since(start).Seconds())

	if failure != nil {
		f.states.fail(src.ID, f.clock.Now(), failure)
		f.metrics.FetchRequests.WithLabelValues(src.ID, "failure").Inc()
		return nil, false, failure
	}

	f.cache.put(src.URL, body, f.clock.Now())
	f.states.succeed(src.ID, f.clock.Now())
	f.metrics.FetchRequests.WithLabelValues(src.ID, "success").Inc()
	return body, false, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, src domain.Source) ([]byte, *FetchFailure) {
	backoff := f.cfg.Backoff
	attempts := f.cfg.MaxRetries + 1

	var failure *FetchFailure
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := f.do(ctx, src)
		if err == nil {
			return body, nil
		}

		failure = f.classify(ctx, src, err)
		failure.Attempts = attempt

		if !retryable(failure) {
			break
		}
		if attempt == attempts {
			break
		}

		f.logger.Debug("fetch attempt failed, retrying",
			"source", src.ID,
			"attempt", attempt,
			"reason", failure.Reason,
			"backoff", backoff,
		)
		f.metrics.FetchRetries.WithLabelValues(src.ID).Inc()
		if !f.sleep(ctx, backoff) {
			failure = &FetchFailure{SourceID: src.ID, URL: src.URL, Reason: ReasonCanceled, Attempts: attempt, Err: ctx.Err()}
			break
		}
		backoff = sharedretry.NextBackoff(backoff, f.cfg.MaxBackoff)
	}
	return nil, failure
}

// errBodyTooLarge means the response exceeded MaxBodyBytes. A truncated
// document would parse into partial or garbled entries.
var errBodyTooLarge = errors.New("response body exceeds limit")

// statusError carries a non-2xx response code out of do.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (f *Fetcher) do(ctx context.Context, src domain.Source) ([]byte, error) {
	if f.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// classify maps a transport error to a failure reason. The parent context is
// checked first so cycle cancellation is not mistaken for a request timeout.
func (f *Fetcher) classify(ctx context.Context, src domain.Source, err error) *FetchFailure {
	failure := &FetchFailure{SourceID: src.ID, URL: src.URL, Err: err}

	var se *statusError
	var ne net.Error
	switch {
	case errors.As(err, &se):
		failure.Reason = ReasonStatus
		failure.StatusCode = se.code
	case errors.Is(err, errBodyTooLarge):
		failure.Reason = ReasonTooLarge
	case ctx.Err() != nil:
		failure.Reason = ReasonCanceled
		failure.Err = ctx.Err()
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		failure.Reason = ReasonTimeout
	default:
		failure.Reason = ReasonConnection
	}
	return failure
}

func (f *Fetcher) nextUserAgent() string {
	n := f.uaNext.Add(1) - 1
	return f.cfg.UserAgents[n%uint64(len(f.cfg.UserAgents))]
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := f.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
