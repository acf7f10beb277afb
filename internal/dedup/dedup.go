// Package dedup folds enriched candidates into the event store, merging
// near-duplicate reports across sources and cycles.
//
// Matching is greedy: each candidate is compared against the events inside
// the time horizon and merged into the single best match. Some true
// duplicates will stay separate (for example when one wording shares few
// tokens with another), which keeps the cost bounded by the store size.
package dedup

import (
	"cmp"
	"slices"
	"time"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

// Store is the subset of the event store the deduplicator mutates.
type Store interface {
	All() []domain.NewsEvent
	Upsert(ev domain.NewsEvent) []string
}

// Config holds the tunable matching parameters.
type Config struct {
	// Horizon bounds how far apart in time a candidate and an event may be
	// and still merge.
	Horizon time.Duration
	// Bucket is the width used to round publish times for IDs.
	Bucket time.Duration
	// Threshold is the minimum title similarity (0, 1] for a merge.
	Threshold float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Horizon:   30 * time.Minute,
		Bucket:    15 * time.Minute,
		Threshold: 0.5,
	}
}

// Outcome describes what happened to a candidate.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeMerged    Outcome = "merged"
	OutcomeUnchanged Outcome = "unchanged" // the same report was already folded in
)

// Result records the decision for one candidate.
type Result struct {
	EventID string
	Outcome Outcome
	Score   float64
	Evicted []string
}

// Deduplicator applies merge-or-insert decisions against a Store.
type Deduplicator struct {
	store Store
	cfg   Config
}

// New creates a Deduplicator.
func New(store Store, cfg Config) *Deduplicator {
	return &Deduplicator{store: store, cfg: cfg}
}

// indexed caches the tokens of a stored event's title.
type indexed struct {
	event  domain.NewsEvent
	tokens []string
}

// Apply processes candidates in a deterministic order (publish time, source,
// title) and upserts each outcome before looking at the next one, so reports
// within one batch can merge with each other. Results are returned in
// processing order. Apply must not be called concurrently for the same store.
func (d *Deduplicator) Apply(candidates []domain.Candidate) []Result {
	if len(candidates) == 0 {
		return nil
	}

	ordered := slices.Clone(candidates)
	slices.SortStableFunc(ordered, compareCandidates)

	events := make(map[string]*indexed)
	for _, ev := range d.store.All() {
		events[ev.ID] = &indexed{event: ev, tokens: domain.TitleTokens(ev.Title)}
	}

	results := make([]Result, 0, len(ordered))
	for _, c := range ordered {
		results = append(results, d.apply(c, events))
	}
	return results
}

func (d *Deduplicator) apply(c domain.Candidate, events map[string]*indexed) Result {
	k := NewKey(c, d.cfg.Bucket)

	if seen := reportedIn(k.ReportID, c.SourceID, events); seen != nil {
		return Result{EventID: seen.event.ID, Outcome: OutcomeUnchanged, Score: 1}
	}

	target, score := events[k.ID], 1.0
	if target == nil {
		target, score = d.bestMatch(c, k, events)
	}

	var (
		next domain.NewsEvent
		res  Result
	)
	if target == nil {
		next = domain.NewEvent(k.ID, k.ReportID, c)
		res = Result{EventID: k.ID, Outcome: OutcomeInserted}
	} else {
		next = target.event.Merge(k.ReportID, c)
		res = Result{EventID: next.ID, Outcome: OutcomeMerged, Score: score}
	}

	evicted := d.store.Upsert(next)
	events[next.ID] = &indexed{event: next, tokens: domain.TitleTokens(next.Title)}
	for _, id := range evicted {
		delete(events, id)
	}
	res.Evicted = evicted
	return res
}

// reportedIn returns the event that already holds the report, if any. Sources
// re-publish the same items on every poll, and those repeats leave the event
// untouched so last-seen only moves on new reports.
func reportedIn(reportID, source string, events map[string]*indexed) *indexed {
	for _, ix := range events {
		if ix.event.HasReport(reportID, source) {
			return ix
		}
	}
	return nil
}

// bestMatch returns the eligible event with the highest similarity, breaking
// ties by the most recent last-seen time and then the lowest ID.
func (d *Deduplicator) bestMatch(c domain.Candidate, k Key, events map[string]*indexed) (*indexed, float64) {
	published := c.Published()

	var (
		best      *indexed
		bestScore float64
	)
	for _, ix := range events {
		ev := ix.event
		if !d.withinHorizon(published, ev) {
			continue
		}
		if ev.Category != c.Category {
			continue
		}
		if !locationsCompatible(ev.Location, c.Location) {
			continue
		}
		score := Similarity(k.Tokens, ix.tokens)
		if score < d.cfg.Threshold || score == 0 {
			continue
		}
		if best == nil || better(score, ev, bestScore, best.event) {
			best, bestScore = ix, score
		}
	}
	return best, bestScore
}

// withinHorizon reports whether a report published at t may merge into ev.
func (d *Deduplicator) withinHorizon(t time.Time, ev domain.NewsEvent) bool {
	if t.Sub(ev.LastSeenAt) > d.cfg.Horizon {
		return false
	}
	return ev.PublishedAt.Sub(t) <= d.cfg.Horizon
}

func better(score float64, ev domain.NewsEvent, bestScore float64, best domain.NewsEvent) bool {
	if score != bestScore {
		return score > bestScore
	}
	if !ev.LastSeenAt.Equal(best.LastSeenAt) {
		return ev.LastSeenAt.After(best.LastSeenAt)
	}
	return ev.ID < best.ID
}

func locationsCompatible(a, b *domain.Location) bool {
	if a == nil || b == nil {
		return true
	}
	return a.Name == b.Name
}

func compareCandidates(a, b domain.Candidate) int {
	if c := a.Published().Compare(b.Published()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.SourceID, b.SourceID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Title, b.Title); c != 0 {
		return c
	}
	return a.FetchedAt.Compare(b.FetchedAt)
}
