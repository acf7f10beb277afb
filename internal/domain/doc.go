// Package domain models crisis news reports and the events derived from them.
//
// # Lifecycle
//
// A source adapter turns one fetched document into [RawCandidate] values. The
// pipeline enriches each one into a [Candidate] by attaching a [Category], a
// severity from 1 to 5 and, when the text names a gazetteer place, a
// [Location]. The deduplicator then either folds the candidate into an
// existing [NewsEvent] with [NewsEvent.Merge] or creates a new one with
// [NewEvent].
//
// # Timestamps
//
// Sources report publish times inconsistently. A missing time falls back to
// the fetch time, and a time in the future is clamped to it (see
// [RawCandidate.Published]). On every event:
//
//	published_at  = earliest publish time across merged reports
//	first_seen_at = earliest fetch time across merged reports
//	last_seen_at  = latest fetch time across merged reports
//
// so published_at <= last_seen_at and first_seen_at <= last_seen_at always hold.
//
// # ID Generation
//
// Event IDs have the form "<category>-<16 hex chars>". The hex part is a
// truncated SHA-256 of the sorted significant title tokens, the publish time
// bucket and the location name. The same report therefore always maps to the
// same ID across cycles, which makes re-ingesting an unchanged feed a no-op.
// See [GenerateID] and [TitleTokens].
package domain
