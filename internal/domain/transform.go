package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"time"
)

// Published returns the candidate's effective publish time. Missing times fall
// back to the fetch time, and times reported in the future are clamped to it.
func (c RawCandidate) Published() time.Time {
	if c.PublishedAt.IsZero() || c.PublishedAt.After(c.FetchedAt) {
		return c.FetchedAt.UTC()
	}
	return c.PublishedAt.UTC()
}

// LocationName returns the matched place name or "" when the candidate has none.
func (c Candidate) LocationName() string {
	if c.Location == nil {
		return ""
	}
	return c.Location.Name
}

// GenerateID produces a deterministic event ID from the normalized title tokens,
// the time bucket and the location name. Recomputing it for the same report
// always yields the same ID.
func GenerateID(category Category, tokens []string, bucket time.Time, location string) string {
	input := strings.Join(tokens, " ") + "|" + bucket.UTC().Format(time.RFC3339) + "|" + location
	hash := sha256.Sum256([]byte(input))
	return string(category) + "-" + hex.EncodeToString(hash[:8])
}

// UndatedReportID identifies a report that carries no publish time by its
// title tokens, link and location.
func UndatedReportID(tokens []string, url, location string) string {
	input := strings.Join(tokens, " ") + "|" + url + "|" + location
	hash := sha256.Sum256([]byte(input))
	return "undated-" + hex.EncodeToString(hash[:8])
}

// TimeBucket truncates t to the bucket width in UTC.
func TimeBucket(t time.Time, width time.Duration) time.Time {
	if width <= 0 {
		return t.UTC()
	}
	return t.UTC().Truncate(width)
}

// NewEvent builds a fresh event from an enriched candidate whose report is
// identified by reportID.
func NewEvent(id, reportID string, c Candidate) NewsEvent {
	published := c.Published()
	ev := NewsEvent{
		ID:               id,
		Title:            c.Title,
		Summary:          c.Text,
		SourceID:         c.SourceID,
		URL:              c.URL,
		Category:         c.Category,
		PublishedAt:      published,
		FirstSeenAt:      c.FetchedAt.UTC(),
		LastSeenAt:       c.FetchedAt.UTC(),
		RelatedSourceIDs: []string{c.SourceID},
		Severity:         c.Severity,
		Reports:          []string{reportRef(reportID, c.SourceID)},
	}
	if c.Location != nil {
		loc := *c.Location
		ev.Location = &loc
	}
	return ev
}

// Merge folds a duplicate report, identified by its own report ID, into the
// event. Related sources only grow, the earliest publish and first-seen times
// are kept, and last-seen advances.
func (e NewsEvent) Merge(reportID string, c Candidate) NewsEvent {
	e = e.Clone()

	if ref := reportRef(reportID, c.SourceID); !slices.Contains(e.Reports, ref) {
		e.Reports = append(e.Reports, ref)
		slices.Sort(e.Reports)
	}

	seen := c.FetchedAt.UTC()
	if seen.After(e.LastSeenAt) {
		e.LastSeenAt = seen
	}
	if seen.Before(e.FirstSeenAt) {
		e.FirstSeenAt = seen
	}
	if p := c.Published(); p.Before(e.PublishedAt) {
		e.PublishedAt = p
	}
	if !slices.Contains(e.RelatedSourceIDs, c.SourceID) {
		e.RelatedSourceIDs = append(e.RelatedSourceIDs, c.SourceID)
		slices.Sort(e.RelatedSourceIDs)
	}
	if e.Location == nil && c.Location != nil {
		loc := *c.Location
		e.Location = &loc
	}
	if len([]rune(c.Text)) > len([]rune(e.Summary)) {
		e.Summary = c.Text
	}
	if c.Severity > e.Severity {
		e.Severity = c.Severity
	}
	if e.URL == "" {
		e.URL = c.URL
	}
	return e
}
