package domain

import (
	"slices"
	"time"
)

// Category is the closed set of event types assigned by the classifier.
type Category string

const (
	CategoryAirstrike Category = "airstrike"
	CategoryMissile   Category = "missile"
	CategoryExplosion Category = "explosion"
	CategoryAlert     Category = "alert"
	CategoryMilitary  Category = "military"
	CategoryOther     Category = "other"
)

// Categories lists every category in classification priority order.
var Categories = []Category{
	CategoryAirstrike,
	CategoryMissile,
	CategoryExplosion,
	CategoryAlert,
	CategoryMilitary,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// Critical reports whether the category describes a kinetic event.
func (c Category) Critical() bool {
	return c == CategoryAirstrike || c == CategoryMissile || c == CategoryExplosion
}

// SourceType selects the parser variant for a source.
type SourceType string

const (
	SourceRSS  SourceType = "rss"
	SourceHTML SourceType = "html"
)

// Source is one entry of the source registry.
type Source struct {
	ID             string     `yaml:"id" json:"id"`
	Name           string     `yaml:"name" json:"name"`
	URL            string     `yaml:"url" json:"url"`
	WebsiteURL     string     `yaml:"website_url" json:"website_url,omitempty"`
	Type           SourceType `yaml:"type" json:"type"`
	FilterRequired bool       `yaml:"filter_required" json:"filter_required"`
	Enabled        bool       `yaml:"enabled" json:"enabled"`
	// Selectors name the live-update blocks of an HTML source. Empty means
	// the built-in selector union.
	Selectors []string `yaml:"selectors" json:"selectors,omitempty"`
}

// RawCandidate is a single entry extracted from one source before enrichment.
type RawCandidate struct {
	SourceID    string
	Title       string
	Text        string
	PublishedAt time.Time // zero when the source did not report a time
	URL         string
	FetchedAt   time.Time
}

// Location is a gazetteer entry copied onto an event.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Candidate is a RawCandidate after geocoding and classification.
type Candidate struct {
	RawCandidate
	Category Category
	Location *Location
	Severity int
}

// NewsEvent is a deduplicated occurrence, possibly reported by several sources.
type NewsEvent struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Summary          string    `json:"summary,omitempty"`
	SourceID         string    `json:"source_id"`
	URL              string    `json:"url,omitempty"`
	Category         Category  `json:"category"`
	Location         *Location `json:"location,omitempty"`
	PublishedAt      time.Time `json:"published_at"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	RelatedSourceIDs []string  `json:"related_source_ids"`
	Severity         int       `json:"severity"`

	// Reports lists "<report id>@<source>" for every report folded in.
	Reports []string `json:"-"`
}

// HasLocation reports whether the event can be placed on a map.
func (e NewsEvent) HasLocation() bool {
	return e.Location != nil
}

// HasReport reports whether the given report from source was already folded in.
func (e NewsEvent) HasReport(reportID, source string) bool {
	_, found := slices.BinarySearch(e.Reports, reportRef(reportID, source))
	return found
}

func reportRef(reportID, source string) string {
	return reportID + "@" + source
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (e NewsEvent) Clone() NewsEvent {
	if e.Location != nil {
		loc := *e.Location
		e.Location = &loc
	}
	e.RelatedSourceIDs = slices.Clone(e.RelatedSourceIDs)
	e.Reports = slices.Clone(e.Reports)
	return e
}
