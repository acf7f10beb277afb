package pipeline

import (
	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

// Enricher attaches a category, severity and optional location to raw
// candidates.
type Enricher struct {
	geocoder   domain.Geocoder
	classifier domain.Classifier
}

// NewEnricher creates an Enricher. Both the geocoder and the classifier are
// pure lookups, so one Enricher can be shared across cycles.
func NewEnricher(geocoder domain.Geocoder, classifier domain.Classifier) *Enricher {
	return &Enricher{geocoder: geocoder, classifier: classifier}
}

// Enrich classifies and geocodes title and text together. A geocode miss
// leaves Location nil.
func (e *Enricher) Enrich(raw domain.RawCandidate) domain.Candidate {
	text := raw.Title + " " + raw.Text

	c := domain.Candidate{
		RawCandidate: raw,
		Category:     e.classifier.Classify(text),
		Severity:     e.classifier.EstimateSeverity(text),
	}
	if loc, ok := e.geocoder.ExtractLocation(text); ok {
		c.Location = &loc
	}
	return c
}

// EnrichAll enriches a batch, preserving order.
func (e *Enricher) EnrichAll(raws []domain.RawCandidate) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(raws))
	for _, raw := range raws {
		out = append(out, e.Enrich(raw))
	}
	return out
}
