// Package feed turns fetched source documents into raw candidates. Each
// source format (RSS/Atom, HTML live blog) is one Parser variant.
package feed

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

const (
	defaultMaxEntries = 50
	rssSummaryLimit   = 300
	htmlSummaryLimit  = 500
	titleFromSummary  = 120
)

// Parser extracts candidates from one fetched document. Implementations never
// panic on malformed input: they return a *ParseFailure or an empty slice.
type Parser interface {
	Parse(raw []byte, fetchedAt time.Time) ([]domain.RawCandidate, error)
}

// ParseFailure reports a document that could not be parsed at all.
type ParseFailure struct {
	SourceID string
	Err      error
}

func (f *ParseFailure) Error() string {
	return fmt.Sprintf("parse %s: %v", f.SourceID, f.Err)
}

func (f *ParseFailure) Unwrap() error {
	return f.Err
}

var errEmptyDocument = errors.New("empty document")

// Options configures parser construction.
type Options struct {
	// Keywords are matched case-insensitively as substrings of title and
	// summary for sources with FilterRequired set.
	Keywords []string
	// MaxEntries caps the entries read from one document.
	MaxEntries int
}

// ForSource returns the parser variant for src.Type.
func ForSource(src domain.Source, opts Options) (Parser, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	switch src.Type {
	case domain.SourceRSS:
		return NewRSSParser(src, opts), nil
	case domain.SourceHTML:
		return NewHTMLParser(src, opts), nil
	default:
		return nil, fmt.Errorf("source %s: unknown type %q", src.ID, src.Type)
	}
}

// stripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func stripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapseSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
