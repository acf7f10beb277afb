package feed

import (
	"bytes"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

// RSSParser handles RSS and Atom feeds.
type RSSParser struct {
	source     domain.Source
	keywords   []string
	maxEntries int
}

// NewRSSParser creates a parser for an RSS or Atom source.
func NewRSSParser(src domain.Source, opts Options) *RSSParser {
	return &RSSParser{
		source:     src,
		keywords:   lo.Map(opts.Keywords, func(k string, _ int) string { return strings.ToLower(k) }),
		maxEntries: opts.MaxEntries,
	}
}

func (p *RSSParser) Parse(raw []byte, fetchedAt time.Time) ([]domain.RawCandidate, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseFailure{SourceID: p.source.ID, Err: errEmptyDocument}
	}

	// gofeed.Parser keeps per-call state, so build one per document.
	f, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseFailure{SourceID: p.source.ID, Err: err}
	}

	items := f.Items
	if len(items) > p.maxEntries {
		items = items[:p.maxEntries]
	}

	out := make([]domain.RawCandidate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		c, ok := p.toCandidate(item, fetchedAt)
		if !ok {
			continue
		}
		if p.source.FilterRequired && !p.relevant(c.Title+" "+c.Text) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *RSSParser) toCandidate(item *gofeed.Item, fetchedAt time.Time) (domain.RawCandidate, bool) {
	title := collapseSpace(stripHTML(item.Title))
	if title == "" {
		return domain.RawCandidate{}, false
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}
	summary = domain.Truncate(stripHTML(summary), rssSummaryLimit)

	var published time.Time
	switch {
	case item.PublishedParsed != nil:
		published = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		published = item.UpdatedParsed.UTC()
	}

	link := item.Link
	if link == "" {
		link = p.source.WebsiteURL
	}

	return domain.RawCandidate{
		SourceID:    p.source.ID,
		Title:       title,
		Text:        summary,
		PublishedAt: published,
		URL:         link,
		FetchedAt:   fetchedAt.UTC(),
	}, true
}

// relevant reports whether text contains at least one crisis keyword.
func (p *RSSParser) relevant(text string) bool {
	text = strings.ToLower(text)
	return lo.SomeBy(p.keywords, func(k string) bool {
		return strings.Contains(text, k)
	})
}
