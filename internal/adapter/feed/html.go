package feed

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

// DefaultBlockSelector matches live-update blocks across the markup variants
// used by the major live blogs. Sources may name their own selectors instead.
// Documents without any match fall back to plain <article> elements.
var DefaultBlockSelector = strings.Join([]string{
	"[class*='live-story']",
	"[data-type='live-story']",
	"[class*='LiveStory']",
	"article[class*='live']",
	"[data-qa='live-blog-entry']",
	"[class*='live-update']",
	"[class*='LiveUpdate']",
	"[class*='live-blog-entry']",
	"[data-test='live-blog-entry']",
	"[class*='LiveBlog'] article",
	"article[class*='post']",
	"article[class*='entry']",
}, ", ")

// HTMLParser scrapes live-blog pages.
type HTMLParser struct {
	source     domain.Source
	base       *url.URL
	selector   string
	maxEntries int
}

// NewHTMLParser creates a parser for an HTML live-blog source. Relative links
// resolve against the source URL.
func NewHTMLParser(src domain.Source, opts Options) *HTMLParser {
	base, _ := url.Parse(src.URL)
	selector := DefaultBlockSelector
	if len(src.Selectors) > 0 {
		selector = strings.Join(src.Selectors, ", ")
	}
	return &HTMLParser{source: src, base: base, selector: selector, maxEntries: opts.MaxEntries}
}

// Parse returns one candidate per live-update block. Markup without any
// recognizable block yields no candidates and no error.
func (p *HTMLParser) Parse(raw []byte, fetchedAt time.Time) ([]domain.RawCandidate, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseFailure{SourceID: p.source.ID, Err: err}
	}

	blocks := outermost(doc.Find(p.selector), p.selector)
	if blocks.Length() == 0 {
		blocks = outermost(doc.Find("article"), "article")
	}

	var out []domain.RawCandidate
	blocks.EachWithBreak(func(_ int, block *goquery.Selection) bool {
		if c, ok := p.toCandidate(block, fetchedAt); ok {
			out = append(out, c)
		}
		return len(out) < p.maxEntries
	})
	return out, nil
}

// outermost drops blocks nested inside another matched block, so an entry
// wrapped by two matching elements is read once.
func outermost(blocks *goquery.Selection, selector string) *goquery.Selection {
	return blocks.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsFiltered(selector).Length() == 0
	})
}

func (p *HTMLParser) toCandidate(block *goquery.Selection, fetchedAt time.Time) (domain.RawCandidate, bool) {
	title := collapseSpace(block.Find("h2, h3, h4").First().Text())

	paragraphs := block.Find("p")
	if paragraphs.Length() > 3 {
		paragraphs = paragraphs.Slice(0, 3)
	}
	parts := paragraphs.Map(func(_ int, s *goquery.Selection) string {
		return collapseSpace(s.Text())
	})
	summary := collapseSpace(strings.Join(parts, " "))

	if title == "" && summary == "" {
		return domain.RawCandidate{}, false
	}
	if title == "" {
		title = domain.Truncate(summary, titleFromSummary)
	}

	return domain.RawCandidate{
		SourceID:    p.source.ID,
		Title:       title,
		Text:        domain.Truncate(summary, htmlSummaryLimit),
		PublishedAt: blockTime(block),
		URL:         p.link(block),
		FetchedAt:   fetchedAt.UTC(),
	}, true
}

// blockTime reads the first <time> element, preferring its datetime attribute.
func blockTime(block *goquery.Selection) time.Time {
	el := block.Find("time").First()
	if el.Length() == 0 {
		return time.Time{}
	}
	for _, v := range []string{el.AttrOr("datetime", ""), strings.TrimSpace(el.Text())} {
		if v == "" {
			continue
		}
		if t, err := dateparse.ParseIn(v, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (p *HTMLParser) link(block *goquery.Selection) string {
	href, ok := block.Find("a[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" || p.base == nil {
		return p.source.URL
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return p.source.URL
	}
	return p.base.ResolveReference(ref).String()
}
