package domain

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// stopwords are dropped from title tokens before similarity scoring.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "from": {}, "by": {}, "with": {}, "as": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "has": {},
	"have": {}, "had": {}, "it": {}, "its": {}, "this": {}, "that": {}, "after": {},
	"over": {}, "into": {}, "amid": {}, "says": {}, "said": {}, "new": {}, "live": {},
	"update": {}, "updates": {},
}

// NormalizeText folds case, applies NFKC and collapses every run of
// non-alphanumeric runes (apostrophes and hyphens included) into a single space.
// The result has no leading or trailing space.
func NormalizeText(s string) string {
	s = folder.String(norm.NFKC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSuffix(b.String(), " ")
}

// TitleTokens returns the sorted, de-duplicated significant words of a title.
func TitleTokens(title string) []string {
	words := strings.Fields(NormalizeText(title))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		tokens = append(tokens, w)
	}
	slices.Sort(tokens)
	return slices.Compact(tokens)
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
