// Package geocode resolves place names in free text against a static gazetteer.
package geocode

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

type entry struct {
	key      string // normalized, e.g. "be er sheva"
	needle   string // key padded with spaces for whole-word matching
	location domain.Location
}

// Gazetteer is an immutable name to coordinate table. It implements
// domain.Geocoder and is safe for concurrent use.
type Gazetteer struct {
	entries []entry
	byKey   map[string]domain.Location
}

// Default returns the built-in Middle East gazetteer.
func Default() *Gazetteer {
	return newGazetteer(middleEast)
}

// New builds a gazetteer from name to [lat, lon] pairs.
func New(places map[string][2]float64) *Gazetteer {
	rows := make([]place, 0, len(places))
	for name, c := range places {
		rows = append(rows, place{name: name, lat: c[0], lon: c[1]})
	}
	return newGazetteer(rows)
}

func newGazetteer(rows []place) *Gazetteer {
	title := cases.Title(language.English)
	g := &Gazetteer{byKey: make(map[string]domain.Location, len(rows))}

	for _, p := range rows {
		key := domain.NormalizeText(p.name)
		if key == "" {
			continue
		}
		if _, dup := g.byKey[key]; dup {
			continue
		}
		name, ok := displayNames[p.name]
		if !ok {
			name = title.String(p.name)
		}
		loc := domain.Location{Name: name, Latitude: p.lat, Longitude: p.lon}
		g.byKey[key] = loc
		g.entries = append(g.entries, entry{key: key, needle: " " + key + " ", location: loc})
	}

	// Longest names first so "tel aviv" wins over "aviv" and "kuwait city" over "kuwait".
	slices.SortFunc(g.entries, func(a, b entry) int {
		if c := cmp.Compare(len(b.key), len(a.key)); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	return g
}

// ExtractLocation returns the longest gazetteer name that appears in text as
// whole words, case-insensitively. It performs no I/O and is deterministic.
func (g *Gazetteer) ExtractLocation(text string) (domain.Location, bool) {
	normalized := domain.NormalizeText(text)
	if normalized == "" {
		return domain.Location{}, false
	}
	haystack := " " + normalized + " "
	for _, e := range g.entries {
		if strings.Contains(haystack, e.needle) {
			return e.location, true
		}
	}
	return domain.Location{}, false
}

// Lookup returns the entry for an exact place name.
func (g *Gazetteer) Lookup(name string) (domain.Location, bool) {
	loc, ok := g.byKey[domain.NormalizeText(name)]
	return loc, ok
}

// Len reports the number of distinct names.
func (g *Gazetteer) Len() int {
	return len(g.entries)
}
