// Package summary builds a short natural-language overview of recent events:
// what happened, where, and whether activity is rising or falling.
package summary

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

const (
	window       = 2 * time.Hour
	recentWindow = 30 * time.Minute
	topLocations = 3
)

// Trend describes how activity in the last 30 minutes compares with the
// 90 minutes before it.
type Trend string

const (
	TrendNone       Trend = "none"
	TrendEscalating Trend = "escalating"
	TrendCalming    Trend = "calming"
	TrendSteady     Trend = "steady"
)

// Summary is the overview of events published in the last two hours.
type Summary struct {
	GeneratedAt  time.Time               `json:"generated_at"`
	Total        int                     `json:"total"`
	Counts       map[domain.Category]int `json:"counts"`
	TopLocations []string                `json:"top_locations"`
	Recent       int                     `json:"recent"`
	Earlier      int                     `json:"earlier"`
	Trend        Trend                   `json:"trend"`
	Text         string                  `json:"text"`
}

var typeNames = map[domain.Category][2]string{
	domain.CategoryAirstrike: {"airstrike", "airstrikes"},
	domain.CategoryMissile:   {"missile event", "missile events"},
	domain.CategoryExplosion: {"explosion", "explosions"},
	domain.CategoryAlert:     {"alert", "alerts"},
	domain.CategoryMilitary:  {"military movement", "military movements"},
	domain.CategoryOther:     {"other report", "other reports"},
}

// Generate summarizes events relative to the package clock.
func Generate(events []domain.NewsEvent) Summary {
	return GenerateAt(events, domain.Now())
}

// GenerateAt summarizes the events published within two hours before now.
func GenerateAt(events []domain.NewsEvent, now time.Time) Summary {
	s := Summary{
		GeneratedAt: now,
		Counts:      make(map[domain.Category]int),
		Trend:       TrendNone,
	}

	cutoff := now.Add(-window)
	recentCutoff := now.Add(-recentWindow)
	locations := make(map[string]int)

	for _, ev := range events {
		if ev.PublishedAt.Before(cutoff) {
			continue
		}
		s.Total++
		s.Counts[ev.Category]++
		if ev.HasLocation() {
			locations[ev.Location.Name]++
		}
		if !ev.PublishedAt.Before(recentCutoff) {
			s.Recent++
		} else {
			s.Earlier++
		}
	}

	if s.Total == 0 {
		s.Text = "No significant events reported in the last 2 hours."
		return s
	}

	s.TopLocations = mostCommon(locations, topLocations)
	s.Trend = trend(s.Recent, s.Earlier)
	s.Text = s.compose()
	return s
}

func (s Summary) compose() string {
	var critical, routine []string
	for _, c := range categoriesByCount(s.Counts) {
		phrase := fmt.Sprintf("%d %s", s.Counts[c], typeName(c, s.Counts[c]))
		if c.Critical() {
			critical = append(critical, phrase)
		} else {
			routine = append(routine, phrase)
		}
	}

	var sentences []string
	switch {
	case len(critical) > 0:
		near := ""
		if len(s.TopLocations) > 0 {
			near = " near " + joinList(s.TopLocations)
		}
		sentences = append(sentences, fmt.Sprintf("Active situation: %s%s in the last 2 hours.", joinList(critical), near))
	case len(routine) > 0:
		sentences = append(sentences, fmt.Sprintf("Monitoring: %s reported in the last 2 hours.", joinList(routine[:min(3, len(routine))])))
	}

	switch s.Trend {
	case TrendEscalating:
		sentences = append(sentences, fmt.Sprintf("Intensity is escalating with %d new events in the last 30 minutes.", s.Recent))
	case TrendCalming:
		sentences = append(sentences, fmt.Sprintf("Activity appears to be calming: %d events in the last 30 min vs. %d earlier.", s.Recent, s.Earlier))
	case TrendSteady:
		sentences = append(sentences, fmt.Sprintf("%d events in the last 30 minutes, situation remains fluid.", s.Recent))
	}

	if len(critical) == 0 && len(s.TopLocations) >= 2 {
		sentences = append(sentences, fmt.Sprintf("Events reported across %s.", joinList(s.TopLocations)))
	}

	return strings.Join(sentences, " ")
}

// trend compares the last 30 minutes with the preceding 90. A shift needs a
// 1.5x difference and at least three events on the busier side.
func trend(recent, earlier int) Trend {
	switch {
	case recent == 0 && earlier == 0:
		return TrendNone
	case float64(recent) > float64(earlier)*1.5 && recent >= 3:
		return TrendEscalating
	case float64(earlier) > float64(recent)*1.5 && earlier >= 3:
		return TrendCalming
	default:
		return TrendSteady
	}
}

func typeName(c domain.Category, n int) string {
	names, ok := typeNames[c]
	if !ok {
		names = [2]string{string(c), string(c) + "s"}
	}
	if n == 1 {
		return names[0]
	}
	return names[1]
}

// categoriesByCount orders categories by count, falling back to the fixed
// category order on ties.
func categoriesByCount(counts map[domain.Category]int) []domain.Category {
	var out []domain.Category
	for _, c := range domain.Categories {
		if counts[c] > 0 {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Category) int {
		return cmp.Compare(counts[b], counts[a])
	})
	return out
}

// mostCommon returns up to n keys by descending count, ties by name.
func mostCommon(counts map[string]int, n int) []string {
	keys := lo.Keys(counts)
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return keys[:min(n, len(keys))]
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
