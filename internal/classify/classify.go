// Package classify assigns event categories and severity scores to report text
// using ordered regular-expression rules.
package classify

import (
	"regexp"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

type rule struct {
	category domain.Category
	pattern  *regexp.Regexp
}

// rules are evaluated in order and the first match wins. Weapon-specific
// groups come before explosion, alert and military keywords, so "missile
// strike triggers sirens" is a missile event rather than an alert.
var rules = []rule{
	{domain.CategoryAirstrike, regexp.MustCompile(`(?i)\b(?:airstrikes?|air\s*strikes?|bomb(?:ing|ings|ed|s)\b|strikes?\s+on\b|struck|sorties?|fighter\s*jets?|warplanes?|b-2|stealth\s+bomber|bunker\s*buster)`)},
	{domain.CategoryMissile, regexp.MustCompile(`(?i)\b(?:missiles?|ballistic|cruise\s*missile|intercept|iron\s*dome|patriot|arrow\s*system|thaad|s-?300|rockets?|drone\s*strikes?|drone\s*attacks?|uavs?\b|launch(?:ed|es)?\b.*\b(?:missile|rocket))`)},
	{domain.CategoryExplosion, regexp.MustCompile(`(?i)\b(?:explosions?|blasts?|detonat|explod|booms?\b|fires?\b|burning|smoke\s*(?:rising|seen|billowing)|damage)`)},
	{domain.CategoryAlert, regexp.MustCompile(`(?i)\b(?:sirens?|alerts?|warnings?|shelters?|evacuat|airspace\s*clos|take\s*cover|emergency|no-fly\s*zone)`)},
	{domain.CategoryMilitary, regexp.MustCompile(`(?i)\b(?:military\s*movement|troops?|deploy|naval|carriers?|fleet|destroyers?|submarines?|convoys?|mobiliz|operation\b|regiments?|battalions?|pentagon|defen[cs]e\s*minister|idf\b|irgc\b|5th\s*fleet)`)},
}

var (
	casualtyRe   = regexp.MustCompile(`(?i)\b(?:killed|dead|deaths?|casualt|mass\s+casualt|catastroph)`)
	strikeRe     = regexp.MustCompile(`(?i)\b(?:airstrikes?|struck|missile\s*hits?|explosions?)`)
	launchRe     = regexp.MustCompile(`(?i)\b(?:launch|intercept|sirens?|alerts?)`)
	diplomacyRe  = regexp.MustCompile(`(?i)\b(?:condemn|urges?\b|statement|negotiat|diplomac|diplomat)`)
	disruptionRe = regexp.MustCompile(`(?i)\b(?:suspend\w*\s+(?:\w+\s+)?flights?|clos\w*\s+(?:\w+\s+)?airspace)`)
)

const (
	minSeverity     = 1
	defaultSeverity = 3
	maxSeverity     = 5
)

// Classifier implements domain.Classifier. The zero value is ready to use.
type Classifier struct{}

// New returns a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify returns the first matching category, or domain.CategoryOther.
// It never returns a value outside domain.Categories.
func (*Classifier) Classify(text string) domain.Category {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.category
		}
	}
	return domain.CategoryOther
}

// EstimateSeverity scores text from 1 (routine) to 5 (mass casualties).
func (*Classifier) EstimateSeverity(text string) int {
	score := defaultSeverity
	switch {
	case casualtyRe.MatchString(text):
		score = maxSeverity
	case strikeRe.MatchString(text), launchRe.MatchString(text):
		score = 4
	}

	// Diplomatic language and travel disruption cap the score.
	if diplomacyRe.MatchString(text) {
		score = min(score, 2)
	}
	if disruptionRe.MatchString(text) {
		score = min(score, 3)
	}
	return max(minSeverity, min(score, maxSeverity))
}
