package dedup

import (
	"time"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

// Key is the similarity key of one candidate.
type Key struct {
	ID string
	// ReportID identifies the source item across polls. It equals ID for
	// dated reports. Undated reports take their bucket from the fetch time,
	// so their ID drifts between polls and ReportID leaves the time out.
	ReportID string
	Tokens   []string
	Category domain.Category
	Location string
	Bucket   time.Time
}

// NewKey derives the similarity key and event ID for a candidate.
func NewKey(c domain.Candidate, bucketWidth time.Duration) Key {
	tokens := domain.TitleTokens(c.Title)
	bucket := domain.TimeBucket(c.Published(), bucketWidth)
	loc := c.LocationName()
	id := domain.GenerateID(c.Category, tokens, bucket, loc)
	reportID := id
	if c.PublishedAt.IsZero() {
		reportID = domain.UndatedReportID(tokens, c.URL, loc)
	}
	return Key{
		ID:       id,
		ReportID: reportID,
		Tokens:   tokens,
		Category: c.Category,
		Location: loc,
		Bucket:   bucket,
	}
}

// Similarity is the Sørensen-Dice coefficient of two sorted, de-duplicated
// token sets: 2|A∩B| / (|A|+|B|). Two empty sets score 0.
func Similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			shared++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}
