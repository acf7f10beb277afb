package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	seen := time.Date(2026, 3, 1, 11, 45, 0, 0, time.UTC)
	event := domain.NewsEvent{
		ID:               "evt-1",
		Title:            "Missile strike reported near Tel Aviv",
		SourceID:         "aljazeera",
		Category:         domain.CategoryMissile,
		Location:         &domain.Location{Name: "Tel Aviv", Latitude: 32.0853, Longitude: 34.7818},
		PublishedAt:      seen.Add(-15 * time.Minute),
		FirstSeenAt:      seen.Add(-10 * time.Minute),
		LastSeenAt:       seen,
		RelatedSourceIDs: []string{"aljazeera", "jpost"},
		Severity:         5,
		Reports:          []string{"r1@aljazeera"},
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("evt-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"category":"missile"`)
	assert.Contains(t, string(msg.Value), `"related_source_ids":["aljazeera","jpost"]`)
	assert.NotContains(t, string(msg.Value), "r1@aljazeera", "report refs stay internal")
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "category", msg.Headers[0].Key)
	assert.Equal(t, []byte("missile"), msg.Headers[0].Value)
	assert.Equal(t, "last_seen_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-03-01T11:45:00Z"), msg.Headers[1].Value)
}

func TestSerializeToMessage_LastSeenInUTC(t *testing.T) {
	loc := time.FixedZone("IDT", 3*60*60)
	event := domain.NewsEvent{ID: "evt-2", Category: domain.CategoryAlert, LastSeenAt: time.Date(2026, 3, 1, 14, 0, 0, 0, loc)}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("2026-03-01T11:00:00Z"), msg.Headers[1].Value)
}

func TestPublish_EmptyBatchIsNoop(t *testing.T) {
	p := NewPublisher([]string{"localhost:1"}, "crisis-events", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = p.Close() })

	assert.NoError(t, p.Publish(context.Background(), nil))
}
