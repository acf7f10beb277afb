//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/crisis-news-scanner/internal/adapter/fetch"
	"github.com/couchcryptid/crisis-news-scanner/internal/adapter/kafka"
	"github.com/couchcryptid/crisis-news-scanner/internal/classify"
	"github.com/couchcryptid/crisis-news-scanner/internal/dedup"
	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
	"github.com/couchcryptid/crisis-news-scanner/internal/geocode"
	"github.com/couchcryptid/crisis-news-scanner/internal/observability"
	"github.com/couchcryptid/crisis-news-scanner/internal/pipeline"
	"github.com/couchcryptid/crisis-news-scanner/internal/store"
)

const testTopic = "test-crisis-events"

const aljazeeraFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Al Jazeera</title>
<item>
  <title>Missile strike reported near Tel Aviv</title>
  <link>https://aj.example.com/tel-aviv</link>
  <description>Sirens were heard before impact.</description>
  <pubDate>Sun, 01 Mar 2026 11:30:00 GMT</pubDate>
</item>
</channel></rss>`

const jpostFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Jerusalem Post</title>
<item>
  <title>Missile strike near Tel Aviv</title>
  <link>https://jpost.example.com/tel-aviv</link>
  <description>Emergency crews were dispatched to central Tel Aviv.</description>
  <pubDate>Sun, 01 Mar 2026 11:40:00 GMT</pubDate>
</item>
</channel></rss>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("crisis-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func serve(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

type publishedMessage struct {
	Event   domain.NewsEvent
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.NewsEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal message")

	return publishedMessage{Event: event, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestPublisherRoundTrip verifies that a published event can be read back with
// its key and headers intact.
func TestPublisherRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	publisher := kafka.NewPublisher([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	seen := time.Date(2026, 3, 1, 11, 45, 0, 0, time.UTC)
	event := domain.NewsEvent{
		ID:               "evt-1",
		Title:            "Air raid sirens sound in Haifa",
		SourceID:         "jpost",
		Category:         domain.CategoryAlert,
		Location:         &domain.Location{Name: "Haifa", Latitude: 32.794, Longitude: 34.9896},
		PublishedAt:      seen,
		FirstSeenAt:      seen,
		LastSeenAt:       seen,
		RelatedSourceIDs: []string{"jpost"},
		Severity:         4,
	}
	require.NoError(t, publisher.Publish(ctx, []domain.NewsEvent{event}))

	pm := readPublished(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "evt-1", pm.Key)
	assert.Equal(t, "alert", pm.Headers["category"])
	assert.Equal(t, "2026-03-01T11:45:00Z", pm.Headers["last_seen_at"])
	assert.Equal(t, event.Title, pm.Event.Title)
	require.NotNil(t, pm.Event.Location)
	assert.Equal(t, "Haifa", pm.Event.Location.Name)
}

// TestPipelineEndToEnd runs a cycle over two sources reporting the same
// incident and verifies the merged event reaches Kafka.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	sources := []domain.Source{
		{ID: "aljazeera", Name: "Al Jazeera", URL: serve(t, aljazeeraFeed), Type: domain.SourceRSS, Enabled: true},
		{ID: "jpost", Name: "Jerusalem Post", URL: serve(t, jpostFeed), Type: domain.SourceRSS, Enabled: true},
	}

	metrics := observability.NewMetricsForTesting()
	events := store.New(100)
	fetcher := fetch.New(fetch.Config{
		RequestTimeout: 5 * time.Second,
		MaxRetries:     1,
		CacheTTL:       time.Minute,
		CacheSize:      16,
	}, discardLogger(), metrics)

	publisher := kafka.NewPublisher([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	p, err := pipeline.New(pipeline.Options{
		Sources:      sources,
		MaxEntries:   50,
		CycleTimeout: 30 * time.Second,
	},
		fetcher,
		pipeline.NewEnricher(geocode.Default(), classify.New()),
		dedup.New(events, dedup.DefaultConfig()),
		events,
		publisher,
		discardLogger(),
		metrics,
	)
	require.NoError(t, err)

	report, err := p.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 1, report.Published)

	pm := readPublished(ctx, t, newConsumer(t, broker))
	assert.Equal(t, domain.CategoryMissile, pm.Event.Category)
	assert.Equal(t, "missile", pm.Headers["category"])
	assert.ElementsMatch(t, []string{"aljazeera", "jpost"}, pm.Event.RelatedSourceIDs)
	require.NotNil(t, pm.Event.Location)
	assert.Equal(t, "Tel Aviv", pm.Event.Location.Name)

	stored, ok := events.Get(pm.Key)
	require.True(t, ok, "message key is the stored event id")
	assert.Equal(t, stored.Title, pm.Event.Title)
}
