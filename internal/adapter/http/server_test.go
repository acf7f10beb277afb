package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-news-scanner/internal/adapter/fetch"
	httpadapter "github.com/couchcryptid/crisis-news-scanner/internal/adapter/http"
	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
	"github.com/couchcryptid/crisis-news-scanner/internal/pipeline"
	"github.com/couchcryptid/crisis-news-scanner/internal/store"
	"github.com/couchcryptid/crisis-news-scanner/internal/summary"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockMonitor struct {
	statuses []fetch.Status
}

func (m *mockMonitor) Statuses() []fetch.Status { return m.statuses }

type mockReporter struct {
	report pipeline.Report
	ok     bool
}

func (m *mockReporter) LastReport() (pipeline.Report, bool) { return m.report, m.ok }

func newEvent(id string, cat domain.Category, loc *domain.Location, age time.Duration) domain.NewsEvent {
	return domain.NewsEvent{
		ID:               id,
		Title:            "event " + id,
		SourceID:         "bbc",
		Category:         cat,
		Location:         loc,
		PublishedAt:      now.Add(-age),
		FirstSeenAt:      now.Add(-age),
		LastSeenAt:       now.Add(-age),
		RelatedSourceIDs: []string{"bbc"},
		Severity:         3,
	}
}

func seededStore() *store.EventStore {
	s := store.New(100)
	haifa := &domain.Location{Name: "Haifa", Latitude: 32.794, Longitude: 34.9896}
	s.Upsert(newEvent("a", domain.CategoryMissile, haifa, 5*time.Minute))
	s.Upsert(newEvent("b", domain.CategoryAlert, nil, 10*time.Minute))
	s.Upsert(newEvent("c", domain.CategoryMissile, haifa, 20*time.Minute))
	return s
}

func newTestServer(api httpadapter.API) *httpadapter.Server {
	if api.Events == nil {
		api.Events = store.New(10)
	}
	if api.Readiness == nil {
		api.Readiness = &mockReadiness{}
	}
	return httpadapter.NewServer(":0", api, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(t *testing.T, srv *httpadapter.Server, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(httpadapter.API{})

	var body map[string]string
	rec := get(t, srv, "/healthz", &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz(t *testing.T) {
	ready := &mockReadiness{err: errors.New("no cycle has completed")}
	srv := newTestServer(httpadapter.API{Readiness: ready})

	var body map[string]string
	rec := get(t, srv, "/readyz", &body)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no cycle has completed", body["error"])

	ready.err = nil
	body = nil
	rec = get(t, srv, "/readyz", &body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(httpadapter.API{})

	rec := get(t, srv, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type eventList struct {
	Events []domain.NewsEvent `json:"events"`
	Count  int                `json:"count"`
	Total  int                `json:"total"`
}

func TestListEvents(t *testing.T) {
	srv := newTestServer(httpadapter.API{Events: seededStore()})

	tests := []struct {
		name    string
		path    string
		wantIDs []string
	}{
		{"default limit", "/api/v1/events", []string{"a", "b", "c"}},
		{"explicit limit", "/api/v1/events?limit=2", []string{"a", "b"}},
		{"invalid limit falls back", "/api/v1/events?limit=abc", []string{"a", "b", "c"}},
		{"negative limit falls back", "/api/v1/events?limit=-5", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body eventList
			rec := get(t, srv, tt.path, &body)

			assert.Equal(t, http.StatusOK, rec.Code)
			ids := make([]string, 0, len(body.Events))
			for _, ev := range body.Events {
				ids = append(ids, ev.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), body.Count)
			assert.Equal(t, 3, body.Total)
		})
	}
}

func TestListEvents_EmptyStoreReturnsArray(t *testing.T) {
	srv := newTestServer(httpadapter.API{})

	rec := get(t, srv, "/api/v1/events", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[],"count":0,"total":0}`, rec.Body.String())
}

func TestMapEvents_OnlyLocated(t *testing.T) {
	srv := newTestServer(httpadapter.API{Events: seededStore()})

	var body eventList
	rec := get(t, srv, "/api/v1/events/map", &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body.Events, 2)
	for _, ev := range body.Events {
		require.NotNil(t, ev.Location)
		assert.Equal(t, "Haifa", ev.Location.Name)
	}
}

func TestGetEvent(t *testing.T) {
	srv := newTestServer(httpadapter.API{Events: seededStore()})

	var ev domain.NewsEvent
	rec := get(t, srv, "/api/v1/events/b", &ev)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b", ev.ID)
	assert.Equal(t, domain.CategoryAlert, ev.Category)

	var missing map[string]string
	rec = get(t, srv, "/api/v1/events/nope", &missing)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "event not found", missing["error"])
}

func TestListSources_JoinsStatusAndLastCycle(t *testing.T) {
	sources := []domain.Source{
		{ID: "bbc", Name: "BBC", URL: "https://feeds.bbci.co.uk/news/world/rss.xml", Type: domain.SourceRSS, Enabled: true},
		{ID: "cnn", Name: "CNN", URL: "https://edition.cnn.com/world/live-news", Type: domain.SourceHTML, Enabled: true},
	}
	monitor := &mockMonitor{statuses: []fetch.Status{
		{SourceID: "bbc", State: fetch.StateCached, Since: now},
	}}
	reporter := &mockReporter{ok: true, report: pipeline.Report{
		StartedAt: now,
		Sources: []pipeline.SourceReport{
			{SourceID: "bbc", Candidates: 4},
			{SourceID: "cnn", Error: "fetch cnn: timeout"},
		},
	}}
	srv := newTestServer(httpadapter.API{Sources: sources, Monitor: monitor, Cycles: reporter})

	var body struct {
		Sources []struct {
			ID        string                 `json:"id"`
			Status    *fetch.Status          `json:"status"`
			LastCycle *pipeline.SourceReport `json:"last_cycle"`
		} `json:"sources"`
		LastCycle *time.Time `json:"last_cycle"`
	}
	rec := get(t, srv, "/api/v1/sources", &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body.Sources, 2)
	require.NotNil(t, body.LastCycle)
	assert.True(t, now.Equal(*body.LastCycle))

	bbc, cnn := body.Sources[0], body.Sources[1]
	assert.Equal(t, "bbc", bbc.ID)
	require.NotNil(t, bbc.Status)
	assert.Equal(t, fetch.StateCached, bbc.Status.State)
	require.NotNil(t, bbc.LastCycle)
	assert.Equal(t, 4, bbc.LastCycle.Candidates)

	assert.Equal(t, "cnn", cnn.ID)
	assert.Nil(t, cnn.Status)
	require.NotNil(t, cnn.LastCycle)
	assert.Equal(t, "fetch cnn: timeout", cnn.LastCycle.Error)
}

func TestListSources_BeforeFirstCycle(t *testing.T) {
	srv := newTestServer(httpadapter.API{
		Sources: []domain.Source{{ID: "bbc", Type: domain.SourceRSS}},
		Cycles:  &mockReporter{},
	})

	rec := get(t, srv, "/api/v1/sources", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"last_cycle":null`)
}

func TestGetSummary(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })

	srv := newTestServer(httpadapter.API{Events: seededStore()})

	var body summary.Summary
	rec := get(t, srv, "/api/v1/summary", &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 2, body.Counts[domain.CategoryMissile])
	assert.Equal(t, []string{"Haifa"}, body.TopLocations)
	assert.Equal(t, summary.TrendEscalating, body.Trend)
	assert.Contains(t, body.Text, "Active situation: 2 missile events near Haifa")
}
