package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testEvent(id string, seen time.Time, loc *domain.Location) domain.NewsEvent {
	return domain.NewsEvent{
		ID:               id,
		Title:            "title " + id,
		SourceID:         "bbc",
		Category:         domain.CategoryOther,
		Location:         loc,
		PublishedAt:      seen,
		FirstSeenAt:      seen,
		LastSeenAt:       seen,
		RelatedSourceIDs: []string{"bbc"},
		Severity:         3,
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := New(10)

	evicted := s.Upsert(testEvent("a", t0, nil))
	assert.Empty(t, evicted)
	assert.Equal(t, 1, s.Len())

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "title a", got.Title)

	updated := got
	updated.Title = "changed"
	s.Upsert(updated)
	assert.Equal(t, 1, s.Len(), "replace does not grow the store")

	got, _ = s.Get("a")
	assert.Equal(t, "changed", got.Title)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	s := New(10)
	s.Upsert(testEvent("a", t0, &domain.Location{Name: "Haifa"}))

	got, _ := s.Get("a")
	got.RelatedSourceIDs[0] = "mutated"
	got.Location.Name = "mutated"

	again, _ := s.Get("a")
	assert.Equal(t, []string{"bbc"}, again.RelatedSourceIDs)
	assert.Equal(t, "Haifa", again.Location.Name)
}

func TestEvictionAtCapacity(t *testing.T) {
	const capacity = 5
	s := New(capacity)

	// Insert out of order so eviction cannot rely on insertion order.
	offsets := []int{3, 0, 4, 1, 2}
	for _, m := range offsets {
		assert.Empty(t, s.Upsert(testEvent(fmt.Sprintf("e%d", m), t0.Add(time.Duration(m)*time.Minute), nil)))
	}

	evicted := s.Upsert(testEvent("e5", t0.Add(5*time.Minute), nil))

	assert.Equal(t, []string{"e0"}, evicted)
	assert.Equal(t, capacity, s.Len())
	_, ok := s.Get("e0")
	assert.False(t, ok, "least recently seen event evicted")
	_, ok = s.Get("e5")
	assert.True(t, ok)
}

func TestEviction_StaleInsertIsDropped(t *testing.T) {
	s := New(2)
	s.Upsert(testEvent("new1", t0.Add(time.Hour), nil))
	s.Upsert(testEvent("new2", t0.Add(2*time.Hour), nil))

	evicted := s.Upsert(testEvent("old", t0, nil))

	assert.Equal(t, []string{"old"}, evicted)
	assert.Equal(t, 2, s.Len())
}

func TestEviction_TieBreaksOnID(t *testing.T) {
	s := New(2)
	s.Upsert(testEvent("b", t0, nil))
	s.Upsert(testEvent("a", t0, nil))

	evicted := s.Upsert(testEvent("c", t0.Add(time.Minute), nil))
	assert.Equal(t, []string{"a"}, evicted)
}

func TestRecent(t *testing.T) {
	s := New(10)
	s.Upsert(testEvent("old", t0, nil))
	s.Upsert(testEvent("newest", t0.Add(2*time.Minute), nil))
	s.Upsert(testEvent("middle", t0.Add(time.Minute), nil))

	ids := func(evs []domain.NewsEvent) []string {
		out := make([]string, len(evs))
		for i, ev := range evs {
			out[i] = ev.ID
		}
		return out
	}

	assert.Equal(t, []string{"newest", "middle", "old"}, ids(s.Recent(0)))
	assert.Equal(t, []string{"newest", "middle"}, ids(s.Recent(2)))
	assert.Equal(t, []string{"newest", "middle", "old"}, ids(s.Recent(50)))
	assert.Equal(t, ids(s.Recent(0)), ids(s.All()))
}

func TestAllWithLocation(t *testing.T) {
	s := New(10)
	s.Upsert(testEvent("mapped", t0, &domain.Location{Name: "Tel Aviv", Latitude: 32.0853, Longitude: 34.7818}))
	s.Upsert(testEvent("statement", t0.Add(time.Minute), nil))

	mapped := s.AllWithLocation()
	require.Len(t, mapped, 1)
	assert.Equal(t, "mapped", mapped[0].ID)

	assert.Len(t, s.Recent(0), 2, "feed still includes events without a location")
}

func TestNewClampsCapacity(t *testing.T) {
	s := New(0)
	assert.Equal(t, 1, s.Capacity())
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	s := New(50)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 200 {
			s.Upsert(testEvent(fmt.Sprintf("e%03d", i), t0.Add(time.Duration(i)*time.Second), nil))
		}
	}()
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				_ = s.Recent(10)
				_ = s.AllWithLocation()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}
