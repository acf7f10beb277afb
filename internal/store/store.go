// Package store holds the in-memory, capacity-bounded collection of
// deduplicated events.
package store

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

// EventStore is a mutex-guarded map of events keyed by ID. Reads may run
// concurrently with the single writer; every returned event is a copy.
type EventStore struct {
	mu       sync.RWMutex
	capacity int
	events   map[string]domain.NewsEvent
}

// New creates a store that keeps at most capacity events. A non-positive
// capacity is treated as 1.
func New(capacity int) *EventStore {
	if capacity < 1 {
		capacity = 1
	}
	return &EventStore{
		capacity: capacity,
		events:   make(map[string]domain.NewsEvent, capacity),
	}
}

// Upsert inserts or replaces ev. When an insert pushes the store past
// capacity the least-recently-seen events are evicted (the new event
// included, if it is the stalest) and their IDs returned.
func (s *EventStore) Upsert(ev domain.NewsEvent) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.ID] = ev.Clone()

	var evicted []string
	for len(s.events) > s.capacity {
		id := s.leastRecentlySeen()
		delete(s.events, id)
		evicted = append(evicted, id)
	}
	return evicted
}

// leastRecentlySeen must be called with mu held.
func (s *EventStore) leastRecentlySeen() string {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, ev := range s.events {
		if oldestID == "" || ev.LastSeenAt.Before(oldestAt) || (ev.LastSeenAt.Equal(oldestAt) && id < oldestID) {
			oldestID, oldestAt = id, ev.LastSeenAt
		}
	}
	return oldestID
}

// Get returns the event with the given ID.
func (s *EventStore) Get(id string) (domain.NewsEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return domain.NewsEvent{}, false
	}
	return ev.Clone(), true
}

// Recent returns up to limit events, most recently seen first. A non-positive
// limit returns every event.
func (s *EventStore) Recent(limit int) []domain.NewsEvent {
	out := s.snapshot(func(domain.NewsEvent) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// AllWithLocation returns every event that has coordinates, most recently
// seen first.
func (s *EventStore) AllWithLocation() []domain.NewsEvent {
	return s.snapshot(domain.NewsEvent.HasLocation)
}

// All returns every event, most recently seen first.
func (s *EventStore) All() []domain.NewsEvent {
	return s.Recent(0)
}

// Len reports the number of stored events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Capacity reports the maximum number of events kept.
func (s *EventStore) Capacity() int {
	return s.capacity
}

func (s *EventStore) snapshot(keep func(domain.NewsEvent) bool) []domain.NewsEvent {
	s.mu.RLock()
	out := make([]domain.NewsEvent, 0, len(s.events))
	for _, ev := range s.events {
		if keep(ev) {
			out = append(out, ev.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, byLastSeenDesc)
	return out
}

func byLastSeenDesc(a, b domain.NewsEvent) int {
	if c := b.LastSeenAt.Compare(a.LastSeenAt); c != 0 {
		return c
	}
	if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
