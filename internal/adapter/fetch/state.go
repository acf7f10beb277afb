package fetch

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// State is the position of a source in the fetch state machine:
//
//	idle -> in_flight -> cached | failed
//	cached | failed -> in_flight   (next cycle, cache expired)
//	cached -> cached               (served from cache)
type State string

const (
	StateIdle     State = "idle"
	StateInFlight State = "in_flight"
	StateCached   State = "cached"
	StateFailed   State = "failed"
)

// Status is a snapshot of one source's state.
type Status struct {
	SourceID            string    `json:"source_id"`
	State               State     `json:"state"`
	Since               time.Time `json:"since"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
	LastReason          Reason    `json:"last_reason,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// stateTable tracks every source seen by the fetcher.
type stateTable struct {
	mu     sync.Mutex
	states map[string]*Status
}

func newStateTable() *stateTable {
	return &stateTable{states: make(map[string]*Status)}
}

func (t *stateTable) get(id string) *Status {
	st, ok := t.states[id]
	if !ok {
		st = &Status{SourceID: id, State: StateIdle}
		t.states[id] = st
	}
	return st
}

func (t *stateTable) register(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st := t.get(id); st.Since.IsZero() {
		st.Since = now
	}
}

func (t *stateTable) begin(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.get(id)
	st.State = StateInFlight
	st.Since = now
}

func (t *stateTable) succeed(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.get(id)
	st.State = StateCached
	st.Since = now
	st.LastSuccess = now
	st.LastError = ""
	st.LastReason = ""
	st.ConsecutiveFailures = 0
}

func (t *stateTable) hit(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.get(id)
	if st.State != StateCached {
		st.State = StateCached
		st.Since = now
	}
}

func (t *stateTable) fail(id string, now time.Time, failure *FetchFailure) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.get(id)
	st.State = StateFailed
	st.Since = now
	st.LastError = failure.Error()
	st.LastReason = failure.Reason
	st.ConsecutiveFailures++
}

func (t *stateTable) snapshot() []Status {
	t.mu.Lock()
	out := make([]Status, 0, len(t.states))
	for _, st := range t.states {
		out = append(out, *st)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b Status) int { return cmp.Compare(a.SourceID, b.SourceID) })
	return out
}

func (t *stateTable) status(id string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[id]
	if !ok {
		return Status{}, false
	}
	return *st, true
}
