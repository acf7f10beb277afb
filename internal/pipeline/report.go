package pipeline

import (
	"slices"
	"time"
)

// Report summarizes one cycle.
type Report struct {
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration_ns"`
	Sources    []SourceReport `json:"sources"`
	Candidates int            `json:"candidates"`
	Inserted   int            `json:"inserted"`
	Merged     int            `json:"merged"`
	Unchanged  int            `json:"unchanged"`
	Evicted    int            `json:"evicted"`
	Published  int            `json:"published"`
}

// SourceReport is the per-source outcome of a cycle. Error is empty on success.
type SourceReport struct {
	SourceID   string `json:"source_id"`
	Cached     bool   `json:"cached"`
	Candidates int    `json:"candidates"`
	Error      string `json:"error,omitempty"`
}

// FailedSources counts sources that yielded nothing because of an error.
func (r Report) FailedSources() int {
	n := 0
	for _, s := range r.Sources {
		if s.Error != "" {
			n++
		}
	}
	return n
}

// Errors maps source IDs to the error they hit in this cycle.
func (r Report) Errors() map[string]string {
	out := make(map[string]string)
	for _, s := range r.Sources {
		if s.Error != "" {
			out[s.SourceID] = s.Error
		}
	}
	return out
}

// result labels the cycle for metrics: ok, partial or failed.
func (r Report) result() string {
	failed := r.FailedSources()
	switch {
	case failed == 0:
		return "ok"
	case failed < len(r.Sources):
		return "partial"
	default:
		return "failed"
	}
}

func (r Report) clone() Report {
	r.Sources = slices.Clone(r.Sources)
	return r
}
