package fetch

import (
	"fmt"
	"net/http"
)

// Reason classifies a fetch failure.
type Reason string

const (
	ReasonTimeout    Reason = "timeout"
	ReasonConnection Reason = "connection"
	ReasonStatus     Reason = "status"
	ReasonCanceled   Reason = "canceled"
	ReasonTooLarge   Reason = "too_large"
)

// FetchFailure is returned for every unsuccessful fetch. The pipeline skips
// the source for the cycle and continues with the others.
type FetchFailure struct {
	SourceID   string
	URL        string
	Reason     Reason
	StatusCode int // set when Reason is ReasonStatus
	Attempts   int
	Err        error
}

func (f *FetchFailure) Error() string {
	if f.Reason == ReasonStatus {
		return fmt.Sprintf("fetch %s: %s %d after %d attempt(s)", f.SourceID, f.Reason, f.StatusCode, f.Attempts)
	}
	return fmt.Sprintf("fetch %s: %s after %d attempt(s): %v", f.SourceID, f.Reason, f.Attempts, f.Err)
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// permanent reports whether a status code will not change on retry.
func permanent(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return true
	}
	return false
}

// retryable reports whether another attempt could produce a different outcome.
func retryable(f *FetchFailure) bool {
	switch f.Reason {
	case ReasonCanceled, ReasonTooLarge:
		return false
	case ReasonStatus:
		return !permanent(f.StatusCode)
	}
	return true
}
