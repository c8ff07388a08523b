package errors

import (
	"errors"
	"fmt"
)

// TransientFetchError marks a posting-source failure that is worth retrying
// (network fault, throttling, undecodable body).
type TransientFetchError struct {
	Attempt int
	Cause   error
}

func (e *TransientFetchError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("transient fetch failure (attempt %d): %v", e.Attempt, e.Cause)
	}
	return fmt.Sprintf("transient fetch failure: %v", e.Cause)
}

func (e *TransientFetchError) Unwrap() error { return e.Cause }

// Transient wraps err as a TransientFetchError.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientFetchError{Cause: err}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var t *TransientFetchError
	return errors.As(err, &t)
}

// ExhaustedRetriesError is returned once the fetch attempt budget is spent.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Last }

// MatchReason names why the match stage could not enrich results.
type MatchReason string

const (
	MatchReasonNoCredential        MatchReason = "no_credential"
	MatchReasonScoringFailed       MatchReason = "scoring_failed"
	MatchReasonArtifactUnavailable MatchReason = "artifact_unavailable"
)

// MatchServiceError halts enrichment. It never fails a job.
type MatchServiceError struct {
	Reason MatchReason
	Cause  error
}

func (e *MatchServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("match service: %s: %v", e.Reason, e.Cause)
	}
	return "match service: " + string(e.Reason)
}

func (e *MatchServiceError) Unwrap() error { return e.Cause }

// NewMatchServiceError builds a MatchServiceError.
func NewMatchServiceError(reason MatchReason, cause error) *MatchServiceError {
	return &MatchServiceError{Reason: reason, Cause: cause}
}

// MatchReasonOf extracts the reason from a MatchServiceError chain.
func MatchReasonOf(err error) (MatchReason, bool) {
	var m *MatchServiceError
	if errors.As(err, &m) {
		return m.Reason, true
	}
	return "", false
}

// CleanupError reports a failed artifact deletion. It is logged, never surfaced.
type CleanupError struct {
	Path  string
	Cause error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Path, e.Cause)
}

func (e *CleanupError) Unwrap() error { return e.Cause }
