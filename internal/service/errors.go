package service

import "errors"

// Sentinel errors returned by the pipeline-facing services. HTTP handlers map them to status codes.
var (
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoFile is returned when an upload carries no file part.
	ErrNoFile = errors.New("no file")
	// ErrEmptyFilename is returned when the uploaded file has no name.
	ErrEmptyFilename = errors.New("empty filename")
	// ErrFileTypeNotAllowed is returned for extensions outside the allow-list.
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	// ErrArtifactTooLarge is returned when an upload exceeds the size limit.
	ErrArtifactTooLarge = errors.New("file too large")
	// ErrOwnerMismatch is returned when a caller asks for a job it does not own.
	ErrOwnerMismatch = errors.New("job belongs to another owner")
	// ErrResultsNotReady is returned when results are requested before the job completed.
	ErrResultsNotReady = errors.New("task not completed yet")
	// ErrResultsUnavailable is returned when a completed job's results document cannot be read.
	// The read error is wrapped alongside it.
	ErrResultsUnavailable = errors.New("results unavailable")
	// ErrRegisteredOnly is returned when a guest attempts an account-only operation.
	ErrRegisteredOnly = errors.New("operation requires a registered account")
)
