package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services.
var (
	// ErrNotFound marks a webhook or lookup referencing a job or output
	// this system has no record of.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig marks configuration rejected at construction or
	// validation time; never retried.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConfigError wraps ErrInvalidConfig with a formatted reason.
func ConfigError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// JobFailedError carries a remote-reported job failure. It is surfaced
// to the caller after local cleanup of partial outputs and is never
// retried by this service.
type JobFailedError struct {
	JobID     int64
	CoconutID string
	Code      string
	Message   string
}

func (e *JobFailedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("job %s failed: %s: %s", e.CoconutID, e.Code, e.Message)
	}
	return fmt.Sprintf("job %s failed: %s", e.CoconutID, e.Message)
}

// IsJobFailed reports whether err is a remote job failure.
func IsJobFailed(err error) bool {
	var jfe *JobFailedError
	return errors.As(err, &jfe)
}
