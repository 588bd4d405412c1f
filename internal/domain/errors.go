package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotRetryable      = errors.New("job is not in a retryable state")
	ErrNotSubmitted      = errors.New("job has no provider request yet")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrProviderFailure   = errors.New("provider failure")
)

// ValidationError rejects a request before any storage or network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionError is returned when the provider rejects a request after the
// job row was created. The job is left in_queue.
type SubmissionError struct {
	JobID string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit job %s: %v", e.JobID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// StatusCheckError is returned when a status query fails to produce a usable
// answer. The job is not transitioned and polling stops.
type StatusCheckError struct {
	JobID string
	Err   error
}

func (e *StatusCheckError) Error() string {
	return fmt.Sprintf("check status of job %s: %v", e.JobID, e.Err)
}

func (e *StatusCheckError) Unwrap() error { return e.Err }

// ProviderError carries a non-2xx answer from a generation provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderFailure
}
