package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindImage       JobKind = "image"
	JobKindVideo       JobKind = "video"
	JobKindProductShot JobKind = "product_shot"
)

// JobKinds lists every kind accepted by the submission client.
var JobKinds = []JobKind{JobKindImage, JobKindVideo, JobKindProductShot}

// Valid reports whether k is a known kind.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindImage, JobKindVideo, JobKindProductShot:
		return true
	default:
		return false
	}
}

// RequiresSource reports whether the kind transforms an uploaded asset and
// therefore needs a source image reference.
func (k JobKind) RequiresSource() bool {
	return k == JobKindVideo || k == JobKindProductShot
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusInQueue    JobStatus = "in_queue"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further automatic transitions occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) rank() int {
	switch s {
	case JobStatusInQueue:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether the poller or reconciler may move a job from s
// to next. Writing the current state again is allowed; leaving a terminal
// state is not (retry uses ResetForRetry instead).
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.rank() < 0 || next.rank() < 0 {
		return false
	}
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// ProgressDone is reported for completed jobs.
const ProgressDone = 100

// Job encapsulates the lifecycle of one asynchronous generation request.
type Job struct {
	ID             string
	UserID         string
	Kind           JobKind
	RequestID      string
	Status         JobStatus
	ResultURL      *string
	ErrorMessage   *string
	Progress       int
	Prompt         string
	SourceImageURL string
	Settings       json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Result returns the artifact URL or an empty string.
func (j *Job) Result() string {
	if j == nil || j.ResultURL == nil {
		return ""
	}
	return *j.ResultURL
}

// Error returns the stored failure message or an empty string.
func (j *Job) Error() string {
	if j == nil || j.ErrorMessage == nil {
		return ""
	}
	return *j.ErrorMessage
}

// CheckInvariants verifies the result/error exclusivity and progress bounds.
func (j *Job) CheckInvariants() error {
	hasResult := j.ResultURL != nil
	hasError := j.ErrorMessage != nil
	switch j.Status {
	case JobStatusInQueue, JobStatusProcessing:
		if hasResult || hasError {
			return fmt.Errorf("job %s: %s job carries result or error", j.ID, j.Status)
		}
		if j.Progress < 0 || j.Progress > ProgressDone-1 {
			return fmt.Errorf("job %s: progress %d out of range for %s", j.ID, j.Progress, j.Status)
		}
	case JobStatusCompleted:
		if !hasResult || hasError {
			return fmt.Errorf("job %s: completed job must carry only a result", j.ID)
		}
		if j.Progress != ProgressDone {
			return fmt.Errorf("job %s: completed job progress %d", j.ID, j.Progress)
		}
	case JobStatusFailed:
		if !hasError || hasResult {
			return fmt.Errorf("job %s: failed job must carry only an error", j.ID)
		}
	default:
		return fmt.Errorf("job %s: unknown status %q", j.ID, j.Status)
	}
	return nil
}

// Complete moves the job into completed with the given artifact location.
func (j *Job) Complete(resultURL string, now time.Time) error {
	if !j.Status.CanTransition(JobStatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusCompleted)
	}
	j.Status = JobStatusCompleted
	j.ResultURL = &resultURL
	j.ErrorMessage = nil
	j.Progress = ProgressDone
	j.UpdatedAt = now
	return nil
}

// Fail moves the job into failed with the given message.
func (j *Job) Fail(message string, now time.Time) error {
	if !j.Status.CanTransition(JobStatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusFailed)
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = &message
	j.ResultURL = nil
	j.UpdatedAt = now
	return nil
}

// Advance records a non-terminal observation. Progress never goes backwards.
func (j *Job) Advance(status JobStatus, progress int, now time.Time) error {
	if status.IsTerminal() {
		return fmt.Errorf("%w: advance to terminal %s", ErrInvalidTransition, status)
	}
	if !j.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}
	j.Status = status
	if progress > j.Progress {
		j.Progress = progress
	}
	j.UpdatedAt = now
	return nil
}

// ResetForRetry puts a failed job back in the queue. The previous provider
// request id is cleared; the resubmission stores a new one.
func (j *Job) ResetForRetry(now time.Time) error {
	if j.Status != JobStatusFailed {
		return ErrNotRetryable
	}
	j.Status = JobStatusInQueue
	j.RequestID = ""
	j.ResultURL = nil
	j.ErrorMessage = nil
	j.Progress = 0
	j.UpdatedAt = now
	return nil
}
