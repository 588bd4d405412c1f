package domain

import (
	"context"
	"encoding/json"
)

// JobFilter narrows job listings to one owner.
type JobFilter struct {
	UserID string
	Kind   JobKind
	Limit  int
}

// JobRepository defines persistence for generation jobs. Terminal writes are
// conditional: they apply only while the stored row is still non-terminal and
// report applied=false otherwise.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	List(ctx context.Context, filter JobFilter) ([]Job, error)
	SetRequestID(ctx context.Context, jobID, requestID string) error
	UpdateProgress(ctx context.Context, jobID string, status JobStatus, progress int) (bool, error)
	MarkCompleted(ctx context.Context, jobID, resultURL string) (bool, error)
	MarkFailed(ctx context.Context, jobID, message string) (bool, error)
	// ClaimRetry moves a failed job back to in_queue with no request id. Of
	// several concurrent callers exactly one sees applied=true.
	ClaimRetry(ctx context.Context, jobID string) (bool, error)
}

// SubmitRequest is the normalized payload sent to a provider.
type SubmitRequest struct {
	JobID          string
	Kind           JobKind
	Prompt         string
	SourceImageURL string
	Settings       json.RawMessage
}

// StatusSnapshot is a provider's view of one request.
type StatusSnapshot struct {
	RawStatus string
	ResultURL string
	Error     string
}

// Provider submits and tracks requests against one external generation API.
type Provider interface {
	Name() string
	Submit(ctx context.Context, req SubmitRequest) (requestID string, err error)
	Status(ctx context.Context, requestID string) (StatusSnapshot, error)
	FetchResult(ctx context.Context, requestID string) (string, error)
	Retry(ctx context.Context, requestID string, req SubmitRequest) (newRequestID string, err error)
}
