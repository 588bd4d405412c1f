package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"studio/internal/domain"
)

// MemoryJobRepository stores jobs in memory for local development and tests.
// It applies the same conditional-write rules as the SQL statements.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs: make(map[string]*domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source.
func (r *MemoryJobRepository) WithClock(now func() time.Time) *MemoryJobRepository {
	r.now = now
	return r
}

func (r *MemoryJobRepository) Create(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("insert job: duplicate id %s", job.ID)
	}
	now := r.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobRepository) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryJobRepository) List(_ context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Job
	for _, job := range r.jobs {
		if job.UserID != filter.UserID {
			continue
		}
		if filter.Kind != "" && job.Kind != filter.Kind {
			continue
		}
		out = append(out, *cloneJob(job))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryJobRepository) SetRequestID(_ context.Context, jobID, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.RequestID != "" {
		return fmt.Errorf("%w: request id already set for job %s", domain.ErrInvalidTransition, jobID)
	}
	job.RequestID = requestID
	job.UpdatedAt = r.now()
	return nil
}

func (r *MemoryJobRepository) UpdateProgress(_ context.Context, jobID string, status domain.JobStatus, progress int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return false, nil
	}
	if progress > domain.ProgressDone-1 {
		progress = domain.ProgressDone - 1
	}
	if err := job.Advance(status, progress, r.now()); err != nil {
		if status.IsTerminal() {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *MemoryJobRepository) MarkCompleted(_ context.Context, jobID, resultURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	return true, job.Complete(resultURL, r.now())
}

func (r *MemoryJobRepository) MarkFailed(_ context.Context, jobID, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	return true, job.Fail(message, r.now())
}

func (r *MemoryJobRepository) ClaimRetry(_ context.Context, jobID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return false, nil
	}
	if err := job.ResetForRetry(r.now()); err != nil {
		return false, nil
	}
	return true, nil
}

func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	out := *job
	if job.ResultURL != nil {
		v := *job.ResultURL
		out.ResultURL = &v
	}
	if job.ErrorMessage != nil {
		v := *job.ErrorMessage
		out.ErrorMessage = &v
	}
	if job.Settings != nil {
		out.Settings = append([]byte(nil), job.Settings...)
	}
	return &out
}

var _ domain.JobRepository = (*MemoryJobRepository)(nil)
