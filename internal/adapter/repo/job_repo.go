package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

const defaultListLimit = 50

// JobRepositoryPG implements domain.JobRepository on top of the marker-tagged
// SQL runner.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new job record and fills in the stored timestamps.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	settings := []byte(job.Settings)
	if len(settings) == 0 {
		settings = []byte("{}")
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID,
		job.UserID,
		string(job.Kind),
		string(job.Status),
		job.Progress,
		job.Prompt,
		job.SourceImageURL,
		settings,
	)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// List returns the newest jobs of one owner.
func (r *JobRepositoryPG) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListJobsByUser, filter.UserID, string(filter.Kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// SetRequestID stores the provider request id of a fresh submission.
func (r *JobRepositoryPG) SetRequestID(ctx context.Context, jobID, requestID string) error {
	applied, err := r.exec(ctx, sqlinline.QSetJobRequestID, jobID, requestID)
	if err != nil {
		return fmt.Errorf("set request id: %w", err)
	}
	if applied {
		return nil
	}
	if _, err := r.GetByID(ctx, jobID); err != nil {
		return err
	}
	return fmt.Errorf("%w: request id already set for job %s", domain.ErrInvalidTransition, jobID)
}

// UpdateProgress records a non-terminal status and raises progress.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, status domain.JobStatus, progress int) (bool, error) {
	if status.IsTerminal() {
		return false, fmt.Errorf("%w: progress update to %s", domain.ErrInvalidTransition, status)
	}
	applied, err := r.exec(ctx, sqlinline.QUpdateJobProgress, jobID, string(status), progress)
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}
	return applied, nil
}

// MarkCompleted stores the artifact URL unless the job is already terminal.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, jobID, resultURL string) (bool, error) {
	applied, err := r.exec(ctx, sqlinline.QMarkJobCompleted, jobID, resultURL)
	if err != nil {
		return false, fmt.Errorf("mark completed: %w", err)
	}
	return applied, nil
}

// MarkFailed stores the failure message unless the job is already terminal.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, message string) (bool, error) {
	applied, err := r.exec(ctx, sqlinline.QMarkJobFailed, jobID, message)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	return applied, nil
}

// ClaimRetry requeues a failed job ahead of its resubmission.
func (r *JobRepositoryPG) ClaimRetry(ctx context.Context, jobID string) (bool, error) {
	applied, err := r.exec(ctx, sqlinline.QClaimJobForRetry, jobID)
	if err != nil {
		return false, fmt.Errorf("claim retry: %w", err)
	}
	return applied, nil
}

func (r *JobRepositoryPG) exec(ctx context.Context, query string, args ...any) (bool, error) {
	tag, err := r.sql.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job       domain.Job
		kind      string
		status    string
		requestID *string
		settings  []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&kind,
		&requestID,
		&status,
		&job.ResultURL,
		&job.ErrorMessage,
		&job.Progress,
		&job.Prompt,
		&job.SourceImageURL,
		&settings,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	if requestID != nil {
		job.RequestID = *requestID
	}
	if len(settings) > 0 {
		job.Settings = json.RawMessage(settings)
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
