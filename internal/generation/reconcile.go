package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/events"
)

const (
	// MessageMissingResult is stored when a provider reports success without
	// an artifact.
	MessageMissingResult = "provider reported completion but returned no result"
	// MessageDefaultFailure is stored when a provider fails without detail.
	MessageDefaultFailure = "generation failed"
)

// Reconciler maps a provider status snapshot onto the stored job.
type Reconciler struct {
	repo   domain.JobRepository
	events events.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

// Reconcile applies snap to job and returns the stored row afterwards. A
// terminal write that loses against a concurrent session returns that
// session's stored result. Unknown provider vocabulary and result fetch
// failures leave the job untouched and return a *domain.StatusCheckError.
func (r *Reconciler) Reconcile(ctx context.Context, job *domain.Job, provider domain.Provider, snap domain.StatusSnapshot) (*domain.Job, error) {
	status, err := domain.MapProviderStatus(job.Kind, snap.RawStatus)
	if err != nil {
		return job, &domain.StatusCheckError{JobID: job.ID, Err: err}
	}
	log := r.logger.With().Str("job_id", job.ID).Str("status", string(status)).Logger()

	switch status {
	case domain.JobStatusCompleted:
		resultURL := strings.TrimSpace(snap.ResultURL)
		if resultURL == "" {
			resultURL, err = provider.FetchResult(ctx, job.RequestID)
			if err != nil {
				log.Warn().Err(err).Msg("fetch result failed")
				return job, &domain.StatusCheckError{JobID: job.ID, Err: fmt.Errorf("fetch result: %w", err)}
			}
			resultURL = strings.TrimSpace(resultURL)
		}
		if resultURL == "" {
			log.Warn().Msg("completed without result, marking failed")
			return r.fail(ctx, job, MessageMissingResult)
		}
		applied, err := r.repo.MarkCompleted(ctx, job.ID, resultURL)
		if err != nil {
			return job, err
		}
		return r.settle(ctx, job.ID, applied, events.TypeCompleted)

	case domain.JobStatusFailed:
		message := strings.TrimSpace(snap.Error)
		if message == "" {
			message = MessageDefaultFailure
		}
		return r.fail(ctx, job, message)

	default:
		progress := domain.EstimateProgress(job.Kind, job.CreatedAt, r.now())
		applied, err := r.repo.UpdateProgress(ctx, job.ID, status, progress)
		if err != nil {
			return job, err
		}
		return r.settle(ctx, job.ID, applied, events.TypeProgress)
	}
}

func (r *Reconciler) fail(ctx context.Context, job *domain.Job, message string) (*domain.Job, error) {
	applied, err := r.repo.MarkFailed(ctx, job.ID, message)
	if err != nil {
		return job, err
	}
	return r.settle(ctx, job.ID, applied, events.TypeFailed)
}

// settle reloads the stored row and publishes t when this session's write
// was applied.
func (r *Reconciler) settle(ctx context.Context, jobID string, applied bool, t events.Type) (*domain.Job, error) {
	stored, err := r.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("reload job: %w", err)
	}
	if !applied {
		r.logger.Debug().Str("job_id", jobID).Str("stored_status", string(stored.Status)).Msg("write not applied, using stored row")
		return stored, nil
	}
	if t != events.TypeProgress {
		r.logger.Info().Str("job_id", jobID).Str("status", string(stored.Status)).Msg("job reached terminal state")
	}
	if err := r.events.Publish(ctx, events.FromJob(t, stored, r.now())); err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Str("event", string(t)).Msg("publish event failed")
	}
	return stored, nil
}
