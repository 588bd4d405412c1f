package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/domain/jsoncfg"
	"studio/internal/events"
)

// MaxPromptLength bounds prompt size in characters.
const MaxPromptLength = 2000

// ProviderLookup resolves the provider serving a job kind.
type ProviderLookup interface {
	For(kind domain.JobKind) (domain.Provider, error)
}

// Options wires the service dependencies.
type Options struct {
	Repo      domain.JobRepository
	Providers ProviderLookup
	Events    events.Publisher
	Logger    zerolog.Logger
	Now       func() time.Time
	NewID     func() string
}

// Service owns the job lifecycle: submission, status checks and retries.
type Service struct {
	repo       domain.JobRepository
	providers  ProviderLookup
	events     events.Publisher
	logger     zerolog.Logger
	now        func() time.Time
	newID      func() string
	reconciler *Reconciler
}

func NewService(opts Options) *Service {
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	s := &Service{
		repo:      opts.Repo,
		providers: opts.Providers,
		events:    opts.Events,
		logger:    opts.Logger,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	s.reconciler = &Reconciler{repo: opts.Repo, events: opts.Events, logger: opts.Logger, now: opts.Now}
	return s
}

// SubmitInput carries the caller's generation parameters.
type SubmitInput struct {
	UserID         string
	Kind           domain.JobKind
	Prompt         string
	SourceImageURL string
	Settings       json.RawMessage
}

// Submit validates the input, stores a new queued job and forwards it to the
// provider. When the provider rejects the request the stored job is returned
// together with a *domain.SubmissionError and stays in_queue.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*domain.Job, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.SourceImageURL = strings.TrimSpace(in.SourceImageURL)
	if in.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	settings, err := jsoncfg.NormalizeSettings(in.Kind, in.Settings)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.For(in.Kind)
	if err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:             s.newID(),
		UserID:         in.UserID,
		Kind:           in.Kind,
		Status:         domain.JobStatusInQueue,
		Prompt:         in.Prompt,
		SourceImageURL: in.SourceImageURL,
		Settings:       settings,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	log := s.logger.With().Str("job_id", job.ID).Str("kind", string(job.Kind)).Logger()

	requestID, err := provider.Submit(ctx, submitRequest(job))
	if err != nil {
		log.Warn().Err(err).Str("provider", provider.Name()).Msg("provider submission failed")
		return job, &domain.SubmissionError{JobID: job.ID, Err: err}
	}
	if err := s.storeRequestID(ctx, log, job.ID, requestID); err != nil {
		return job, err
	}
	job.RequestID = requestID
	log.Info().Str("request_id", requestID).Str("provider", provider.Name()).Msg("job submitted")
	s.publish(ctx, events.TypeSubmitted, job)
	return job, nil
}

// Get returns a job owned by userID.
func (s *Service) Get(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// List returns the newest jobs owned by userID.
func (s *Service) List(ctx context.Context, userID string, kind domain.JobKind, limit int) ([]domain.Job, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	if kind != "" && !kind.Valid() {
		return nil, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unsupported kind %q", kind)}
	}
	return s.repo.List(ctx, domain.JobFilter{UserID: userID, Kind: kind, Limit: limit})
}

// CheckStatus performs one provider status query and reconciles the answer
// into the stored job. Terminal jobs are returned without a provider call.
func (s *Service) CheckStatus(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	if job.RequestID == "" {
		return job, domain.ErrNotSubmitted
	}
	provider, err := s.providers.For(job.Kind)
	if err != nil {
		return job, &domain.StatusCheckError{JobID: job.ID, Err: err}
	}
	snap, err := provider.Status(ctx, job.RequestID)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Str("request_id", job.RequestID).Msg("status check failed")
		return job, &domain.StatusCheckError{JobID: job.ID, Err: err}
	}
	return s.reconciler.Reconcile(ctx, job, provider, snap)
}

// Retry resubmits a failed job and puts it back in the queue. It never runs
// automatically. The row is claimed before the provider is called so that
// concurrent retries resubmit once; a rejected resubmission restores the
// failed state.
func (s *Service) Retry(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusFailed {
		return job, domain.ErrNotRetryable
	}
	provider, err := s.providers.For(job.Kind)
	if err != nil {
		return job, &domain.SubmissionError{JobID: job.ID, Err: err}
	}
	claimed, err := s.repo.ClaimRetry(ctx, job.ID)
	if err != nil {
		return job, fmt.Errorf("claim retry: %w", err)
	}
	if !claimed {
		stored, err := s.repo.GetByID(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		return stored, domain.ErrNotRetryable
	}
	log := s.logger.With().Str("job_id", job.ID).Str("previous_request_id", job.RequestID).Logger()

	requestID, err := provider.Retry(ctx, job.RequestID, submitRequest(job))
	if err != nil {
		log.Warn().Err(err).Msg("provider retry failed")
		message := job.Error()
		if message == "" {
			message = MessageDefaultFailure
		}
		if _, rerr := s.repo.MarkFailed(ctx, job.ID, message); rerr != nil {
			log.Error().Err(rerr).Msg("restore failed state after rejected retry")
		}
		return s.reload(ctx, job), &domain.SubmissionError{JobID: job.ID, Err: err}
	}
	if err := s.storeRequestID(ctx, log, job.ID, requestID); err != nil {
		return s.reload(ctx, job), err
	}
	stored, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("request_id", requestID).Msg("job retried")
	s.publish(ctx, events.TypeRetried, stored)
	return stored, nil
}

// storeRequestID links an accepted provider request to its job. When that
// fails the provider request id is only recoverable from the log.
func (s *Service) storeRequestID(ctx context.Context, log zerolog.Logger, jobID, requestID string) error {
	if err := s.repo.SetRequestID(ctx, jobID, requestID); err != nil {
		log.Error().Err(err).Str("request_id", requestID).Msg("provider accepted request but storing its id failed")
		return &domain.SubmissionError{JobID: jobID, Err: fmt.Errorf("store request id %s: %w", requestID, err)}
	}
	return nil
}

// reload returns the stored row, or job when it cannot be read.
func (s *Service) reload(ctx context.Context, job *domain.Job) *domain.Job {
	stored, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return job
	}
	return stored
}

func (s *Service) publish(ctx context.Context, t events.Type, job *domain.Job) {
	if err := s.events.Publish(ctx, events.FromJob(t, job, s.now())); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Str("event", string(t)).Msg("publish event failed")
	}
}

func validateInput(in SubmitInput) error {
	if !in.Kind.Valid() {
		return &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unsupported kind %q", in.Kind)}
	}
	if in.Prompt == "" {
		return &domain.ValidationError{Field: "prompt", Reason: "is required"}
	}
	if utf8.RuneCountInString(in.Prompt) > MaxPromptLength {
		return &domain.ValidationError{Field: "prompt", Reason: fmt.Sprintf("must be at most %d characters", MaxPromptLength)}
	}
	if in.SourceImageURL == "" {
		if in.Kind.RequiresSource() {
			return &domain.ValidationError{Field: "source_image_url", Reason: fmt.Sprintf("is required for %s jobs", in.Kind)}
		}
		return nil
	}
	u, err := url.Parse(in.SourceImageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &domain.ValidationError{Field: "source_image_url", Reason: "must be an absolute http(s) url"}
	}
	return nil
}

func submitRequest(job *domain.Job) domain.SubmitRequest {
	return domain.SubmitRequest{
		JobID:          job.ID,
		Kind:           job.Kind,
		Prompt:         job.Prompt,
		SourceImageURL: job.SourceImageURL,
		Settings:       job.Settings,
	}
}

