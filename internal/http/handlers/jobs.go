package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/generation"
	"studio/internal/middleware"
	"studio/internal/notify"
)

const (
	maxSubmitBody = 1 << 20
	maxListLimit  = 200
)

type submitJobRequest struct {
	Kind           domain.JobKind  `json:"kind"`
	Prompt         string          `json:"prompt"`
	SourceImageURL string          `json:"source_image_url"`
	Settings       json.RawMessage `json:"settings"`
}

type jobView struct {
	ID        string           `json:"id"`
	Kind      domain.JobKind   `json:"kind"`
	Status    domain.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	Result    *string          `json:"result"`
	Error     *string          `json:"error"`
	RequestID string           `json:"request_id,omitempty"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func newJobView(locale string, job *domain.Job) jobView {
	return jobView{
		ID:        job.ID,
		Kind:      job.Kind,
		Status:    job.Status,
		Progress:  job.Progress,
		Result:    job.ResultURL,
		Error:     job.ErrorMessage,
		RequestID: job.RequestID,
		Message:   notify.JobMessage(locale, job),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.fail(w, r, domain.ErrUnauthorized, nil)
		return
	}
	var req submitJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody)).Decode(&req); err != nil {
		a.badRequest(w, r, "body", "invalid payload")
		return
	}
	job, err := a.Jobs.Submit(r.Context(), generation.SubmitInput{
		UserID:         userID,
		Kind:           req.Kind,
		Prompt:         req.Prompt,
		SourceImageURL: req.SourceImageURL,
		Settings:       req.Settings,
	})
	if err != nil {
		a.fail(w, r, err, job)
		return
	}
	a.json(w, http.StatusAccepted, newJobView(middleware.LocaleFromContext(r.Context()), job))
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.fail(w, r, domain.ErrUnauthorized, nil)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.badRequest(w, r, "limit", "must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	kind := domain.JobKind(r.URL.Query().Get("kind"))
	jobs, err := a.Jobs.List(r.Context(), userID, kind, limit)
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	items := make([]jobView, 0, len(jobs))
	for i := range jobs {
		items = append(items, newJobView(locale, &jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.fail(w, r, domain.ErrUnauthorized, nil)
		return
	}
	job, err := a.Jobs.Get(r.Context(), userID, chi.URLParam(r, "job_id"))
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	a.json(w, http.StatusOK, newJobView(middleware.LocaleFromContext(r.Context()), job))
}

// CheckJob runs one status reconciliation for the job.
func (a *App) CheckJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.fail(w, r, domain.ErrUnauthorized, nil)
		return
	}
	job, err := a.Jobs.CheckStatus(r.Context(), userID, chi.URLParam(r, "job_id"))
	if err != nil {
		a.fail(w, r, err, job)
		return
	}
	a.json(w, http.StatusOK, newJobView(middleware.LocaleFromContext(r.Context()), job))
}

func (a *App) RetryJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.fail(w, r, domain.ErrUnauthorized, nil)
		return
	}
	job, err := a.Jobs.Retry(r.Context(), userID, chi.URLParam(r, "job_id"))
	if err != nil {
		a.fail(w, r, err, job)
		return
	}
	a.json(w, http.StatusOK, newJobView(middleware.LocaleFromContext(r.Context()), job))
}
