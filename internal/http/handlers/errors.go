package handlers

import (
	"errors"
	"net/http"

	"studio/internal/domain"
	"studio/internal/middleware"
	"studio/internal/notify"
)

type errorDetail struct {
	Code    notify.Code `json:"code"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
	Job   *jobView    `json:"job,omitempty"`
}

// statusFromError maps lifecycle errors onto HTTP status codes and message codes.
func statusFromError(err error) (int, notify.Code) {
	var validation *domain.ValidationError
	var submission *domain.SubmissionError
	var statusCheck *domain.StatusCheckError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, notify.CodeBadRequest
	case errors.As(err, &submission):
		return http.StatusBadGateway, notify.CodeSubmissionFailed
	case errors.As(err, &statusCheck):
		return http.StatusBadGateway, notify.CodeStatusCheckFailed
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, notify.CodeUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, notify.CodeNotFound
	case errors.Is(err, domain.ErrNotRetryable):
		return http.StatusConflict, notify.CodeNotRetryable
	case errors.Is(err, domain.ErrNotSubmitted):
		return http.StatusConflict, notify.CodeNotSubmitted
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, notify.CodeConflict
	case errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway, notify.CodeSubmissionFailed
	default:
		return http.StatusInternalServerError, notify.CodeInternal
	}
}

// fail writes the localized error body. job is attached when the operation
// got far enough to have one, so clients can keep tracking it.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, job *domain.Job) {
	status, code := statusFromError(err)
	locale := middleware.LocaleFromContext(r.Context())

	detail := errorDetail{Code: code, Message: notify.Message(locale, code)}
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		detail.Field = validation.Field
		detail.Message = notify.Message(locale, code, validation.Error())
	}

	event := a.Logger.Warn()
	if status >= http.StatusInternalServerError {
		event = a.Logger.Error()
	}
	event.Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Int("status", status).
		Msg("request failed")

	resp := errorResponse{Error: detail}
	if job != nil {
		view := newJobView(locale, job)
		resp.Job = &view
	}
	a.json(w, status, resp)
}

func (a *App) badRequest(w http.ResponseWriter, r *http.Request, field, reason string) {
	a.fail(w, r, &domain.ValidationError{Field: field, Reason: reason}, nil)
}
