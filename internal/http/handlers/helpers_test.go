package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"studio/internal/adapter/repo"
	"studio/internal/domain"
	"studio/internal/generation"
	"studio/internal/middleware"
	"studio/internal/providers"
)

type stubProvider struct {
	mu        sync.Mutex
	submitID  string
	submitErr error
	snapshots []domain.StatusSnapshot
	statusErr error
	retryID   string
	retryErr  error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Submit(context.Context, domain.SubmitRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitID, p.submitErr
}

func (p *stubProvider) Status(context.Context, string) (domain.StatusSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.statusErr != nil {
		return domain.StatusSnapshot{}, p.statusErr
	}
	if len(p.snapshots) == 0 {
		return domain.StatusSnapshot{RawStatus: "IN_QUEUE"}, nil
	}
	snap := p.snapshots[0]
	if len(p.snapshots) > 1 {
		p.snapshots = p.snapshots[1:]
	}
	return snap, nil
}

func (p *stubProvider) FetchResult(context.Context, string) (string, error) {
	return "", nil
}

func (p *stubProvider) Retry(context.Context, string, domain.SubmitRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retryID, p.retryErr
}

func (p *stubProvider) script(snaps ...domain.StatusSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = snaps
	p.statusErr = nil
}

type testEnv struct {
	app      *App
	handler  http.Handler
	provider *stubProvider
	jobs     *repo.MemoryJobRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	provider := &stubProvider{submitID: "req-1", retryID: "req-2"}
	registry := providers.NewRegistry()
	for _, kind := range domain.JobKinds {
		registry.Register(kind, provider)
	}
	jobs := repo.NewMemoryJobRepository()
	service := generation.NewService(generation.Options{
		Repo:      jobs,
		Providers: registry,
		Logger:    zerolog.Nop(),
	})
	app := NewApp(Options{
		Jobs:         service,
		Polls:        generation.NewRegistry(),
		Logger:       zerolog.Nop(),
		PollInterval: 10 * time.Millisecond,
	})

	r := chi.NewRouter()
	r.Use(asTestUser)
	r.Get("/v1/healthz", app.Health)
	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.SubmitJob)
		r.Get("/", app.ListJobs)
		r.Get("/{job_id}", app.GetJob)
		r.Post("/{job_id}/check", app.CheckJob)
		r.Post("/{job_id}/retry", app.RetryJob)
		r.Get("/{job_id}/watch", app.WatchJob)
	})
	return &testEnv{app: app, handler: r, provider: provider, jobs: jobs}
}

// asTestUser stands in for the JWT middleware.
func asTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.ContextWithUserID(r.Context(), r.Header.Get("X-Test-User"))
		if locale := r.Header.Get("X-Test-Locale"); locale != "" {
			ctx = context.WithValue(ctx, middleware.LocaleKey, locale)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) submitImage(t *testing.T, user string) jobView {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/jobs", user, map[string]any{
		"kind":   "image",
		"prompt": "a ceramic mug on a wooden table",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d body=%s", rec.Code, rec.Body.String())
	}
	return decodeJob(t, rec)
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) jobView {
	t.Helper()
	var view jobView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode job: %v (%s)", err, rec.Body.String())
	}
	return view
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v (%s)", err, rec.Body.String())
	}
	return resp
}
