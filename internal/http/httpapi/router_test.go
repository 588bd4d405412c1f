package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/adapter/repo"
	"studio/internal/domain"
	"studio/internal/generation"
	"studio/internal/http/handlers"
	"studio/internal/middleware"
	"studio/internal/providers"
)

const secret = "router-secret"

type queuedProvider struct{}

func (queuedProvider) Name() string { return "queued" }
func (queuedProvider) Submit(context.Context, domain.SubmitRequest) (string, error) {
	return "req-1", nil
}
func (queuedProvider) Status(context.Context, string) (domain.StatusSnapshot, error) {
	return domain.StatusSnapshot{RawStatus: "IN_QUEUE"}, nil
}
func (queuedProvider) FetchResult(context.Context, string) (string, error) { return "", nil }
func (queuedProvider) Retry(context.Context, string, domain.SubmitRequest) (string, error) {
	return "req-2", nil
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	registry := providers.NewRegistry()
	registry.Register(domain.JobKindImage, queuedProvider{})
	service := generation.NewService(generation.Options{
		Repo:      repo.NewMemoryJobRepository(),
		Providers: registry,
		Logger:    zerolog.Nop(),
	})
	app := handlers.NewApp(handlers.Options{Jobs: service, Logger: zerolog.Nop()})
	return NewRouter(app, Options{
		Logger:        zerolog.Nop(),
		JWTSecret:     secret,
		DefaultLocale: "en",
	})
}

func bearer(t *testing.T, user string) string {
	t.Helper()
	token, err := middleware.SignJWT(secret, middleware.NewClaims(user, "", time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + token
}

func TestHealthIsPublic(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestJobsRequireToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSubmitAndFetchThroughRouter(t *testing.T) {
	router := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{"kind":"image","prompt":"a red bicycle"}`))
	req.Header.Set("Authorization", bearer(t, "user-1"))
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d body=%s", rec.Code, rec.Body.String())
	}
	var job struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Status != "in_queue" || job.Message != "Permintaan gambar Anda sedang dalam antrean." {
		t.Fatalf("unexpected job: %+v", job)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID, nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID, nil)
	req.Header.Set("Authorization", bearer(t, "user-2"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign get status = %d", rec.Code)
	}
}
