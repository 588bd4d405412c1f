package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/generation"
	"studio/internal/middleware"
)

// JobService is the job lifecycle the handlers expose.
type JobService interface {
	Submit(ctx context.Context, in generation.SubmitInput) (*domain.Job, error)
	Get(ctx context.Context, userID, jobID string) (*domain.Job, error)
	List(ctx context.Context, userID string, kind domain.JobKind, limit int) ([]domain.Job, error)
	CheckStatus(ctx context.Context, userID, jobID string) (*domain.Job, error)
	Retry(ctx context.Context, userID, jobID string) (*domain.Job, error)
}

// Options wires the handler dependencies.
type Options struct {
	Jobs           JobService
	Polls          *generation.Registry
	Logger         zerolog.Logger
	PollInterval   time.Duration
	AllowedOrigins []string
}

type App struct {
	Jobs         JobService
	Polls        *generation.Registry
	Logger       zerolog.Logger
	PollInterval time.Duration

	upgrader websocket.Upgrader
}

func NewApp(opts Options) *App {
	if opts.Polls == nil {
		opts.Polls = generation.NewRegistry()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = generation.DefaultPollInterval
	}
	return &App{
		Jobs:         opts.Jobs,
		Polls:        opts.Polls,
		Logger:       opts.Logger,
		PollInterval: opts.PollInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// originChecker accepts same-origin and non-browser clients plus the
// configured origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
