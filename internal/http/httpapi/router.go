package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"studio/internal/http/handlers"
	"studio/internal/middleware"
)

// Options configures the router's middleware stack.
type Options struct {
	Logger          zerolog.Logger
	JWTSecret       string
	DefaultLocale   string
	CORSOrigins     []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Post("/", app.SubmitJob)
		r.Get("/", app.ListJobs)
		r.Route("/{job_id}", func(r chi.Router) {
			r.Get("/", app.GetJob)
			r.Post("/check", app.CheckJob)
			r.Post("/retry", app.RetryJob)
			r.Get("/watch", app.WatchJob)
		})
	})

	return r
}
