// Package cli implements jobctl, the operator command line for generation
// jobs. Commands run the job lifecycle in-process against the configured store.
package cli

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"studio/internal/domain"
	"studio/internal/generation"
	"studio/internal/infra/credentials"
)

// Version is set at build time.
var Version = "0.1.0"

// JobService is the lifecycle surface the commands drive.
type JobService interface {
	Submit(ctx context.Context, in generation.SubmitInput) (*domain.Job, error)
	Get(ctx context.Context, userID, jobID string) (*domain.Job, error)
	List(ctx context.Context, userID string, kind domain.JobKind, limit int) ([]domain.Job, error)
	CheckStatus(ctx context.Context, userID, jobID string) (*domain.Job, error)
	Retry(ctx context.Context, userID, jobID string) (*domain.Job, error)
}

// Runtime is what a command needs from the environment. Optional parts are nil
// when not configured.
type Runtime struct {
	Jobs          JobService
	Credentials   *credentials.Store
	Redis         *redis.Client
	EventsChannel string
	PollInterval  time.Duration
	Close         func()
}

// Connector builds the runtime on first use.
type Connector func(ctx context.Context) (*Runtime, error)

var errJobFailed = errors.New("job failed")

type app struct {
	connect Connector
	rt      *Runtime

	user   string
	locale string
	asJSON bool
}

// NewRootCommand assembles the jobctl command tree.
func NewRootCommand(connect Connector) *cobra.Command {
	a := &app{connect: connect}

	root := &cobra.Command{
		Use:   "jobctl",
		Short: "Operate generation jobs",
		Long: `jobctl submits, inspects, watches and retries generation jobs.

Status checks run only when a command asks for them; watch drives a poller
until the job reaches a terminal state.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.rt != nil && a.rt.Close != nil {
				a.rt.Close()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.user, "user", "u", envOr("JOBCTL_USER", "operator"), "user id that owns the jobs")
	root.PersistentFlags().StringVar(&a.locale, "locale", envOr("JOBCTL_LOCALE", "en"), "locale for status messages (en, id)")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print JSON instead of text")

	root.AddCommand(
		a.submitCmd(),
		a.showCmd(),
		a.listCmd(),
		a.checkCmd(),
		a.watchCmd(),
		a.retryCmd(),
		a.tokenCmd(),
		a.setKeyCmd(),
		a.eventsCmd(),
	)
	return root
}

func (a *app) runtime(ctx context.Context) (*Runtime, error) {
	if a.rt != nil {
		return a.rt, nil
	}
	rt, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	a.rt = rt
	return rt, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
