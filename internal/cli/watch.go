package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"studio/internal/domain"
	"studio/internal/generation"
)

func (a *app) watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Poll a job until it completes or fails",
		Long: `Poll a job on a fixed delay, printing every observation, until it
reaches a terminal state or a status check fails. Interrupt to stop early.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			if interval > 0 {
				rt.PollInterval = interval
			}
			return a.watch(cmd, rt, args[0])
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "delay between status checks (default from POLL_INTERVAL)")
	return cmd
}

// watch blocks until the poller stops. A failed job or a status-check error
// is returned so the process exits non-zero.
func (a *app) watch(cmd *cobra.Command, rt *Runtime, jobID string) error {
	out := cmd.OutOrStdout()
	poller := generation.NewPoller(rt.Jobs, a.user, jobID, generation.PollerOptions{
		Interval: rt.PollInterval,
		OnUpdate: func(state generation.PollState) { a.printState(out, state) },
	})
	if err := poller.Start(cmd.Context()); err != nil {
		return err
	}
	<-poller.Done()

	if err := poller.Err(); err != nil {
		return err
	}
	state := poller.State()
	switch state.Status {
	case domain.JobStatusFailed:
		return fmt.Errorf("%w: %s", errJobFailed, state.Error)
	case domain.JobStatusCompleted:
		return nil
	default:
		return cmd.Context().Err()
	}
}
