package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"studio/internal/domain"
	"studio/internal/generation"
)

func (a *app) submitCmd() *cobra.Command {
	var (
		kind     string
		prompt   string
		source   string
		settings string
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a generation job",
		Long: `Submit a generation job to the provider serving its kind.

Examples:
  jobctl submit --kind image --prompt "ceramic mug, soft light"
  jobctl submit --kind video --prompt "slow pan" --source https://cdn.example.com/mug.png --watch
  jobctl submit --kind image --prompt "mug" --settings '{"num_images":2}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			var raw json.RawMessage
			if s := strings.TrimSpace(settings); s != "" {
				if !json.Valid([]byte(s)) {
					return fmt.Errorf("--settings must be a JSON object")
				}
				raw = json.RawMessage(s)
			}
			job, err := rt.Jobs.Submit(cmd.Context(), generation.SubmitInput{
				UserID:         a.user,
				Kind:           domain.JobKind(kind),
				Prompt:         prompt,
				SourceImageURL: source,
				Settings:       raw,
			})
			if job != nil {
				if perr := a.printJob(cmd.OutOrStdout(), job); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if watch {
				return a.watch(cmd, rt, job.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", string(domain.JobKindImage), "job kind (image, video, product_shot)")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "generation prompt")
	cmd.Flags().StringVarP(&source, "source", "s", "", "source image URL (required for video and product_shot)")
	cmd.Flags().StringVar(&settings, "settings", "", "per-kind settings as a JSON object")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "watch the job until it finishes")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show the stored state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			job, err := rt.Jobs.Get(cmd.Context(), a.user, args[0])
			if err != nil {
				return err
			}
			return a.printJob(cmd.OutOrStdout(), job)
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var (
		kind  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest jobs of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			jobs, err := rt.Jobs.List(cmd.Context(), a.user, domain.JobKind(kind), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if a.asJSON {
				for i := range jobs {
					if err := a.printJob(w, &jobs[i]); err != nil {
						return err
					}
				}
				return nil
			}
			if len(jobs) == 0 {
				fmt.Fprintln(w, "no jobs")
				return nil
			}
			for _, job := range jobs {
				fmt.Fprintf(w, "%s  %-12s %-10s %3d%%  %s\n", job.ID, job.Kind, job.Status, job.Progress, job.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only list jobs of this kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of jobs")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <job-id>",
		Short: "Run one status check against the provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			job, err := rt.Jobs.CheckStatus(cmd.Context(), a.user, args[0])
			if job != nil {
				if perr := a.printJob(cmd.OutOrStdout(), job); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

func (a *app) retryCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Resubmit a failed job",
		Long: `Resubmit a failed job. The job goes back to in_queue under a new
provider request; only failed jobs can be retried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			job, err := rt.Jobs.Retry(cmd.Context(), a.user, args[0])
			if err != nil {
				return err
			}
			if err := a.printJob(cmd.OutOrStdout(), job); err != nil {
				return err
			}
			if watch {
				return a.watch(cmd, rt, job.ID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "watch the job until it finishes")
	return cmd
}
