package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"studio/internal/events"
	"studio/internal/infra/credentials"
	"studio/internal/middleware"
)

func (a *app) tokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
		plan   string
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			claims := middleware.NewClaims(strings.TrimSpace(args[0]), a.locale, ttl)
			claims.Plan = plan
			token, err := middleware.SignJWT(secret, claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&plan, "plan", "", "plan claim to embed")
	return cmd
}

func (a *app) setKeyCmd() *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "set-key [api-key]",
		Short: "Store a provider API key in the database",
		Long: `Store a provider API key in integration_tokens. The API server reads it
when FAL_API_KEY or DASHSCOPE_API_KEY is not set. Without an argument the key
is taken from that variable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envKey, ok := keyEnv[provider]
			if !ok {
				return fmt.Errorf("unknown provider %q", provider)
			}
			key := os.Getenv(envKey)
			if len(args) == 1 {
				key = args[0]
			}
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("api key is required as argument or %s", envKey)
			}
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			if rt.Credentials == nil {
				return errors.New("set-key needs the postgres store")
			}
			if err := rt.Credentials.SetAPIKey(cmd.Context(), provider, key); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s API key stored\n", provider)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", credentials.ProviderFal, "provider the key belongs to (fal, qwen)")
	return cmd
}

var keyEnv = map[string]string{
	credentials.ProviderFal:  "FAL_API_KEY",
	credentials.ProviderQwen: "DASHSCOPE_API_KEY",
}

func (a *app) eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Stream job transition events from Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			if rt.Redis == nil {
				return errors.New("events needs REDIS_ADDR")
			}
			out := cmd.OutOrStdout()
			return events.Subscribe(cmd.Context(), rt.Redis, rt.EventsChannel, func(e events.JobEvent) {
				if a.asJSON {
					_ = json.NewEncoder(out).Encode(e)
					return
				}
				fmt.Fprintf(out, "%s %-14s %s %s %d%%\n", e.OccurredAt.Format(time.RFC3339), e.Type, e.JobID, e.Status, e.Progress)
			})
		},
	}
}
