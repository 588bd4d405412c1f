package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"studio/internal/bootstrap"
	"studio/internal/cli"
	"studio/internal/infra"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(connect)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func connect(ctx context.Context) (*cli.Runtime, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := infra.NewLoggerTo(os.Stderr, "cli").With().Str("cmd", "jobctl").Logger()
	stack, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &cli.Runtime{
		Jobs:          stack.Service,
		Credentials:   stack.Credentials,
		Redis:         stack.Redis,
		EventsChannel: cfg.EventsChannel,
		PollInterval:  cfg.PollInterval,
		Close:         stack.Close,
	}, nil
}
