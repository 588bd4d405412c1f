// Package bootstrap assembles the job lifecycle stack from configuration. It
// is shared by the API server and the operator CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"studio/internal/adapter/repo"
	"studio/internal/domain"
	"studio/internal/events"
	"studio/internal/generation"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
	"studio/internal/providers"
	"studio/internal/providers/fal"
	"studio/internal/providers/qwen"
)

// Stack holds the constructed components and the resources behind them.
type Stack struct {
	Config      *infra.Config
	Logger      zerolog.Logger
	Jobs        domain.JobRepository
	Providers   *providers.Registry
	Service     *generation.Service
	Credentials *credentials.Store
	Redis       *redis.Client

	pool *pgxpool.Pool
}

// Build connects the configured store, resolves provider credentials and
// wires the generation service. Redis is optional.
func Build(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Stack, error) {
	s := &Stack{Config: cfg, Logger: logger}

	switch cfg.Store {
	case infra.StoreMemory:
		s.Jobs = repo.NewMemoryJobRepository()
		logger.Warn().Msg("using in-memory job store; jobs are lost on restart")
	default:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		runner := infra.NewSQLRunner(pool, logger)
		s.Jobs = repo.NewJobRepository(runner)
		s.Credentials = credentials.NewStore(runner)
	}

	falKey, err := s.Credentials.Resolve(ctx, credentials.ProviderFal, cfg.FalAPIKey)
	if err != nil {
		if !errors.Is(err, credentials.ErrMissingKey) {
			s.Close()
			return nil, err
		}
		logger.Warn().Msg("fal api key missing; submissions will be rejected")
	}

	client, err := fal.NewClient(fal.Options{
		APIKey:         falKey,
		BaseURL:        cfg.FalBaseURL,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
		RateLimit:      cfg.ProviderRPS,
		Burst:          cfg.ProviderBurst,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("configure fal client: %w", err)
	}
	s.Providers = providers.NewRegistry()
	if cfg.ImageProvider == infra.ProviderQwen {
		image, err := s.qwenImageProvider(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Providers.Register(domain.JobKindImage, image)
	} else {
		s.Providers.Register(domain.JobKindImage, fal.NewImageProvider(client, cfg.FalImageModel))
	}
	s.Providers.Register(domain.JobKindVideo, fal.NewVideoProvider(client, cfg.FalVideoModel))
	s.Providers.Register(domain.JobKindProductShot, fal.NewProductShotProvider(client, cfg.FalProductModel))

	var publisher events.Publisher = events.Nop{}
	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	if rdb != nil {
		s.Redis = rdb
		publisher = events.NewRedisPublisher(rdb, cfg.EventsChannel, logger)
	}

	s.Service = generation.NewService(generation.Options{
		Repo:      s.Jobs,
		Providers: s.Providers,
		Events:    publisher,
		Logger:    logger,
	})
	return s, nil
}

func (s *Stack) qwenImageProvider(ctx context.Context) (*qwen.Provider, error) {
	key, err := s.Credentials.Resolve(ctx, credentials.ProviderQwen, s.Config.QwenAPIKey)
	if err != nil {
		if !errors.Is(err, credentials.ErrMissingKey) {
			return nil, err
		}
		s.Logger.Warn().Msg("dashscope api key missing; image submissions will be rejected")
	}
	client, err := qwen.NewClient(qwen.Options{
		APIKey:         key,
		BaseURL:        s.Config.QwenBaseURL,
		Logger:         &s.Logger,
		RequestTimeout: s.Config.ProviderTimeout,
		RateLimit:      s.Config.ProviderRPS,
		Burst:          s.Config.ProviderBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("configure qwen client: %w", err)
	}
	return qwen.NewImageProvider(client, s.Config.QwenImageModel), nil
}

// Close releases the database pool and Redis connection.
func (s *Stack) Close() {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Logger.Warn().Err(err).Msg("close redis")
		}
		s.Redis = nil
	}
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}
