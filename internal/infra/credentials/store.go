package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"studio/internal/infra"
	"studio/internal/sqlinline"
)

const (
	ProviderFal  = "fal"
	ProviderQwen = "qwen"
)

// ErrMissingKey is returned when neither the environment nor the
// integration_tokens table holds a key for a provider.
var ErrMissingKey = errors.New("provider api key not configured")

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) FalAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderFal)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the configured key and falls back to the stored token.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	if s == nil || s.sql == nil {
		return "", fmt.Errorf("%s: %w", provider, ErrMissingKey)
	}
	key, err := s.Token(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("load %s token: %w", provider, err)
	}
	if key == "" {
		return "", fmt.Errorf("%s: %w", provider, ErrMissingKey)
	}
	return key, nil
}

func (s *Store) SetFalAPIKey(ctx context.Context, key string) error {
	return s.SetAPIKey(ctx, ProviderFal, key)
}

// SetAPIKey stores the key for provider in integration_tokens.
func (s *Store) SetAPIKey(ctx context.Context, provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	return s.upsert(ctx, provider, key, map[string]any{"source": "jobctl"})
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
