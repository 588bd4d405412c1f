package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token   string
	err     error
	queried int
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queried++
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestFalAPIKey(t *testing.T) {
	store := NewStore(&stubExecutor{token: " fal-123 "})
	key, err := store.FalAPIKey(context.Background())
	if err != nil {
		t.Fatalf("FalAPIKey error: %v", err)
	}
	if key != "fal-123" {
		t.Fatalf("expected fal-123, got %q", key)
	}
}

func TestFalAPIKey_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.FalAPIKey(context.Background())
	if err != nil {
		t.Fatalf("FalAPIKey error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestResolvePrefersConfigured(t *testing.T) {
	exec := &stubExecutor{token: "stored"}
	store := NewStore(exec)
	key, err := store.Resolve(context.Background(), ProviderFal, " env-key ")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if key != "env-key" {
		t.Fatalf("expected env-key, got %q", key)
	}
	if exec.queried != 0 {
		t.Fatalf("expected no query, got %d", exec.queried)
	}
}

func TestResolveFallsBackToStore(t *testing.T) {
	store := NewStore(&stubExecutor{token: "stored"})
	key, err := store.Resolve(context.Background(), ProviderFal, "")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if key != "stored" {
		t.Fatalf("expected stored, got %q", key)
	}
}

func TestResolveMissing(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	if _, err := store.Resolve(context.Background(), ProviderFal, ""); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}

	var nilStore *Store
	if _, err := nilStore.Resolve(context.Background(), ProviderFal, ""); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey from nil store, got %v", err)
	}
}

func TestSetFalAPIKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetFalAPIKey(context.Background(), "secret"); err != nil {
		t.Fatalf("SetFalAPIKey error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestSetFalAPIKeyEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetFalAPIKey(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestSetAPIKeyForQwen(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetAPIKey(context.Background(), ProviderQwen, " sk-1 "); err != nil {
		t.Fatalf("SetAPIKey error: %v", err)
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderQwen {
		t.Fatalf("provider arg = %v", exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "sk-1" {
		t.Fatalf("token arg = %v", exec.exec.args[1])
	}
}
