package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("IMAGE_PROVIDER", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Store != StorePostgres {
		t.Fatalf("Store = %q, want %q", cfg.Store, StorePostgres)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("PollInterval = %s, want 3s", cfg.PollInterval)
	}
	if cfg.FalBaseURL != "https://queue.fal.run" {
		t.Fatalf("FalBaseURL = %q", cfg.FalBaseURL)
	}
	if cfg.CORSOrigins != nil {
		t.Fatalf("CORSOrigins = %#v, want nil", cfg.CORSOrigins)
	}
	if cfg.ImageProvider != ProviderFal {
		t.Fatalf("ImageProvider = %q, want fal", cfg.ImageProvider)
	}
}

func TestLoadConfigMemoryStoreSkipsDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE", "Memory")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("Store = %q, want memory", cfg.Store)
	}
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("STORE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected DATABASE_URL error")
	}

	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected JWT_SECRET error")
	}
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE", "")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("PROVIDER_RPS", "2.5")
	t.Setenv("CORS_ORIGINS", " https://app.example.com , ,https://admin.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("PollInterval = %s", cfg.PollInterval)
	}
	if cfg.ProviderRPS != 2.5 {
		t.Fatalf("ProviderRPS = %v", cfg.ProviderRPS)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %#v", cfg.CORSOrigins)
	}
	for i := range want {
		if cfg.CORSOrigins[i] != want[i] {
			t.Fatalf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], want[i])
		}
	}
}

func TestLoadConfigRejectsUnknownStore(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE", "sqlite")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown store")
	}
}

func TestLoadConfigImageProvider(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE", "memory")
	t.Setenv("IMAGE_PROVIDER", "Qwen")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ImageProvider != ProviderQwen {
		t.Fatalf("ImageProvider = %q, want qwen", cfg.ImageProvider)
	}

	t.Setenv("IMAGE_PROVIDER", "midjourney")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown image provider")
	}
}
