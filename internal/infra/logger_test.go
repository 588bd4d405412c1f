package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "")
	logger.Debug().Msg("hidden")
	logger.Info().Str("job_id", "j1").Msg("visible")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["job_id"] != "j1" || entry["service"] != "studio" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestNewLoggerLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", " WARN ")
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("level = %s, want warn", logger.GetLevel())
	}
	logger = newLogger(&buf, "development", "nonsense")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("level = %s, want debug", logger.GetLevel())
	}
}
