package infra

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestExtractMarker(t *testing.T) {
	query := `--sql 7d1c2f7e-2b6f-4d0a-9d7b-94a0b2a2d6f1
select 1;
`
	marker, body, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker error: %v", err)
	}
	if marker != "7d1c2f7e-2b6f-4d0a-9d7b-94a0b2a2d6f1" {
		t.Fatalf("marker = %q", marker)
	}
	if strings.TrimSpace(body) != "select 1;" {
		t.Fatalf("body = %q", body)
	}
}

func TestExtractMarkerRejects(t *testing.T) {
	tests := map[string]string{
		"empty":      "   ",
		"no marker":  "select 1;",
		"bad uuid":   "--sql not-a-uuid\nselect 1;",
		"upper uuid": "--sql 7D1C2F7E-2B6F-4D0A-9D7B-94A0B2A2D6F1\nselect 1;",
	}
	for name, query := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := extractMarker(query); err == nil {
				t.Fatalf("expected error for %q", query)
			}
		})
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Fatal("pgx.ErrNoRows not detected")
	}
	if !IsNoRows(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)) {
		t.Fatal("wrapped pgx.ErrNoRows not detected")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatal("unexpected match")
	}
}
