package domain

import (
	"testing"
	"time"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		kind    JobKind
		raw     string
		want    JobStatus
		wantErr bool
	}{
		{kind: JobKindImage, raw: "IN_QUEUE", want: JobStatusInQueue},
		{kind: JobKindImage, raw: " in_progress ", want: JobStatusProcessing},
		{kind: JobKindImage, raw: "COMPLETED", want: JobStatusCompleted},
		{kind: JobKindImage, raw: "FAILED", want: JobStatusFailed},
		{kind: JobKindVideo, raw: "rendering", want: JobStatusProcessing},
		{kind: JobKindVideo, raw: "CANCELLED", want: JobStatusFailed},
		{kind: JobKindImage, raw: "CANCELLED", want: JobStatusFailed},
		{kind: JobKindImage, raw: "canceled", want: JobStatusFailed},
		{kind: JobKindProductShot, raw: "CANCELLED", want: JobStatusFailed},
		{kind: JobKindProductShot, raw: "CANCELED", want: JobStatusFailed},
		{kind: JobKindVideo, raw: "CANCELED", want: JobStatusFailed},
		{kind: JobKindImage, raw: "SUCCEEDED", want: JobStatusCompleted},
		{kind: JobKindImage, raw: "RUNNING", want: JobStatusProcessing},
		{kind: JobKindImage, raw: "UNKNOWN", want: JobStatusFailed},
		{kind: JobKindVideo, raw: "UNKNOWN", wantErr: true},
		{kind: JobKindProductShot, raw: "DONE", want: JobStatusCompleted},
		{kind: JobKindProductShot, raw: "PENDING", want: JobStatusInQueue},
		{kind: JobKindImage, raw: "DONE", wantErr: true},
		{kind: JobKindImage, raw: "", wantErr: true},
		{kind: JobKindVideo, raw: "EXPLODED", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.raw, func(t *testing.T) {
			got, err := MapProviderStatus(tt.kind, tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("MapProviderStatus error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("MapProviderStatus(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEveryKindMapsCommonVocabulary(t *testing.T) {
	for _, kind := range JobKinds {
		for raw, want := range providerVocabulary[""] {
			got, err := MapProviderStatus(kind, raw)
			if err != nil || got != want {
				t.Fatalf("MapProviderStatus(%s, %q) = %s, %v; want %s", kind, raw, got, err, want)
			}
		}
	}
}

func TestEstimateProgress(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		kind    JobKind
		elapsed time.Duration
		want    int
	}{
		{name: "not started", kind: JobKindVideo, elapsed: 0, want: 0},
		{name: "clock skew", kind: JobKindVideo, elapsed: -time.Minute, want: 0},
		{name: "half video", kind: JobKindVideo, elapsed: 210 * time.Second, want: 50},
		{name: "image 30s", kind: JobKindImage, elapsed: 30 * time.Second, want: 50},
		{name: "capped", kind: JobKindImage, elapsed: time.Hour, want: 99},
		{name: "exactly expected", kind: JobKindProductShot, elapsed: 2 * time.Minute, want: 99},
		{name: "years old", kind: JobKindImage, elapsed: 26400 * time.Hour, want: 99},
		{name: "max duration", kind: JobKindVideo, elapsed: time.Duration(1<<63 - 1), want: 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateProgress(tt.kind, created, created.Add(tt.elapsed)); got != tt.want {
				t.Fatalf("EstimateProgress = %d, want %d", got, tt.want)
			}
		})
	}
}
