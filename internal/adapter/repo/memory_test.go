package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"studio/internal/domain"
)

func newTestJob(id string) *domain.Job {
	return &domain.Job{
		ID:       id,
		UserID:   "user-1",
		Kind:     domain.JobKindVideo,
		Status:   domain.JobStatusInQueue,
		Prompt:   "slow pan over a coffee cup",
		Settings: []byte(`{"duration":"5"}`),
	}
}

func TestMemoryRepositoryCloneIsolation(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()
	job := newTestJob("job-1")
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	job.Prompt = "mutated"
	job.Settings[0] = 'X'

	got, err := repo.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Prompt != "slow pan over a coffee cup" {
		t.Fatalf("stored prompt mutated: %q", got.Prompt)
	}
	if string(got.Settings) != `{"duration":"5"}` {
		t.Fatalf("stored settings mutated: %s", got.Settings)
	}
	if err := repo.Create(ctx, newTestJob("job-1")); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestMemoryRepositoryNotFound(t *testing.T) {
	repo := NewMemoryJobRepository()
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.SetRequestID(context.Background(), "missing", "req"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepositoryRequestIDSetOnce(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, newTestJob("job-1"))

	if err := repo.SetRequestID(ctx, "job-1", "req-1"); err != nil {
		t.Fatalf("SetRequestID error: %v", err)
	}
	if err := repo.SetRequestID(ctx, "job-1", "req-2"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	got, _ := repo.GetByID(ctx, "job-1")
	if got.RequestID != "req-1" {
		t.Fatalf("RequestID = %q, want req-1", got.RequestID)
	}
}

func TestMemoryRepositoryProgressRules(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, newTestJob("job-1"))

	if ok, err := repo.UpdateProgress(ctx, "job-1", domain.JobStatusProcessing, 40); err != nil || !ok {
		t.Fatalf("UpdateProgress = %v, %v", ok, err)
	}
	if ok, _ := repo.UpdateProgress(ctx, "job-1", domain.JobStatusProcessing, 10); !ok {
		t.Fatal("same-state update should apply")
	}
	got, _ := repo.GetByID(ctx, "job-1")
	if got.Progress != 40 {
		t.Fatalf("progress lowered to %d", got.Progress)
	}
	if ok, _ := repo.UpdateProgress(ctx, "job-1", domain.JobStatusInQueue, 50); ok {
		t.Fatal("processing -> in_queue must not apply")
	}
	if _, err := repo.UpdateProgress(ctx, "job-1", domain.JobStatusCompleted, 50); err == nil {
		t.Fatal("terminal status through UpdateProgress must error")
	}
	if ok, _ := repo.UpdateProgress(ctx, "job-1", domain.JobStatusProcessing, 150); !ok {
		t.Fatal("expected update to apply")
	}
	got, _ = repo.GetByID(ctx, "job-1")
	if got.Progress != 99 {
		t.Fatalf("progress = %d, want capped 99", got.Progress)
	}
}

func TestMemoryRepositoryTerminalWritesAreConditional(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, newTestJob("job-1"))

	ok, err := repo.MarkCompleted(ctx, "job-1", "https://cdn.example.com/a.mp4")
	if err != nil || !ok {
		t.Fatalf("MarkCompleted = %v, %v", ok, err)
	}
	if ok, _ := repo.MarkFailed(ctx, "job-1", "late failure"); ok {
		t.Fatal("MarkFailed must not overwrite a completed job")
	}
	if ok, _ := repo.MarkCompleted(ctx, "job-1", "https://cdn.example.com/b.mp4"); ok {
		t.Fatal("second MarkCompleted must not apply")
	}
	got, _ := repo.GetByID(ctx, "job-1")
	if got.Result() != "https://cdn.example.com/a.mp4" || got.Progress != domain.ProgressDone {
		t.Fatalf("unexpected job: %+v", got)
	}
	if err := got.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestMemoryRepositoryClaimRetry(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, newTestJob("job-1"))
	_ = repo.SetRequestID(ctx, "job-1", "req-1")

	if ok, _ := repo.ClaimRetry(ctx, "job-1"); ok {
		t.Fatal("claim of a queued job must not apply")
	}
	_, _ = repo.MarkFailed(ctx, "job-1", "boom")
	if ok, _ := repo.ClaimRetry(ctx, "job-1"); !ok {
		t.Fatal("claim of a failed job should apply")
	}
	if ok, _ := repo.ClaimRetry(ctx, "job-1"); ok {
		t.Fatal("second claim must not apply")
	}
	got, _ := repo.GetByID(ctx, "job-1")
	if got.Status != domain.JobStatusInQueue || got.RequestID != "" || got.ErrorMessage != nil || got.Progress != 0 {
		t.Fatalf("unexpected job after claim: %+v", got)
	}
	if err := repo.SetRequestID(ctx, "job-1", "req-2"); err != nil {
		t.Fatalf("SetRequestID after claim: %v", err)
	}
}

func TestMemoryRepositoryList(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := base
	repo := NewMemoryJobRepository().WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = repo.Create(ctx, newTestJob(id))
	}
	other := newTestJob("d")
	other.UserID = "user-2"
	_ = repo.Create(ctx, other)
	image := newTestJob("e")
	image.Kind = domain.JobKindImage
	_ = repo.Create(ctx, image)

	jobs, err := repo.List(ctx, domain.JobFilter{UserID: "user-1", Kind: domain.JobKindVideo, Limit: 2})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "c" || jobs[1].ID != "b" {
		t.Fatalf("unexpected listing: %+v", jobs)
	}

	all, _ := repo.List(ctx, domain.JobFilter{UserID: "user-1"})
	if len(all) != 4 {
		t.Fatalf("expected 4 jobs for user-1, got %d", len(all))
	}
}
