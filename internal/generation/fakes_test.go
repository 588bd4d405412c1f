package generation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/adapter/repo"
	"studio/internal/domain"
	"studio/internal/events"
)

type fakeProvider struct {
	mu        sync.Mutex
	submitID  string
	submitErr error
	snapshots []domain.StatusSnapshot
	statusErr error
	resultURL string
	resultErr error
	retryID   string
	retryErr  error

	submits      []domain.SubmitRequest
	statusCalls  int
	fetchCalls   int
	retryCalls   int
	retryFromReq string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Submit(ctx context.Context, req domain.SubmitRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submits = append(p.submits, req)
	if p.submitErr != nil {
		return "", p.submitErr
	}
	return p.submitID, nil
}

// Status replays snapshots in order and repeats the last one.
func (p *fakeProvider) Status(ctx context.Context, requestID string) (domain.StatusSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusCalls++
	if p.statusErr != nil {
		return domain.StatusSnapshot{}, p.statusErr
	}
	if len(p.snapshots) == 0 {
		return domain.StatusSnapshot{RawStatus: "IN_QUEUE"}, nil
	}
	snap := p.snapshots[0]
	if len(p.snapshots) > 1 {
		p.snapshots = p.snapshots[1:]
	}
	return snap, nil
}

func (p *fakeProvider) FetchResult(ctx context.Context, requestID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls++
	return p.resultURL, p.resultErr
}

func (p *fakeProvider) Retry(ctx context.Context, requestID string, req domain.SubmitRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retryCalls++
	p.retryFromReq = requestID
	if p.retryErr != nil {
		return "", p.retryErr
	}
	return p.retryID, nil
}

func (p *fakeProvider) script(snaps ...domain.StatusSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = snaps
	p.statusErr = nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusCalls
}

type providerMap map[domain.JobKind]domain.Provider

func (m providerMap) For(kind domain.JobKind) (domain.Provider, error) {
	p, ok := m[kind]
	if !ok {
		return nil, fmt.Errorf("no provider for %s", kind)
	}
	return p, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.JobEvent
}

func (r *recorder) Publish(ctx context.Context, e events.JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc      *Service
	repo     *repo.MemoryJobRepository
	provider *fakeProvider
	events   *recorder
	clock    *fixedClock
}

func newHarness() *harness {
	clock := &fixedClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	store := repo.NewMemoryJobRepository().WithClock(clock.Now)
	provider := &fakeProvider{submitID: "req-1", retryID: "req-2"}
	rec := &recorder{}
	ids := 0
	svc := NewService(Options{
		Repo: store,
		Providers: providerMap{
			domain.JobKindImage:       provider,
			domain.JobKindVideo:       provider,
			domain.JobKindProductShot: provider,
		},
		Events: rec,
		Logger: zerolog.Nop(),
		Now:    clock.Now,
		NewID: func() string {
			ids++
			return fmt.Sprintf("job-%d", ids)
		},
	})
	return &harness{svc: svc, repo: store, provider: provider, events: rec, clock: clock}
}

func (h *harness) submitVideo(t *testing.T) *domain.Job {
	t.Helper()
	job, err := h.svc.Submit(context.Background(), SubmitInput{
		UserID:         "user-1",
		Kind:           domain.JobKindVideo,
		Prompt:         "slow dolly-in on the product",
		SourceImageURL: "https://cdn.example.com/source.png",
	})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	return job
}
