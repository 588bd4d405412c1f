package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"studio/internal/domain"
)

// DefaultPollInterval is the fixed delay between status checks.
const DefaultPollInterval = 3 * time.Second

// ErrPollerStarted is returned when Start is called twice.
var ErrPollerStarted = errors.New("poller already started")

// StatusChecker performs one status reconciliation for a job.
type StatusChecker interface {
	CheckStatus(ctx context.Context, userID, jobID string) (*domain.Job, error)
}

// PollState is the observable state of one polling session.
type PollState struct {
	JobID    string           `json:"job_id"`
	Status   domain.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Result   string           `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
	Polling  bool             `json:"polling"`
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Interval time.Duration
	// OnUpdate is called after every check from the poller goroutine.
	OnUpdate func(PollState)
}

// Poller re-checks one job on a fixed delay until it reaches a terminal
// state, a status check fails, Stop is called or its context ends. A stopped
// poller is not restarted; create a new one after a retry.
type Poller struct {
	checker  StatusChecker
	userID   string
	jobID    string
	interval time.Duration
	onUpdate func(PollState)

	mu      sync.Mutex
	state   PollState
	err     error
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPoller(checker StatusChecker, userID, jobID string, opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		checker:  checker,
		userID:   userID,
		jobID:    jobID,
		interval: interval,
		onUpdate: opts.OnUpdate,
		state:    PollState{JobID: jobID},
		done:     make(chan struct{}),
	}
}

// Start launches the polling goroutine. The first check runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrPollerStarted
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.state.Polling = true
	go p.run(ctx)
	return nil
}

// Stop cancels polling. It is safe to call more than once and before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	started := p.started
	if !started {
		p.started = true
		close(p.done)
	}
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed once the poller has stopped for any reason.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// State returns the latest observed state.
func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the status-check error that stopped polling, if any.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer p.finish()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		job, err := p.checker.CheckStatus(ctx, p.userID, p.jobID)
		if ctx.Err() != nil {
			return
		}
		state, keepPolling := p.record(job, err)
		if p.onUpdate != nil {
			p.onUpdate(state)
		}
		if !keepPolling {
			return
		}
		timer.Reset(p.interval)
	}
}

func (p *Poller) record(job *domain.Job, err error) (PollState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if job != nil {
		p.state.Status = job.Status
		p.state.Progress = job.Progress
		p.state.Result = job.Result()
		p.state.Error = job.Error()
	}
	keepPolling := err == nil && job != nil && !job.Status.IsTerminal()
	if err != nil {
		p.err = err
		p.state.Error = err.Error()
	}
	p.state.Polling = keepPolling
	return p.state, keepPolling
}

func (p *Poller) finish() {
	p.mu.Lock()
	p.state.Polling = false
	p.mu.Unlock()
}
