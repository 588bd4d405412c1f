package generation

import (
	"context"
	"errors"
	"sync"
)

// ErrRegistryClosed is returned when tracking a session after Close.
var ErrRegistryClosed = errors.New("poll registry closed")

// Registry tracks the active polling sessions of this process so they can be
// counted and stopped together on shutdown.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]map[string]*Poller
	closed   bool
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]map[string]*Poller)}
}

// Track registers p under (jobID, sessionID). The entry is removed when p
// stops. A session id already in use replaces and stops the older poller.
func (r *Registry) Track(jobID, sessionID string, p *Poller) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	byJob, ok := r.sessions[jobID]
	if !ok {
		byJob = make(map[string]*Poller)
		r.sessions[jobID] = byJob
	}
	previous := byJob[sessionID]
	byJob[sessionID] = p
	r.mu.Unlock()

	if previous != nil && previous != p {
		previous.Stop()
	}
	go func() {
		<-p.Done()
		r.untrack(jobID, sessionID, p)
	}()
	return nil
}

func (r *Registry) untrack(jobID, sessionID string, p *Poller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byJob, ok := r.sessions[jobID]
	if !ok || byJob[sessionID] != p {
		return
	}
	delete(byJob, sessionID)
	if len(byJob) == 0 {
		delete(r.sessions, jobID)
	}
}

// Active counts tracked sessions across all jobs.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, byJob := range r.sessions {
		n += len(byJob)
	}
	return n
}

// ActiveFor counts tracked sessions for one job.
func (r *Registry) ActiveFor(jobID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[jobID])
}

// Close stops every session and waits for them to finish or for ctx to end.
// Later Track calls fail with ErrRegistryClosed.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	var pollers []*Poller
	for _, byJob := range r.sessions {
		for _, p := range byJob {
			pollers = append(pollers, p)
		}
	}
	r.mu.Unlock()

	for _, p := range pollers {
		p.Stop()
	}
	for _, p := range pollers {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
