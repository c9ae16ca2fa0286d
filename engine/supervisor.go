package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Supervisor ensures exactly one live RunWorker goroutine exists per run id
// at any time. Submit is idempotent: submitting a run id that already has a
// live worker is a no-op, which lets both the API layer and Recovery call
// Submit freely without coordinating with each other.
type Supervisor struct {
	worker *RunWorker

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
	wg     sync.WaitGroup
}

// NewSupervisor builds a Supervisor that drives runs with worker.
func NewSupervisor(worker *RunWorker) *Supervisor {
	return &Supervisor{
		worker: worker,
		active: make(map[uuid.UUID]struct{}),
	}
}

// Submit starts a goroutine running runID to completion, unless one is
// already running. It returns immediately; callers must not assume the run
// has finished (or even started) when Submit returns.
func (s *Supervisor) Submit(ctx context.Context, runID uuid.UUID) {
	s.mu.Lock()
	if _, ok := s.active[runID]; ok {
		s.mu.Unlock()
		return
	}
	s.active[runID] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, runID)
			s.mu.Unlock()
		}()
		s.worker.Run(ctx, runID)
	}()
}

// Active reports whether runID currently has a live worker.
func (s *Supervisor) Active(runID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[runID]
	return ok
}

// Wait blocks until every worker submitted so far has returned. It is meant
// for tests and graceful shutdown, not for the request path.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
