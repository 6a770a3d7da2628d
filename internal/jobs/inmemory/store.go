package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/subwatch/internal/jobs"
)

// Store is an in-memory JobStore implementation. Job state does not survive
// restarts; good enough for a single-instance deployment where the queue is
// in-memory anyway.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ProcessStatementJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.ProcessStatementJob),
	}
}

// SaveJob saves or updates a job's state.
func (s *Store) SaveJob(_ context.Context, job *jobs.ProcessStatementJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *job
	s.jobs[job.JobID] = &copied
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.ProcessStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	copied := *job
	return &copied, nil
}

// ListJobs retrieves jobs matching the filter, newest first.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.ProcessStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*jobs.ProcessStatementJob
	for _, job := range s.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		copied := *job
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

var _ jobs.JobStore = (*Store)(nil)
