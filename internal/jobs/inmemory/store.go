package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/dvloznov/gastos/internal/jobs"
)

// DefaultRetention is how many finished jobs NewStore keeps.
const DefaultRetention = 1000

// Store is an in-memory implementation of JobStore, safe for concurrent use.
// Once more than retain jobs have finished, the oldest finished ones are
// evicted. Finished jobs drop their receipt payload.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*jobs.Job
	retain int
}

// NewStore creates a job store keeping DefaultRetention finished jobs.
func NewStore() *Store {
	return NewStoreWithRetention(DefaultRetention)
}

// NewStoreWithRetention creates a job store keeping at most retain finished
// jobs. Pending and running jobs are never evicted.
func NewStoreWithRetention(retain int) *Store {
	return &Store{
		jobs:   make(map[string]*jobs.Job),
		retain: retain,
	}
}

func finished(job *jobs.Job) bool {
	return job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(_ context.Context, job *jobs.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	if finished(&jobCopy) {
		jobCopy.Receipt = nil
		jobCopy.Expense = nil
	}
	s.jobs[job.JobID] = &jobCopy
	s.evict()
	return nil
}

// evict drops the oldest finished jobs beyond the retention limit. Callers
// hold the write lock.
func (s *Store) evict() {
	if s.retain <= 0 {
		return
	}
	var done []*jobs.Job
	for _, job := range s.jobs {
		if finished(job) {
			done = append(done, job)
		}
	}
	if len(done) <= s.retain {
		return
	}
	sort.Slice(done, func(i, j int) bool {
		return done[i].CreatedAt.Before(done[j].CreatedAt)
	})
	for _, job := range done[:len(done)-s.retain] {
		delete(s.jobs, job.JobID)
	}
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, domain.ErrNotFound)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.Job{}
	for _, job := range s.jobs {
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.ExpenseID != "" && job.ExpenseID != filter.ExpenseID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.Job{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus implements the JobStore interface.
func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("UpdateJobStatus: %s: %w", jobID, domain.ErrNotFound)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
