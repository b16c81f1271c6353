package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/ledger"
)

// Store is an in-process job store and queue, safe for concurrent use.
// Jobs are lost on restart; the postgres job store is the durable one.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*jobs.Job
	payloads map[string]string
	now      func() time.Time
}

var (
	_ jobs.Store        = (*Store)(nil)
	_ jobs.PayloadStore = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		jobs:     make(map[string]*jobs.Job),
		payloads: make(map[string]string),
		now:      time.Now,
	}
}

// WithClock replaces the store's time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Create(_ context.Context, job *jobs.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("job %s already exists", job.JobID)
	}
	c := copyJob(job)
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = jobs.StatusQueued
	}
	s.jobs[job.JobID] = c
	return nil
}

func (s *Store) Get(_ context.Context, jobID, userID string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	return copyJob(job), nil
}

func (s *Store) FindByFileName(_ context.Context, userID, fileName string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *jobs.Job
	for _, job := range s.jobs {
		if job.UserID != userID || job.FileName != fileName || job.Type != jobs.TypeImportTransactions {
			continue
		}
		if job.Status.Terminal() {
			continue
		}
		if found == nil || job.CreatedAt.After(found.CreatedAt) {
			found = job
		}
	}
	if found == nil {
		return nil, nil
	}
	return copyJob(found), nil
}

func (s *Store) ListByUser(_ context.Context, userID string, limit int) ([]*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.Job
	for _, job := range s.jobs {
		if job.UserID == userID {
			result = append(result, copyJob(job))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ClaimNext(_ context.Context, types []jobs.Type, lease time.Duration) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var candidates []*jobs.Job
	for _, job := range s.jobs {
		if !wantsType(types, job.Type) || job.Status.Terminal() {
			continue
		}
		if job.ClaimedAt == nil {
			if job.Status == jobs.StatusQueued && !job.RunAfter.After(now) {
				candidates = append(candidates, job)
			}
			continue
		}
		if lease > 0 && job.HeartbeatAt != nil && now.Sub(*job.HeartbeatAt) > lease {
			candidates = append(candidates, job)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	job := candidates[0]
	job.ClaimedAt = &now
	job.HeartbeatAt = &now
	job.Attempts++
	job.UpdatedAt = now
	return copyJob(job), nil
}

func (s *Store) Transition(_ context.Context, jobID string, to jobs.Status, errMsg string) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	if err := jobs.CheckTransition(job.Status, to); err != nil {
		return nil, err
	}

	now := s.now()
	job.Status = to
	if errMsg != "" {
		job.Error = errMsg
	}
	if job.StartTime == nil && (to == jobs.StatusUploading || to == jobs.StatusProcessing) {
		job.StartTime = &now
	}
	if to.Terminal() {
		job.EndTime = &now
	}
	job.HeartbeatAt = &now
	job.UpdatedAt = now
	return copyJob(job), nil
}

func (s *Store) MergeStats(_ context.Context, jobID string, update jobs.Stats) (jobs.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return jobs.Stats{}, fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	now := s.now()
	job.Stats = job.Stats.Merge(update)
	job.HeartbeatAt = &now
	job.UpdatedAt = now
	return job.Stats.Merge(jobs.Stats{}), nil
}

func (s *Store) Heartbeat(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	if job.Status.Terminal() || job.ClaimedAt == nil {
		return fmt.Errorf("%w: %s job holds no lease", ledger.ErrInvalidTransition, job.Status)
	}
	now := s.now()
	job.HeartbeatAt = &now
	job.UpdatedAt = now
	return nil
}

func (s *Store) Requeue(_ context.Context, jobID string, runAfter time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s job cannot be requeued", ledger.ErrInvalidTransition, job.Status)
	}
	job.Status = jobs.StatusQueued
	job.ClaimedAt = nil
	job.HeartbeatAt = nil
	job.RunAfter = runAfter
	job.Error = errMsg
	job.UpdatedAt = s.now()
	return nil
}

func (s *Store) Withdraw(_ context.Context, jobID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.UserID != userID {
		return fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	if job.Status != jobs.StatusQueued || job.ClaimedAt != nil {
		return fmt.Errorf("job %s: %w", jobID, ledger.ErrJobClaimed)
	}
	now := s.now()
	job.Status = jobs.StatusError
	job.Error = "withdrawn before processing"
	job.EndTime = &now
	job.UpdatedAt = now
	return nil
}

func (s *Store) RequestDeletion(_ context.Context, jobID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.UserID != userID {
		return fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	job.DeleteRequested = true
	job.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeletionRequested(_ context.Context, jobID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	return job.DeleteRequested, nil
}

func (s *Store) StagePayload(_ context.Context, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := jobs.NewJobID()
	s.payloads[ref] = content
	return ref, nil
}

func (s *Store) LoadPayload(_ context.Context, ref string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.payloads[ref]
	if !ok {
		return "", fmt.Errorf("payload %s: %w", ref, ledger.ErrNotFound)
	}
	return content, nil
}

func (s *Store) DeletePayload(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.payloads, ref)
	return nil
}

func wantsType(types []jobs.Type, t jobs.Type) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

func copyJob(job *jobs.Job) *jobs.Job {
	c := *job
	c.Stats = job.Stats.Merge(jobs.Stats{})
	return &c
}
