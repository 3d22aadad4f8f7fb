// Package testsupport provides in-memory implementations of the domain
// stores honoring the same guard contracts as the PostgreSQL versions, for
// use in package tests.
package testsupport

import (
	"context"
	"sort"
	"sync"
	"time"

	"mediaforge/internal/domain"
)

// MemoryJobStore implements domain.JobStore in memory.
type MemoryJobStore struct {
	mu     sync.Mutex
	jobs   map[string]*domain.Job
	leases map[string]time.Time
	seq    int
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:   make(map[string]*domain.Job),
		leases: make(map[string]time.Time),
	}
}

func (s *MemoryJobStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *job
	clone.Status = domain.JobStatusCreated
	clone.ReservationOpen = true
	if clone.CreatedAt.IsZero() {
		s.seq++
		clone.CreatedAt = time.Now().Add(time.Duration(s.seq) * time.Microsecond)
	}
	s.jobs[clone.ID] = &clone
	return nil
}

func (s *MemoryJobStore) GetByID(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (s *MemoryJobStore) ListByOwner(_ context.Context, ownerID string, status domain.JobStatus, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.jobs {
		if job.OwnerID != ownerID {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryJobStore) ClaimRunnable(_ context.Context, limit int, lease time.Duration) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var candidates []*domain.Job
	for _, job := range s.jobs {
		if until, leased := s.leases[job.ID]; leased && now.Before(until) {
			continue
		}
		runnable := (job.Status == domain.JobStatusCreated && (!job.IsSegment() || job.InputArtifactRef != "")) ||
			((job.Status == domain.JobStatusSubmitted || job.Status == domain.JobStatusPolling) && job.ProviderRef != "")
		if runnable {
			candidates = append(candidates, job)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]domain.Job, 0, len(candidates))
	for _, job := range candidates {
		s.leases[job.ID] = now.Add(lease)
		out = append(out, *job)
	}
	return out, nil
}

func (s *MemoryJobStore) MarkSubmitted(_ context.Context, id, providerRef string) error {
	return s.transition(id, []domain.JobStatus{domain.JobStatusCreated}, func(job *domain.Job) {
		job.Status = domain.JobStatusSubmitted
		job.ProviderRef = providerRef
	})
}

func (s *MemoryJobStore) MarkPolling(_ context.Context, id string) error {
	return s.transition(id, []domain.JobStatus{domain.JobStatusSubmitted}, func(job *domain.Job) {
		job.Status = domain.JobStatusPolling
	})
}

func (s *MemoryJobStore) TouchPoll(_ context.Context, id string, attempts, transients int, lease time.Duration) error {
	return s.transition(id, []domain.JobStatus{domain.JobStatusPolling}, func(job *domain.Job) {
		job.AttemptCount = attempts
		job.TransientErrors = transients
		now := time.Now()
		job.LastPolledAt = &now
		s.leases[id] = now.Add(lease)
	})
}

func (s *MemoryJobStore) MarkSucceeded(_ context.Context, id string, result *domain.Result) error {
	return s.transition(id, []domain.JobStatus{domain.JobStatusPolling}, func(job *domain.Job) {
		job.Status = domain.JobStatusSucceeded
		job.Result = result
		now := time.Now()
		job.TerminalAt = &now
	})
}

func (s *MemoryJobStore) MarkFailed(_ context.Context, id string, kind domain.ErrorKind, message string) error {
	nonTerminal := []domain.JobStatus{domain.JobStatusCreated, domain.JobStatusSubmitted, domain.JobStatusPolling}
	return s.transition(id, nonTerminal, func(job *domain.Job) {
		job.Status = domain.JobStatusFailed
		job.Error = &domain.JobError{Kind: kind, Message: message}
		now := time.Now()
		job.TerminalAt = &now
	})
}

func (s *MemoryJobStore) MarkTimedOut(_ context.Context, id string, attempts int, message string) error {
	return s.transition(id, []domain.JobStatus{domain.JobStatusPolling}, func(job *domain.Job) {
		job.Status = domain.JobStatusTimedOut
		job.AttemptCount = attempts
		job.Error = &domain.JobError{Kind: domain.ErrorKindTimeout, Message: message}
		now := time.Now()
		job.TerminalAt = &now
	})
}

func (s *MemoryJobStore) Cancel(_ context.Context, id string, message string) error {
	nonTerminal := []domain.JobStatus{domain.JobStatusCreated, domain.JobStatusSubmitted, domain.JobStatusPolling}
	return s.transition(id, nonTerminal, func(job *domain.Job) {
		job.Status = domain.JobStatusCancelled
		job.Error = &domain.JobError{Kind: domain.ErrorKindDependency, Message: message}
		now := time.Now()
		job.TerminalAt = &now
	})
}

func (s *MemoryJobStore) BindSuccessorInput(_ context.Context, timelineID string, position int, artifactRef string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.TimelineID == timelineID && job.Position == position &&
			job.Status == domain.JobStatusCreated && job.InputArtifactRef == "" {
			job.InputArtifactRef = artifactRef
			return job.ID, nil
		}
	}
	return "", domain.ErrNotFound
}

func (s *MemoryJobStore) CancelCreatedAfter(_ context.Context, timelineID string, position int, message string) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cancelled []domain.Job
	for _, job := range s.jobs {
		if job.TimelineID == timelineID && job.Position > position && job.Status == domain.JobStatusCreated {
			job.Status = domain.JobStatusCancelled
			job.Error = &domain.JobError{Kind: domain.ErrorKindDependency, Message: message}
			now := time.Now()
			job.TerminalAt = &now
			cancelled = append(cancelled, *job)
		}
	}
	return cancelled, nil
}

func (s *MemoryJobStore) SegmentsByTimeline(_ context.Context, timelineID string) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.jobs {
		if job.TimelineID == timelineID {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryJobStore) SucceededUncharged(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusSucceeded && job.CostCharged == nil {
			ids = append(ids, job.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryJobStore) transition(id string, from []domain.JobStatus, apply func(*domain.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	for _, status := range from {
		if job.Status == status {
			apply(job)
			return nil
		}
	}
	return domain.ErrTerminalState
}

// mutate exposes direct job mutation to the ledger fake; the two fakes share
// one lock ordering (ledger locks itself, then the store).
func (s *MemoryJobStore) mutate(id string, apply func(*domain.Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	apply(job)
	return true
}

var _ domain.JobStore = (*MemoryJobStore)(nil)
