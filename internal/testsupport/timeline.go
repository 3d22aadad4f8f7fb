package testsupport

import (
	"context"
	"sync"
	"time"

	"mediaforge/internal/domain"
)

// MemoryTimelineStore implements domain.TimelineStore in memory. Create
// writes the timeline and its segment jobs together, mirroring the
// transactional store.
type MemoryTimelineStore struct {
	mu        sync.Mutex
	timelines map[string]*domain.Timeline
	jobs      *MemoryJobStore
}

func NewMemoryTimelineStore(jobs *MemoryJobStore) *MemoryTimelineStore {
	return &MemoryTimelineStore{
		timelines: make(map[string]*domain.Timeline),
		jobs:      jobs,
	}
}

func (s *MemoryTimelineStore) Create(ctx context.Context, timeline *domain.Timeline, segments []*domain.Job) error {
	s.mu.Lock()
	clone := *timeline
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	s.timelines[clone.ID] = &clone
	s.mu.Unlock()
	for _, segment := range segments {
		if err := s.jobs.Create(ctx, segment); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryTimelineStore) GetByID(_ context.Context, id string) (*domain.Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	timeline, ok := s.timelines[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *timeline
	return &clone, nil
}

var _ domain.TimelineStore = (*MemoryTimelineStore)(nil)
