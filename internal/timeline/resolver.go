// Package timeline sequences the segments of a multi-part video timeline.
// Segments form a strict chain: segment i cannot be submitted until segment
// i-1 succeeded, because its first frame is the predecessor's extracted last
// frame.
package timeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
)

// Resolver reacts to segment terminal transitions: success unblocks the next
// segment, failure cancels everything downstream that has not started.
type Resolver struct {
	jobs   domain.JobStore
	ledger domain.Ledger
	logger zerolog.Logger
}

func NewResolver(jobs domain.JobStore, ledger domain.Ledger, logger zerolog.Logger) *Resolver {
	return &Resolver{jobs: jobs, ledger: ledger, logger: logger}
}

// OnSegmentSucceeded binds the completed segment's extracted artifact to the
// successor's input, releasing it from created. Within one timeline the
// successor never observes a bound input before its predecessor succeeded;
// this call is the only writer.
func (r *Resolver) OnSegmentSucceeded(ctx context.Context, job *domain.Job, result *domain.Result) error {
	if !job.IsSegment() {
		return nil
	}
	if result == nil || result.LastArtifact == "" {
		return fmt.Errorf("segment %s succeeded without a continuation artifact", job.ID)
	}

	successorID, err := r.jobs.BindSuccessorInput(ctx, job.TimelineID, job.Position+1, result.LastArtifact)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Last segment of the timeline, or the successor already left
			// created through an earlier cancellation.
			return nil
		}
		return fmt.Errorf("bind successor of segment %s: %w", job.ID, err)
	}

	r.logger.Info().
		Str("timeline_id", job.TimelineID).
		Str("segment_id", job.ID).
		Str("successor_id", successorID).
		Int("position", job.Position+1).
		Msg("timeline: successor input bound")
	return nil
}

// OnSegmentFailed propagates a failed or timed-out segment as cancellation
// to every later segment still in created, releasing their reservations.
// Segments already polling keep running; their input was bound and their
// provider cost is already committed.
func (r *Resolver) OnSegmentFailed(ctx context.Context, job *domain.Job) error {
	if !job.IsSegment() {
		return nil
	}

	message := fmt.Sprintf("predecessor segment %d did not succeed", job.Position)
	cancelled, err := r.jobs.CancelCreatedAfter(ctx, job.TimelineID, job.Position, message)
	if err != nil {
		return fmt.Errorf("cancel dependents of segment %s: %w", job.ID, err)
	}

	for _, dependent := range cancelled {
		if err := r.ledger.Release(ctx, dependent.ID); err != nil {
			r.logger.Error().Err(err).
				Str("job_id", dependent.ID).
				Msg("timeline: release of cancelled segment failed")
		}
	}

	if len(cancelled) > 0 {
		r.logger.Info().
			Str("timeline_id", job.TimelineID).
			Str("segment_id", job.ID).
			Int("cancelled", len(cancelled)).
			Msg("timeline: downstream segments cancelled")
	}
	return nil
}
