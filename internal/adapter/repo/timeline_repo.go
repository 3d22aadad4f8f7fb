package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mediaforge/internal/domain"
	"mediaforge/internal/infra"
)

// TxBeginner is satisfied by *pgxpool.Pool; timeline creation is the one
// write that spans rows and needs a transaction.
type TxBeginner interface {
	infra.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TimelineStorePG implements domain.TimelineStore on PostgreSQL.
type TimelineStorePG struct {
	db TxBeginner
}

// NewTimelineStore creates a timeline store backed by PostgreSQL.
func NewTimelineStore(db TxBeginner) *TimelineStorePG {
	return &TimelineStorePG{db: db}
}

// Create inserts the timeline and all of its segment jobs in one transaction
// so a half-created timeline is never observable.
func (r *TimelineStorePG) Create(ctx context.Context, timeline *domain.Timeline, segments []*domain.Job) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin timeline create: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO timelines (id, owner_id, title, segment_count, total_duration)
VALUES ($1, $2, $3, $4, $5);
`, timeline.ID, timeline.OwnerID, timeline.Title, timeline.SegmentCount, timeline.TotalDuration); err != nil {
		return fmt.Errorf("insert timeline: %w", err)
	}

	for _, segment := range segments {
		if _, err := tx.Exec(ctx, `
INSERT INTO jobs (id, owner_id, kind, provider, status, input_spec, cost_reserved, reservation_open,
                  timeline_id, position, predecessor_id, input_artifact_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $9, NULLIF($10, '')::uuid, $11);
`,
			segment.ID,
			segment.OwnerID,
			segment.Kind,
			segment.Provider,
			domain.JobStatusCreated,
			segment.InputSpec,
			segment.CostReserved,
			timeline.ID,
			segment.Position,
			segment.PredecessorID,
			segment.InputArtifactRef,
		); err != nil {
			return fmt.Errorf("insert segment %d: %w", segment.Position, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID fetches a timeline by its identifier.
func (r *TimelineStorePG) GetByID(ctx context.Context, id string) (*domain.Timeline, error) {
	row := r.db.QueryRow(ctx, `
SELECT id, owner_id, title, segment_count, total_duration, created_at
FROM timelines
WHERE id = $1;
`, id)
	var timeline domain.Timeline
	if err := row.Scan(
		&timeline.ID,
		&timeline.OwnerID,
		&timeline.Title,
		&timeline.SegmentCount,
		&timeline.TotalDuration,
		&timeline.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &timeline, nil
}

var _ domain.TimelineStore = (*TimelineStorePG)(nil)
